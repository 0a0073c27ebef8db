package domain

// CloneJSONValue deep-copies an opaque JSON value: a tree of nil, bool,
// float64, string, []any, and map[string]any as produced by encoding/json.
// Scalars outside that set (e.g. json.Number) are copied by value.
func CloneJSONValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(typed))
		for k, child := range typed {
			cp[k] = CloneJSONValue(child)
		}
		return cp
	case []any:
		cp := make([]any, len(typed))
		for i, child := range typed {
			cp[i] = CloneJSONValue(child)
		}
		return cp
	default:
		return v
	}
}

// EqualJSONValue reports deep equality of two opaque JSON values.
func EqualJSONValue(a, b any) bool {
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !EqualJSONValue(av, bv) {
				return false
			}
		}
		return true
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !EqualJSONValue(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
