package domain

import (
	"fmt"
	"strings"
)

// Violation reports a single failed field-validation rule.
type Violation struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result aggregates violations from draft validation. All rules are evaluated
// independently, so a result may carry one violation per failing field.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// OK returns true when no violations were recorded.
func (r Result) OK() bool {
	return len(r.Violations) == 0
}

// Fields returns the set of field names with at least one violation.
func (r Result) Fields() []string {
	seen := make(map[string]struct{}, len(r.Violations))
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		if _, ok := seen[v.Field]; ok {
			continue
		}
		seen[v.Field] = struct{}{}
		out = append(out, v.Field)
	}
	return out
}

// ValidationError is returned when a commit is blocked by field violations.
type ValidationError struct {
	Result Result
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("draft blocked by validation: %s", strings.Join(e.Result.Fields(), ", "))
}

// NotFoundError is returned when an operation targets an id absent from the registry.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
