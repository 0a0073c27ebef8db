package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"flexdetect/internal/ingest"
	"flexdetect/pkg/domain"
)

func TestParseAcceptsAnyJSONValue(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"object", `{"model":"flex-v2","accuracy":0.91}`},
		{"array", `[1,2,3]`},
		{"string", `"plain"`},
		{"number", `42`},
		{"boolean", `true`},
		{"null", `null`},
		{"nested", `{"layers":[{"units":64},{"units":32}],"meta":{"trained":true}}`},
		{"whitespace padding", "  \n\t {\"a\":1} \n "},
	}
	for _, tc := range cases {
		value, err := ingest.Parse([]byte(tc.data))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		var want any
		decodeReference(t, tc.data, &want)
		if !domain.EqualJSONValue(value, want) {
			t.Fatalf("%s: got %#v want %#v", tc.name, value, want)
		}
	}
}

func TestParseRejectsMalformedContent(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"truncated object", `{"a":`},
		{"bare word", `notjson`},
		{"trailing document", `{"a":1}{"b":2}`},
		{"trailing garbage", `[1,2] extra`},
	}
	for _, tc := range cases {
		_, err := ingest.Parse([]byte(tc.data))
		var invalid *ingest.InvalidJSONError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected InvalidJSONError, got %v", tc.name, err)
		}
	}
}

func TestIngestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte(`{"model":"flex-v2"}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := ingest.NewIngestor().Ingest(context.Background(), ingest.FileSource{Path: path})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	doc, ok := result.Value.(map[string]any)
	if !ok || doc["model"] != "flex-v2" {
		t.Fatalf("unexpected value: %#v", result.Value)
	}
	if string(result.Raw) != `{"model":"flex-v2"}` {
		t.Fatalf("unexpected raw document: %q", result.Raw)
	}
}

func TestIngestMissingFileYieldsReadError(t *testing.T) {
	src := ingest.FileSource{Path: filepath.Join(t.TempDir(), "absent.json")}
	_, err := ingest.NewIngestor().Ingest(context.Background(), src)
	var readErr *ingest.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if readErr.Name != src.Path {
		t.Fatalf("error does not name the source: %q", readErr.Name)
	}
}

func TestIngestStampsSourceNameOnInvalidJSON(t *testing.T) {
	src := ingest.BytesSource{Label: "upload.json", Data: []byte(`{broken`)}
	_, err := ingest.NewIngestor().Ingest(context.Background(), src)
	var invalid *ingest.InvalidJSONError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidJSONError, got %v", err)
	}
	if invalid.Name != "upload.json" {
		t.Fatalf("error does not name the source: %q", invalid.Name)
	}
}

func TestIngestHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ingest.NewIngestor().Ingest(ctx, ingest.FileSource{Path: "irrelevant.json"})
	var readErr *ingest.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func decodeReference(t *testing.T, data string, into *any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), into); err != nil {
		t.Fatalf("decode reference: %v", err)
	}
}
