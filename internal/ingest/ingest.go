// Package ingest parses untrusted local files as JSON datasets. Parsing is a
// pure function from bytes to a value; reading the source is the one
// asynchronous I/O boundary and honors context cancellation.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// InvalidJSONError reports malformed dataset content. No partial value is
// ever returned alongside it.
type InvalidJSONError struct {
	Name string
	Err  error
}

func (e *InvalidJSONError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid JSON in %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("invalid JSON: %v", e.Err)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// ReadError reports a failure reading the source before parsing started.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Parse decodes data as an arbitrary JSON document. Any well-formed JSON value
// is accepted (object, array, or scalar); no schema is imposed. Trailing
// non-whitespace content or malformed syntax yields *InvalidJSONError.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &InvalidJSONError{Err: err}
	}
	// Reject a second value after the first document.
	if dec.More() {
		return nil, &InvalidJSONError{Err: fmt.Errorf("trailing content after JSON document")}
	}
	return value, nil
}

// Source supplies the raw content of a user-chosen file.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads a local file path.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (f FileSource) Name() string { return f.Path }

// Read returns the file content, honoring context cancellation before the read.
func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// BytesSource serves in-memory content, mirroring an already-buffered upload.
type BytesSource struct {
	Label string
	Data  []byte
}

// Name returns the source label.
func (b BytesSource) Name() string { return b.Label }

// Read returns a copy of the buffered content.
func (b BytesSource) Read(_ context.Context) ([]byte, error) {
	return append([]byte(nil), b.Data...), nil
}

// Result carries a completed ingestion: the parsed value plus the raw document
// it was decoded from.
type Result struct {
	Value any
	Raw   []byte
}

// Ingestor reads a source and parses it as JSON. It never touches registry or
// session state; callers decide where a successful result is stored.
type Ingestor struct{}

// NewIngestor constructs an ingestor.
func NewIngestor() *Ingestor { return &Ingestor{} }

// Ingest reads the full source content and parses it as JSON. Content is
// validated regardless of the source's name or extension. Read failures yield
// *ReadError, malformed content *InvalidJSONError.
func (i *Ingestor) Ingest(ctx context.Context, src Source) (Result, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return Result{}, &ReadError{Name: src.Name(), Err: err}
	}
	value, err := Parse(data)
	if err != nil {
		var invalid *InvalidJSONError
		if errors.As(err, &invalid) {
			invalid.Name = src.Name()
			return Result{}, invalid
		}
		return Result{}, err
	}
	return Result{Value: value, Raw: data}, nil
}
