// internal/records/writer.go

// Package records persists training records as line-delimited JSON, one
// record per line, append-only.
package records

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/crawlkit/careerscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer is a JSONL schemas.RecordEmitter. Safe for concurrent use; workers
// from parallel attempts share one Writer.
type Writer struct {
	mu      sync.Mutex
	out     io.WriteCloser
	written int
	closed  bool
}

var _ schemas.RecordEmitter = (*Writer)(nil)

// Open creates a Writer on the named file, creating parent directories as
// needed. An empty path or "stdout" writes to standard output.
func Open(path string) (*Writer, error) {
	if path == "" || path == "stdout" || path == "-" {
		return &Writer{out: nopCloser{os.Stdout}}, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating record directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	return &Writer{out: f}, nil
}

// NewWriter wraps an arbitrary sink, mostly for tests.
func NewWriter(out io.WriteCloser) *Writer {
	return &Writer{out: out}
}

// Emit appends one record as a single JSON line.
func (w *Writer) Emit(rec schemas.TrainingRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("record writer is closed")
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.written++
	return nil
}

// Written reports how many records have been persisted.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.out.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
