package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Category routes diagnostic records.
type Category string

const (
	// CategoryAssert carries full failure reports.
	CategoryAssert Category = "assert"
	// CategoryTrace carries compact one-line summaries.
	CategoryTrace Category = "trace"
)

const sinkBufferSize = 64 * 1024

// Sink receives diagnostic text from the triage engine. Records are
// buffered until Flush; every method swallows its own failures so it is
// safe to call while the rest of the process is in a bad state.
type Sink struct {
	out    *bufferedOutput
	logger *slog.Logger
	closed atomic.Bool
}

// NewSink creates a sink writing JSON records to w.
func NewSink(w io.Writer) *Sink {
	out := &bufferedOutput{
		buf:  bufio.NewWriterSize(w, sinkBufferSize),
		dest: w,
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevel,
	})
	return &Sink{
		out:    out,
		logger: slog.New(NewSanitizingHandler(handler, NewSanitizer())),
	}
}

// OpenSink creates a sink appending to the file at path. An empty path
// writes to stderr.
func OpenSink(path string) (*Sink, error) {
	if path == "" {
		return NewSink(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	s := NewSink(f)
	s.out.closer = f
	return s, nil
}

// Write records text under category at level. Writes after Shutdown are
// dropped.
func (s *Sink) Write(category Category, level slog.Level, text string) {
	if s == nil || s.closed.Load() {
		return
	}
	defer func() { _ = recover() }()

	s.logger.LogAttrs(context.Background(), level, text,
		slog.String(CategoryKey, string(category)))
}

// Flush pushes buffered records to the destination and syncs it.
func (s *Sink) Flush() {
	if s == nil {
		return
	}
	defer func() { _ = recover() }()
	s.out.flush()
}

// Shutdown flushes and closes the destination. Further writes are
// dropped. Safe to call more than once.
func (s *Sink) Shutdown() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	defer func() { _ = recover() }()
	s.out.flush()
	s.out.close()
}

// bufferedOutput serialises access to a bufio.Writer shared by the
// handler (Write) and Flush callers.
type bufferedOutput struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	dest   io.Writer
	closer io.Closer
}

func (o *bufferedOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(p)
}

func (o *bufferedOutput) flush() {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.buf.Flush()
	if f, ok := o.dest.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
}

func (o *bufferedOutput) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closer != nil {
		_ = o.closer.Close()
		o.closer = nil
	}
}
