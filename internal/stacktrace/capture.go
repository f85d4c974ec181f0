// Package stacktrace renders bounded, fixed-width stack traces for
// diagnostic reports. Capture never panics past its own boundary: any
// failure inside the walker is reported as an error so callers can fall
// back to a trace-less report.
package stacktrace

import (
	"errors"
	"fmt"
	"runtime"
)

// MaxFrames bounds the number of frames rendered per trace.
const MaxFrames = 10

var (
	// ErrUnavailable is returned when no stack walker exists for this build.
	ErrUnavailable = errors.New("stack walking unavailable")
	// ErrCaptureFailed is returned when the walker failed or panicked.
	ErrCaptureFailed = errors.New("stack capture failed")
)

// Context is an execution context captured earlier, typically inside a
// recover handler, so the trace reflects the faulting goroutine.
type Context struct {
	PCs []uintptr
}

// CurrentContext captures the caller's program counters.
func CurrentContext() *Context {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	return &Context{PCs: pcs[:n]}
}

// Walker turns execution state into frame text.
type Walker interface {
	RenderFrames(skip, max int, ctx *Context) (string, error)
}

// Capturer captures traces through a Walker.
type Capturer struct {
	walker    Walker
	maxFrames int
}

// NewCapturer creates a capturer. A nil walker makes every capture return
// ErrUnavailable. maxFrames <= 0 selects MaxFrames.
func NewCapturer(walker Walker, maxFrames int) *Capturer {
	if maxFrames <= 0 {
		maxFrames = MaxFrames
	}
	return &Capturer{walker: walker, maxFrames: maxFrames}
}

// NewDefaultCapturer uses the platform walker.
func NewDefaultCapturer() *Capturer {
	return NewCapturer(DefaultWalker(), MaxFrames)
}

// Available reports whether captures can succeed at all.
func (c *Capturer) Available() bool {
	return c != nil && c.walker != nil
}

// Capture renders the trace for ctx, or for the calling goroutine when ctx
// is nil. In the latter case the Capture frame itself is skipped.
func (c *Capturer) Capture(ctx *Context) (trace string, err error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			trace = ""
			err = fmt.Errorf("%w: %v", ErrCaptureFailed, r)
		}
	}()

	skip := 0
	if ctx == nil {
		skip = 1
	}

	trace, err = c.walker.RenderFrames(skip, c.maxFrames, ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return trace, nil
}
