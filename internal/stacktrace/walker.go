//go:build !tinygo

package stacktrace

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	funcColumn     = 56
	locationColumn = 48
)

// DefaultWalker returns the runtime-backed walker.
func DefaultWalker() Walker {
	return RuntimeWalker{}
}

// RuntimeWalker walks goroutine stacks with runtime.Callers.
type RuntimeWalker struct{}

// RenderFrames renders up to max frames. With a nil ctx the walk starts at
// the caller of RenderFrames' caller, after skipping skip further frames.
func (RuntimeWalker) RenderFrames(skip, max int, ctx *Context) (string, error) {
	if max <= 0 {
		return "", nil
	}

	var pcs []uintptr
	if ctx != nil {
		pcs = ctx.PCs
		if skip < len(pcs) {
			pcs = pcs[skip:]
		} else {
			pcs = nil
		}
	} else {
		pcs = make([]uintptr, max)
		// 0 is runtime.Callers, 1 is RenderFrames, 2 is the Capture wrapper.
		n := runtime.Callers(2+skip, pcs)
		pcs = pcs[:n]
	}
	if len(pcs) == 0 {
		return "", fmt.Errorf("no frames")
	}

	var sb strings.Builder
	sb.Grow(max * (funcColumn + locationColumn + 8))

	frames := runtime.CallersFrames(pcs)
	for i := 0; i < max; i++ {
		frame, more := frames.Next()
		writeFrame(&sb, frame)
		if !more {
			break
		}
	}
	return sb.String(), nil
}

// writeFrame renders one frame as "    <func> <file:line>" with both columns
// padded or truncated to a fixed width.
func writeFrame(sb *strings.Builder, frame runtime.Frame) {
	fn := frame.Function
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if fn == "" {
		fn = fmt.Sprintf("0x%x", frame.PC)
	}
	loc := "?"
	if frame.File != "" {
		loc = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
	}
	fmt.Fprintf(sb, "    %-*.*s %-*.*s\n",
		funcColumn, funcColumn, fn,
		locationColumn, locationColumn, loc)
}
