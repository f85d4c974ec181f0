package triage

import (
	"errors"
	"fmt"
	"io"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
)

// ErrOutOfMemory is returned by OutOfMemory.
var ErrOutOfMemory = errors.New("out of memory")

// ProductionFailFast reports a fatal check failure and terminates. It skips
// the ignore list, the reentrancy guard and every continue or retry
// setting; break_on_production_assert only adds a break before the report.
func (e *Engine) ProductionFailFast(file string, line int, expr string) {
	if e.settings.BreakOnProductionAssert() {
		e.step(e.d.Breaker)
	}

	r := &Report{File: file, Line: line, Expr: expr, Production: true}
	text := e.render(r, false)
	if r.Constrained {
		e.emitConstrained(r)
	} else {
		e.step(func() { e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, text) })
		e.step(func() { _, _ = io.WriteString(e.d.Console, text) })
		if e.d.DebugOutput != nil {
			e.step(func() { _, _ = io.WriteString(e.d.DebugOutput, text) })
		}
	}
	e.step(func() { e.d.Sink.Write(logging.CategoryTrace, logging.LevelFatal, r.traceLine()) })
	if e.d.OnReport != nil {
		e.step(func() { e.d.OnReport(r) })
	}
	e.flush()

	e.failFast(r)
	panic("unreachable")
}

// BreakOnCode traps into the debugger when code equals the configured
// break_on_code, and reports whether it did. Zero never matches.
func (e *Engine) BreakOnCode(code uint32) bool {
	target := e.settings.BreakOnCode()
	if target == 0 || code != target {
		return false
	}
	e.step(e.d.Breaker)
	return true
}

// OutOfMemory warns that an out-of-memory failure is being issued from
// file:line and returns ErrOutOfMemory.
func (e *Engine) OutOfMemory(file string, line int) error {
	e.step(func() {
		_, _ = fmt.Fprintf(e.d.Console,
			"WARNING: Out of memory condition being issued from: %s, line %d\n", file, line)
	})
	return ErrOutOfMemory
}
