package triage

import (
	"sync"
	"sync/atomic"
)

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultDeps   atomic.Pointer[Deps]
)

// SetDefault configures the process-wide engine returned by Default. It
// only has an effect before the first call to Default.
func SetDefault(d Deps) {
	defaultDeps.Store(&d)
}

// Default returns the process-wide engine, creating it on first use. Unless
// SetDefault ran first, it writes to stderr and reads no configuration, so
// every flag holds its strict fallback.
func Default() *Engine {
	defaultOnce.Do(func() {
		var d Deps
		if p := defaultDeps.Load(); p != nil {
			d = *p
		}
		defaultEngine = NewEngine(d)
	})
	return defaultEngine
}

// Assert triages a failed cond at the caller's location with the default
// engine.
func Assert(cond bool, expr string) {
	if cond {
		return
	}
	Default().assertAt(2, expr)
}

// Check is Default().CheckFailedNoThrow for callers that already know the
// location.
func Check(file string, line int, expr string) bool {
	return Default().CheckFailedNoThrow(file, line, expr, false)
}
