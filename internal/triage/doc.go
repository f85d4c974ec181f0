// Package triage decides what happens after an internal check fails.
//
// Each failed check is routed through an Engine, which consults the ignore
// registry, bounds recursion with a Guard, arbitrates a shared diagnostic
// buffer, formats and emits a Report, and finally settles on one of
// continue, retry (break into a debugger) or fail-fast (crash dump and
// unrecoverable termination).
//
// The engine takes no blocking locks. Its only cross-goroutine coordination
// is the guard counter, the arbiter flag and the per-flag settings state,
// all atomics. A failure raised while a flag is being read sees the strict
// fallback for that flag rather than waiting on the read.
// Goroutines that lose the buffer race still report, just without a stack
// trace.
//
// Collaborators are injected through Deps; Default returns a process-wide
// engine wired to stderr and the runtime stack walker for use by Assert and
// Check.
package triage
