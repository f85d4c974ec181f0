package triage

// CheckConsistency reports a failed consistency check from code that
// inspects possibly corrupt state, such as a dump or another process. It
// never terminates, raises, captures a stack or launches a debugger, and it
// is a no-op when consistency_checks is off. It returns true when the
// caller should break.
func (e *Engine) CheckConsistency(file string, line int, expr string) bool {
	if !e.settings.ConsistencyChecks() {
		return false
	}

	scope := e.d.Guard.Enter()
	defer scope.Release()
	if scope.Exceeded() {
		e.d.Metrics.recordOutcome(OutcomeForcedBreak)
		return false
	}

	if e.ignored(file, line) {
		e.d.Metrics.recordOutcome(OutcomeSuppressed)
		return false
	}

	r := &Report{File: file, Line: line, Expr: expr}
	text := e.render(r, false)
	e.emit(r, text)
	e.flush()

	if e.settings.ContinueOnAssert() {
		e.d.Metrics.recordOutcome(OutcomeContinue)
		return false
	}
	if e.debuggerAttached() || e.settings.DebugBreakOnAssert() {
		e.d.Metrics.recordOutcome(OutcomeRetry)
		return true
	}
	e.d.Metrics.recordOutcome(OutcomeContinue)
	return false
}
