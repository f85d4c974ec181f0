package triage

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
	"github.com/hugo-lorenzo-mato/triage/internal/platform"
	"github.com/hugo-lorenzo-mato/triage/internal/stacktrace"
)

// Outcome is the terminal state of one triage.
type Outcome int

const (
	// OutcomeSuppressed means the location is ignored; nothing was emitted.
	OutcomeSuppressed Outcome = iota
	// OutcomeContinue means the report was emitted and the caller resumes.
	OutcomeContinue
	// OutcomeRetry means the caller should trap into the debugger.
	OutcomeRetry
	// OutcomeFailFast means the process is being terminated.
	OutcomeFailFast
	// OutcomeForcedBreak means recursion was too deep to report at all.
	OutcomeForcedBreak
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeContinue:
		return "continue"
	case OutcomeRetry:
		return "retry"
	case OutcomeFailFast:
		return "fail_fast"
	case OutcomeForcedBreak:
		return "forced_break"
	default:
		return "unknown"
	}
}

// Sink receives report text. *logging.Sink implements it. Implementations
// must not panic, though the engine recovers if they do.
type Sink interface {
	Write(category logging.Category, level slog.Level, text string)
	Flush()
	Shutdown()
}

// DebuggerLauncher starts an external debugger and blocks until it is
// ready. *debugger.Launcher implements it.
type DebuggerLauncher interface {
	Launch() bool
}

// Deps are the engine's collaborators. Nil fields get working defaults.
type Deps struct {
	// Flags backs Settings when Settings is nil.
	Flags    FlagSource
	Settings *Settings

	Sink Sink
	// Console receives the full report; defaults to stderr.
	Console io.Writer
	// DebugOutput optionally mirrors Console, e.g. to a debugger channel.
	DebugOutput io.Writer

	Capturer *stacktrace.Capturer
	Platform Platform
	Ignore   *IgnoreRegistry
	Guard    *Guard
	Arbiter  *Arbiter
	Launcher DebuggerLauncher
	Metrics  *Metrics

	Breaker          func()
	DebuggerAttached func() bool
	Executable       func() (string, error)
	Now              func() time.Time
	ThreadID         func() uint64

	// OnReport is called with every emitted report, before the decision.
	OnReport func(*Report)
}

// Engine runs the triage state machine. It is safe for concurrent use.
type Engine struct {
	d        Deps
	settings *Settings
}

// NewEngine creates an engine, filling defaults for missing collaborators.
func NewEngine(d Deps) *Engine {
	if d.Settings == nil {
		d.Settings = NewSettings(d.Flags)
	}
	if d.Sink == nil {
		d.Sink = nopSink{}
	}
	if d.Console == nil {
		d.Console = os.Stderr
	}
	if d.Capturer == nil {
		d.Capturer = stacktrace.NewDefaultCapturer()
	}
	if d.Platform == nil {
		d.Platform = NewProcessPlatform(nil)
	}
	if d.Ignore == nil {
		d.Ignore = NewIgnoreRegistry()
	}
	if d.Guard == nil {
		d.Guard = NewGuard()
	}
	if d.Arbiter == nil {
		d.Arbiter = NewArbiter()
	}
	if d.Breaker == nil {
		d.Breaker = Breakpoint
	}
	if d.DebuggerAttached == nil {
		d.DebuggerAttached = DebuggerAttached
	}
	if d.Executable == nil {
		d.Executable = os.Executable
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.ThreadID == nil {
		d.ThreadID = platform.ThreadID
	}
	return &Engine{d: d, settings: d.Settings}
}

// Settings returns the engine's cached configuration.
func (e *Engine) Settings() *Settings { return e.settings }

// Ignore returns the engine's ignore registry.
func (e *Engine) Ignore() *IgnoreRegistry { return e.d.Ignore }

// Guard returns the engine's reentrancy guard.
func (e *Engine) Guard() *Guard { return e.d.Guard }

// CheckFailed triages a failed check at file:line and reports whether the
// caller should trap into a debugger. constrained selects the low-memory
// report. A configured FaultSignal with the Propagate chance panics out of
// this call; FailFast never returns.
func (e *Engine) CheckFailed(file string, line int, expr string, constrained bool) bool {
	return e.Triage(file, line, expr, constrained) == OutcomeRetry
}

// CheckFailedNoThrow is CheckFailed for callers that cannot handle a panic.
// Any panic, a propagating FaultSignal included, requests a retry.
func (e *Engine) CheckFailedNoThrow(file string, line int, expr string, constrained bool) (retry bool) {
	defer func() {
		if r := recover(); r != nil {
			retry = true
		}
	}()
	return e.CheckFailed(file, line, expr, constrained)
}

// Triage runs the state machine and returns its terminal outcome.
func (e *Engine) Triage(file string, line int, expr string, constrained bool) Outcome {
	scope := e.d.Guard.Enter()
	defer scope.Release()

	// Too deep: the handler is likely failing itself. Do nothing that could
	// fail again.
	if scope.Exceeded() {
		e.step(e.d.Breaker)
		e.d.Metrics.recordOutcome(OutcomeForcedBreak)
		return OutcomeForcedBreak
	}

	if e.ignored(file, line) {
		e.d.Metrics.recordOutcome(OutcomeSuppressed)
		return OutcomeSuppressed
	}

	e.raise(file, line, expr)

	r := &Report{File: file, Line: line, Expr: expr, Constrained: constrained}
	text := e.render(r, e.settings.AssertStacktrace())
	e.emit(r, text)
	e.flush()

	return e.decide(r)
}

func (e *Engine) ignored(file string, line int) (ignored bool) {
	defer func() {
		if recover() != nil {
			ignored = false
		}
	}()
	return e.d.Ignore.ShouldIgnore(file, line)
}

// raise panics with a FaultSignal when raise_on_assert is set. A Swallow
// signal is recovered before raise returns.
func (e *Engine) raise(file string, line int, expr string) {
	if !e.settings.RaiseOnAssert() {
		return
	}
	sig := &FaultSignal{
		Code:   FaultCode,
		Chance: e.settings.RaiseChance(),
		File:   file,
		Line:   line,
		Expr:   expr,
	}
	e.d.Metrics.recordFault(sig.Chance)
	if sig.Chance == Propagate {
		panic(sig)
	}
	defer func() { _ = recover() }()
	panic(sig)
}

// render fills r and returns its text. The goroutine that wins the shared
// buffer gets a stack trace; others get a private trace-less report. Any
// failure while formatting downgrades r to a constrained report, whose text
// is empty because it is emitted piecewise from literals.
func (e *Engine) render(r *Report, wantStack bool) (text string) {
	if r.Constrained {
		return ""
	}

	owner := false
	defer func() {
		if owner {
			e.d.Arbiter.Release()
		}
		if rec := recover(); rec != nil {
			r.Constrained = true
			r.Stack = ""
			text = ""
		}
	}()

	exe, err := e.d.Executable()
	if err != nil {
		r.Constrained = true
		return ""
	}
	r.Executable = exe
	r.PID = os.Getpid()
	r.TID = e.d.ThreadID()
	r.Time = e.d.Now()

	if wantStack {
		owner = e.d.Arbiter.TryAcquire()
	}
	if owner {
		if trace, err := e.d.Capturer.Capture(nil); err == nil {
			r.Stack = trace
		} else {
			r.Degraded = true
		}
		b := r.AppendText(e.d.Arbiter.Buffer())
		if len(b) > SharedBufferSize {
			b = b[:SharedBufferSize]
		}
		return string(b)
	}

	if wantStack {
		r.Degraded = true
	}
	return string(r.AppendText(make([]byte, 0, privateBufferSize)))
}

// emit writes the report everywhere it belongs. Each destination is
// independent: one failing does not stop the others.
func (e *Engine) emit(r *Report, text string) {
	if r.Constrained {
		e.emitConstrained(r)
	} else {
		e.step(func() { e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, text) })
		e.step(func() { _, _ = io.WriteString(e.d.Console, text) })
		if e.d.DebugOutput != nil {
			e.step(func() { _, _ = io.WriteString(e.d.DebugOutput, text) })
		}
	}

	e.step(func() { e.d.Sink.Write(logging.CategoryTrace, slog.LevelInfo, r.traceLine()) })
	e.step(func() {
		for _, l := range r.logLines() {
			e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, l)
		}
	})

	if r.Degraded {
		e.d.Metrics.recordDegraded()
	}
	if e.d.OnReport != nil {
		e.step(func() { e.d.OnReport(r) })
	}
}

// emitConstrained writes only literals and caller-supplied strings, without
// concatenating them.
func (e *Engine) emitConstrained(r *Report) {
	for _, w := range []io.Writer{e.d.Console, e.d.DebugOutput} {
		if w == nil {
			continue
		}
		e.step(func() {
			_, _ = io.WriteString(w, lowMemoryNotice)
			_, _ = io.WriteString(w, "\n")
			_, _ = io.WriteString(w, r.File)
			_, _ = io.WriteString(w, "\n")
			_, _ = io.WriteString(w, r.Expr)
			_, _ = io.WriteString(w, "\n")
		})
	}
	e.step(func() {
		e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, lowMemoryNotice)
		e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, r.File)
		e.d.Sink.Write(logging.CategoryAssert, logging.LevelFatal, r.Expr)
	})
}

func (e *Engine) flush() {
	e.step(e.d.Sink.Flush)
	e.step(e.d.Platform.FlushOutput)
}

// decide applies the configured policy in fixed order: continue, retry,
// optional debugger launch, fail-fast.
func (e *Engine) decide(r *Report) Outcome {
	if e.settings.ContinueOnAssert() {
		e.d.Metrics.recordOutcome(OutcomeContinue)
		return OutcomeContinue
	}
	if e.debuggerAttached() || e.settings.DebugBreakOnAssert() {
		e.d.Metrics.recordOutcome(OutcomeRetry)
		return OutcomeRetry
	}
	if e.settings.LaunchDebuggerOnAssert() && e.launchDebugger() {
		e.d.Metrics.recordOutcome(OutcomeRetry)
		return OutcomeRetry
	}
	e.failFast(r)
	panic("unreachable")
}

func (e *Engine) debuggerAttached() (attached bool) {
	defer func() {
		if recover() != nil {
			attached = false
		}
	}()
	return e.d.DebuggerAttached()
}

func (e *Engine) launchDebugger() (ok bool) {
	if e.d.Launcher == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return e.d.Launcher.Launch()
}

// failFast shuts logging down, captures a dump and terminates. The
// termination call is the last thing that runs.
func (e *Engine) failFast(r *Report) {
	e.d.Metrics.recordOutcome(OutcomeFailFast)
	e.step(e.d.Sink.Shutdown)
	e.step(func() { e.d.Platform.CaptureDump(r) })
	e.d.Platform.TerminateUnrecoverable()
}

// step runs fn, discarding any panic it raises.
func (e *Engine) step(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Assert triages a failed cond at the caller's location and traps into the
// debugger when a retry is requested.
func (e *Engine) Assert(cond bool, expr string) {
	if cond {
		return
	}
	e.assertAt(2, expr)
}

func (e *Engine) assertAt(skip int, expr string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "?", 0
	}
	if e.CheckFailed(file, line, expr, false) {
		e.step(e.d.Breaker)
	}
}

type nopSink struct{}

func (nopSink) Write(logging.Category, slog.Level, string) {}
func (nopSink) Flush()                                     {}
func (nopSink) Shutdown()                                  {}
