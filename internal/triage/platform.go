package triage

import (
	"fmt"
	"os"
	"runtime"

	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
)

// FailFastExitCode is the status of a process terminated by fail-fast.
const FailFastExitCode = 134

// Platform is the set of process-level capabilities fail-fast needs.
type Platform interface {
	// FlushOutput flushes the standard streams.
	FlushOutput()
	// CaptureDump writes a crash dump if dumps are enabled. Best effort.
	CaptureDump(r *Report)
	// TerminateUnrecoverable ends the process without running deferred
	// calls. It does not return.
	TerminateUnrecoverable()
}

// DumpWriter persists crash dumps. *diagnostics.CrashDumpWriter implements it.
type DumpWriter interface {
	WriteFailureDump(info diagnostics.FailureInfo) (string, error)
}

// ProcessPlatform is the real Platform: it syncs stdout and stderr, writes
// dumps through Dumps when set, and exits with FailFastExitCode.
type ProcessPlatform struct {
	Dumps DumpWriter
	exit  func(int)
}

// NewProcessPlatform creates a platform. dumps may be nil.
func NewProcessPlatform(dumps DumpWriter) *ProcessPlatform {
	return &ProcessPlatform{Dumps: dumps, exit: os.Exit}
}

func (p *ProcessPlatform) FlushOutput() {
	_ = os.Stdout.Sync()
	_ = os.Stderr.Sync()
}

func (p *ProcessPlatform) CaptureDump(r *Report) {
	if p.Dumps == nil || r == nil {
		return
	}
	path, err := p.Dumps.WriteFailureDump(r.FailureInfo())
	if err != nil {
		fmt.Fprintf(os.Stderr, "crash dump failed: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "crash dump written: %s\n", path)
	_ = os.Stderr.Sync()
}

func (p *ProcessPlatform) TerminateUnrecoverable() {
	exit := p.exit
	if exit == nil {
		exit = os.Exit
	}
	exit(FailFastExitCode)
}

// Breakpoint traps into an attached debugger. Without one the process dies
// with SIGTRAP.
func Breakpoint() {
	runtime.Breakpoint()
}
