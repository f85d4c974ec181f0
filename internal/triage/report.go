package triage

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
)

// lowMemoryNotice heads a constrained report. It is emitted as a literal,
// never formatted.
const lowMemoryNotice = "Assert failure (unable to format)"

// Report describes one failed check.
type Report struct {
	File       string
	Line       int
	Expr       string
	PID        int
	TID        uint64
	Time       time.Time
	Executable string
	Stack      string

	// Constrained reports carry only File and Expr, emitted as literals.
	Constrained bool
	// Degraded reports wanted a stack trace but could not get one.
	Degraded bool
	// Production marks reports from ProductionFailFast.
	Production bool
}

// AppendText appends the human-readable report to b.
func (r *Report) AppendText(b []byte) []byte {
	header := "Assert failure"
	if r.Production {
		header = "Fatal check failure"
	}
	b = fmt.Appendf(b, "\n%s(PID %d [0x%08x], Thread: %d [0x%04x]): %s\n",
		header, r.PID, r.PID, r.TID, r.TID, r.Expr)
	b = fmt.Appendf(b, "    File: %s Line: %d\n", r.File, r.Line)
	b = fmt.Appendf(b, "    Time: %s\n", r.Time.Format("2006-01-02 15:04:05.000 MST"))
	b = fmt.Appendf(b, "    Image: %s\n\n", r.Executable)
	if r.Stack != "" {
		b = append(b, r.Stack...)
	}
	return b
}

// String renders the report. Constrained reports render as their literals.
func (r *Report) String() string {
	if r.Constrained {
		return lowMemoryNotice + "\n" + r.File + "\n" + r.Expr + "\n"
	}
	return string(r.AppendText(nil))
}

// traceLine is the compact summary written to the trace category. The
// expression is left out since it may be arbitrarily long.
func (r *Report) traceLine() string {
	return fmt.Sprintf("ASSERT:%s, line:%d", r.File, r.Line)
}

// logLines are the records written to the assert category alongside the
// full report, matching what log scrapers look for.
func (r *Report) logLines() []string {
	t := r.Time
	return []string{
		fmt.Sprintf("FAILED ASSERT(PID %d [0x%08x], Thread: %d [0x%x]) (%s): File: %s, Line %d : %s",
			r.PID, r.PID, r.TID, r.TID, t.Format("1/2/2006: 03:04:05 pm"), r.File, r.Line, r.Expr),
		"RUNNING EXE: " + r.Executable,
	}
}

// FailureInfo converts the report for a crash dump.
func (r *Report) FailureInfo() diagnostics.FailureInfo {
	return diagnostics.FailureInfo{
		File:        r.File,
		Line:        r.Line,
		Expr:        r.Expr,
		Executable:  r.Executable,
		Stack:       r.Stack,
		PID:         r.PID,
		TID:         r.TID,
		Constrained: r.Constrained,
		Degraded:    r.Degraded,
		Production:  r.Production,
	}
}
