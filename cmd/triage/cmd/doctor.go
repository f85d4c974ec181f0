package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/triage/internal/stacktrace"
	"github.com/hugo-lorenzo-mato/triage/internal/triage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the triage configuration and environment",
	Long: `Show the effective check settings, any configuration that could not be
read, and whether stack capture, crash dumps and debugger attach will work
on this host.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// lowMemoryMB is the available memory below which doctor warns that
// reports may be constrained.
const lowMemoryMB = 256

var (
	colorOK   = lipgloss.Color("#10B981")
	colorWarn = lipgloss.Color("#F59E0B")
	colorBad  = lipgloss.Color("#EF4444")
	colorMute = lipgloss.Color("#9CA3AF")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle   = lipgloss.NewStyle().Width(28).Foreground(colorMute)
	okStyle      = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	badStyle     = lipgloss.NewStyle().Foreground(colorBad)
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type doctorReport struct {
	out      io.Writer
	problems int
}

func (d *doctorReport) heading(title string) {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, headingStyle.Render(title))
}

func (d *doctorReport) row(label, value string) {
	fmt.Fprintf(d.out, "  %s %s\n", labelStyle.Render(label), value)
}

func (d *doctorReport) ok(label, value string) {
	d.row(label, okStyle.Render("✓ ")+value)
}

func (d *doctorReport) warn(label, value string) {
	d.row(label, warnStyle.Render("⚠ ")+value)
}

func (d *doctorReport) bad(label, value string) {
	d.problems++
	d.row(label, badStyle.Render("✗ ")+value)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd.Context(), io.Discard)
	if err != nil {
		return err
	}
	defer app.Close()

	d := &doctorReport{out: cmd.OutOrStdout()}

	d.heading("Configuration")
	if f := app.Loader.ConfigFile(); f != "" {
		d.ok("config file", f)
	} else {
		d.warn("config file", "none found, using defaults")
	}

	s := app.Engine.Settings()
	d.heading("Check settings")
	d.row("continue_on_assert", fmt.Sprint(s.ContinueOnAssert()))
	d.row("raise_on_assert", fmt.Sprintf("%t (%s)", s.RaiseOnAssert(), s.RaiseChance()))
	d.row("debug_break_on_assert", fmt.Sprint(s.DebugBreakOnAssert()))
	d.row("assert_stacktrace", fmt.Sprint(s.AssertStacktrace()))
	d.row("break_on_code", fmt.Sprintf("0x%08X", s.BreakOnCode()))
	d.row("break_on_production_assert", fmt.Sprint(s.BreakOnProductionAssert()))
	d.row("launch_debugger_on_assert", fmt.Sprint(s.LaunchDebuggerOnAssert()))
	d.row("consistency_checks", fmt.Sprint(s.ConsistencyChecks()))
	for _, msg := range s.ReadErrors() {
		d.bad("unreadable setting", msg+" (strict fallback in effect)")
	}

	d.heading("Debugging")
	if stacktrace.NewDefaultCapturer().Available() {
		d.ok("stack capture", "available")
	} else {
		d.warn("stack capture", "unavailable on this build, reports carry no trace")
	}
	d.row("debugger attached", fmt.Sprint(triage.DebuggerAttached()))
	if cmdTmpl := s.DebuggerCommand(); cmdTmpl != "" {
		d.ok("debugger command", cmdTmpl)
	} else {
		d.row("debugger command", "not configured")
	}
	if n := app.Engine.Ignore().Len(); n > 0 {
		d.row("ignored locations", fmt.Sprint(n))
	}

	d.heading("Crash dumps")
	if app.Dumps == nil {
		d.warn("crash dumps", "disabled")
	} else {
		checkDumpDir(d, app.Dumps.Dir())
	}

	d.heading("Host")
	sys := diagnostics.NewSystemMetricsCollector().Collect()
	d.row("cpu", fmt.Sprintf("%s (%d cores, %d threads)", sys.CPUModel, sys.CPUCores, sys.CPUThreads))
	mem := fmt.Sprintf("%.0f MB available of %.0f MB", sys.MemAvailableMB, sys.MemTotalMB)
	if sys.LowMemory(lowMemoryMB) {
		d.warn("memory", mem+", reports may be constrained")
	} else {
		d.ok("memory", mem)
	}
	open, limit := diagnostics.CountFDs()
	d.row("file descriptors", fmt.Sprintf("%d open, limit %d", open, limit))

	fmt.Fprintln(d.out)
	if d.problems > 0 {
		return fmt.Errorf("%d problem(s) found", d.problems)
	}
	fmt.Fprintln(d.out, okStyle.Render("No problems found."))
	return nil
}

func checkDumpDir(d *doctorReport, dir string) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		d.bad("dump directory", fmt.Sprintf("%s: %v", dir, err))
		return
	}
	tmp, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		d.bad("dump directory", fmt.Sprintf("%s is not writable: %v", dir, err))
		return
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	d.ok("dump directory", abs)

	if latest, err := diagnostics.LoadLatestCrashDump(dir); err == nil {
		d.row("latest dump", latest.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
}
