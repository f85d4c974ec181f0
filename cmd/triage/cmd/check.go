package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/triage/internal/platform"
	"github.com/hugo-lorenzo-mato/triage/internal/triage"
)

var checkCmd = &cobra.Command{
	Use:   "check EXPR",
	Short: "Report a failed check through the configured engine",
	Long: `Report a failed check for EXPR at --file:--line and print the outcome.

With the default configuration a failed check fails fast: the process
writes a crash dump and exits with status 134. Use --continue to report
and carry on, or --debug-break to request a break.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var (
	checkFile        string
	checkLine        int
	checkConsistency bool
	checkNoThrow     bool
	checkGoroutines  int
	checkCode        string
	checkOOM         bool
	checkMetrics     bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkFile, "file", "cli", "source file reported for the check")
	checkCmd.Flags().IntVar(&checkLine, "line", 1, "source line reported for the check")
	checkCmd.Flags().BoolVar(&checkConsistency, "consistency", false, "report as a consistency check (never terminates)")
	checkCmd.Flags().BoolVar(&checkNoThrow, "nothrow", false, "use the no-throw entry point of the default engine")
	checkCmd.Flags().IntVar(&checkGoroutines, "goroutines", 1, "fail the check concurrently from N goroutines")
	checkCmd.Flags().StringVar(&checkCode, "code", "", "break first if this error code matches break_on_code")
	checkCmd.Flags().BoolVar(&checkOOM, "oom", false, "issue an out-of-memory failure instead")
	checkCmd.Flags().BoolVar(&checkMetrics, "metrics", false, "print outcome counters afterwards")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkLine <= 0 {
		return fmt.Errorf("--line must be positive, got %d", checkLine)
	}
	if checkGoroutines <= 0 {
		return fmt.Errorf("--goroutines must be positive, got %d", checkGoroutines)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	expr := args[0]

	if checkCode != "" {
		code, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(checkCode), "0x"), 16, 32)
		if err != nil {
			return fmt.Errorf("parsing --code: %w", err)
		}
		if app.Engine.BreakOnCode(uint32(code)) {
			fmt.Fprintf(out, "break requested for code 0x%08X\n", code)
		}
	}

	if checkOOM {
		return app.Engine.OutOfMemory(checkFile, checkLine)
	}

	mt := platform.NewMainThread()
	mt.Start(ctx)
	platform.Designate(mt)

	var printed sync.WaitGroup
	printed.Add(checkGoroutines)
	report := func(worker int, result string) {
		defer printed.Done()
		if checkGoroutines > 1 {
			fmt.Fprintf(out, "[%d] %s\n", worker, result)
			return
		}
		fmt.Fprintln(out, result)
	}

	var g errgroup.Group
	for i := 0; i < checkGoroutines; i++ {
		worker := i
		g.Go(func() error {
			result, err := failCheck(app.Engine, expr)
			if err != nil {
				printed.Done()
				return err
			}
			platform.RunWith2(mt, report, worker, result)
			return nil
		})
	}
	err = g.Wait()
	printed.Wait()
	if err != nil {
		return err
	}

	if checkMetrics {
		return writeMetrics(out, app.Registry)
	}
	return nil
}

// failCheck reports expr through the entry point selected by the flags
// and describes the result.
func failCheck(eng *triage.Engine, expr string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(*triage.FaultSignal); ok {
				err = sig
				return
			}
			panic(r)
		}
	}()

	switch {
	case checkConsistency:
		return "break: " + strconv.FormatBool(eng.CheckConsistency(checkFile, checkLine, expr)), nil
	case checkNoThrow:
		return "retry: " + strconv.FormatBool(triage.Check(checkFile, checkLine, expr)), nil
	default:
		return "outcome: " + eng.Triage(checkFile, checkLine, expr, false).String(), nil
	}
}
