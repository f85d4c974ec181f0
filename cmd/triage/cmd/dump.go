package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Show the most recent crash dump",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

var (
	dumpJSON       bool
	dumpGoroutines bool
)

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVar(&dumpJSON, "json", false, "print the raw dump")
	dumpCmd.Flags().BoolVar(&dumpGoroutines, "goroutines", false, "include all goroutine stacks")
}

func runDump(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	dump, err := diagnostics.LoadLatestCrashDump(cfg.CrashDump.Dir)
	if err != nil {
		return fmt.Errorf("loading crash dump from %s: %w", cfg.CrashDump.Dir, err)
	}

	out := cmd.OutOrStdout()
	if dumpJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}
	printDump(out, dump)
	return nil
}

func printDump(out io.Writer, d *diagnostics.CrashDump) {
	fmt.Fprintf(out, "Crash dump %s\n", d.ID)
	fmt.Fprintf(out, "  Time:    %s\n", d.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "  Process: %d (%s %s/%s)\n", d.ProcessID, d.GoVersion, d.GOOS, d.GOARCH)
	if d.CommandPath != "" {
		fmt.Fprintf(out, "  Command: %s %v\n", d.CommandPath, d.CommandArgs)
	}

	if f := d.Failure; f != nil {
		kind := "check"
		if f.Production {
			kind = "fatal check"
		}
		fmt.Fprintf(out, "\nFailed %s: %s\n", kind, f.Expr)
		fmt.Fprintf(out, "  File: %s Line: %d\n", f.File, f.Line)
		fmt.Fprintf(out, "  Thread: %d\n", f.TID)
		if f.Constrained {
			fmt.Fprintln(out, "  Report was constrained (formatting failed)")
		}
		if f.Degraded {
			fmt.Fprintln(out, "  Stack trace unavailable")
		}
		if f.Stack != "" {
			fmt.Fprintf(out, "\n%s", f.Stack)
		}
	} else if d.PanicValue != "" {
		fmt.Fprintf(out, "\nPanic: %s\n", d.PanicValue)
	}

	rs := d.ResourceState
	fmt.Fprintf(out, "\nResources: %d goroutines, %d/%d fds, heap %.1f MB, %d failed checks\n",
		rs.Goroutines, rs.OpenFDs, rs.MaxFDs, rs.HeapAllocMB, rs.FailedChecks)
	if s := d.System; s != nil {
		fmt.Fprintf(out, "System: mem %.0f/%.0f MB, load %.2f\n", s.MemUsedMB, s.MemTotalMB, s.LoadAvg1)
	}

	if dumpGoroutines && d.Goroutines != "" {
		fmt.Fprintf(out, "\n%s\n", d.Goroutines)
	}
}
