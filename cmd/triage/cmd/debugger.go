package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/triage/internal/triage"
)

var debuggerCmd = &cobra.Command{
	Use:   "debugger",
	Short: "Launch the configured debugger against this process",
	Long: `Spawn checks.debugger_command with {pid} and {signal} substituted and
wait until the debugger signals that it has attached.

With --status, only report whether a debugger is attached.`,
	Args: cobra.NoArgs,
	RunE: runDebugger,
}

var debuggerStatus bool

func init() {
	rootCmd.AddCommand(debuggerCmd)
	debuggerCmd.Flags().BoolVar(&debuggerStatus, "status", false, "report whether a debugger is attached")
}

func runDebugger(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if debuggerStatus {
		fmt.Fprintf(out, "pid %d, debugger attached: %t\n", os.Getpid(), triage.DebuggerAttached())
		return nil
	}

	app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintf(out, "pid %d, waiting for debugger...\n", os.Getpid())
	if err := app.Launcher.Run(); err != nil {
		return fmt.Errorf("launching debugger: %w", err)
	}
	fmt.Fprintln(out, "debugger attached")
	return nil
}
