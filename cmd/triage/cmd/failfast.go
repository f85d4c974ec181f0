package cmd

import (
	"github.com/spf13/cobra"
)

var failFastCmd = &cobra.Command{
	Use:   "fail-fast EXPR",
	Short: "Report a fatal check failure and terminate",
	Long: `Report EXPR as a fatal check failure, write a crash dump and exit with
status 134. Ignore lists and continue/break settings do not apply.`,
	Args: cobra.ExactArgs(1),
	RunE: runFailFast,
}

var (
	failFastFile string
	failFastLine int
)

func init() {
	rootCmd.AddCommand(failFastCmd)
	failFastCmd.Flags().StringVar(&failFastFile, "file", "cli", "source file reported for the failure")
	failFastCmd.Flags().IntVar(&failFastLine, "line", 1, "source line reported for the failure")
}

func runFailFast(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()

	app.Engine.ProductionFailFast(failFastFile, failFastLine, args[0])
	return nil
}
