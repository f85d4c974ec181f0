package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Failed-check triage for native services",
	Long: `triage decides what happens when an internal consistency check fails:
report it, suppress it, break into a debugger, raise a fault signal or
terminate the process with a crash dump.

The subcommands drive the same engine a service embeds, so a configuration
can be exercised before it is deployed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

// checkFlagBindings maps persistent flags to configuration keys.
var checkFlagBindings = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-file":        "log.file",
	"continue":        "checks.continue_on_assert",
	"raise":           "checks.raise_on_assert",
	"raise-chance":    "checks.raise_chance",
	"debug-break":     "checks.debug_break_on_assert",
	"stacktrace":      "checks.assert_stacktrace",
	"launch-debugger": "checks.launch_debugger_on_assert",
	"debugger":        "checks.debugger_command",
	"ignore-file":     "checks.ignore_file",
	"dump-dir":        "crash_dump.dir",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .triage.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "auto", "log format (auto, text, json)")
	pf.String("log-file", "", "diagnostic sink file (default: stderr)")

	pf.Bool("continue", false, "report failed checks and carry on")
	pf.Bool("raise", false, "raise a fault signal on failed checks")
	pf.Uint("raise-chance", 1, "fault signal handling: 1 swallow, 2 propagate")
	pf.Bool("debug-break", false, "break into the debugger on failed checks")
	pf.Bool("stacktrace", true, "capture stack traces in reports")
	pf.Bool("launch-debugger", false, "launch the configured debugger before failing fast")
	pf.String("debugger", "", "debugger command template ({pid}, {signal})")
	pf.String("ignore-file", "", "YAML list of check locations to ignore")
	pf.String("dump-dir", "", "crash dump directory")

	for flag, key := range checkFlagBindings {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}
