package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/triage/internal/config"
	"github.com/hugo-lorenzo-mato/triage/internal/testutil"
)

// executeCommand runs the root command with args and restores every flag
// afterwards. Commands share global state, so callers must not run in
// parallel.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(resetCommands)

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func resetCommands() {
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		restore := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(restore)
		c.PersistentFlags().VisitAll(restore)
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)
}

// writeConfig renders cfg as a config file and returns its path.
func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	doc := map[string]any{
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
			"file":   cfg.Log.File,
		},
		"checks": map[string]any{
			"continue_on_assert":         cfg.Checks.ContinueOnAssert,
			"raise_on_assert":            cfg.Checks.RaiseOnAssert,
			"raise_chance":               cfg.Checks.RaiseChance,
			"debug_break_on_assert":      cfg.Checks.DebugBreakOnAssert,
			"assert_stacktrace":          cfg.Checks.AssertStacktrace,
			"break_on_code":              cfg.Checks.BreakOnCode,
			"break_on_production_assert": cfg.Checks.BreakOnProductionAssert,
			"launch_debugger_on_assert":  cfg.Checks.LaunchDebuggerOnAssert,
			"consistency_checks":         cfg.Checks.ConsistencyChecks,
			"debugger_command":           cfg.Checks.DebuggerCommand,
			"ignore_file":                cfg.Checks.IgnoreFile,
		},
		"crash_dump": map[string]any{
			"enabled":        cfg.CrashDump.Enabled,
			"dir":            cfg.CrashDump.Dir,
			"max_files":      cfg.CrashDump.MaxFiles,
			"include_env":    cfg.CrashDump.IncludeEnv,
			"include_system": cfg.CrashDump.IncludeSystem,
		},
		"monitor": map[string]any{
			"enabled":      cfg.Monitor.Enabled,
			"interval":     cfg.Monitor.Interval,
			"history_size": cfg.Monitor.HistorySize,
		},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "triage.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// testConfig writes a test configuration and returns it with its path.
func testConfig(t *testing.T, opts ...func(*config.Config)) (*config.Config, string) {
	t.Helper()
	cfg := testutil.NewTestConfig(t, opts...)
	return cfg, writeConfig(t, cfg)
}
