package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/triage/internal/config"
	"github.com/hugo-lorenzo-mato/triage/internal/debugger"
	"github.com/hugo-lorenzo-mato/triage/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/triage/internal/testutil"
	"github.com/hugo-lorenzo-mato/triage/internal/triage"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("v1.2.3", "abc123def", "2026-01-15")
	t.Cleanup(func() { SetVersion("", "", "") })

	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "triage v1.2.3\n  commit: abc123def\n  built:  2026-01-15\n", stdout)
	assert.Equal(t, "v1.2.3", GetVersion())
}

func TestRootCommandFlags(t *testing.T) {
	for flag, key := range checkFlagBindings {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
		assert.NotEmpty(t, key)
	}
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"check", "fail-fast", "debugger", "dump", "doctor", "init", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestInitCommand(t *testing.T) {
	dir := testutil.TempDir(t)
	testutil.Chdir(t, dir)

	stdout, _, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, ".triage.yaml")

	written, err := os.ReadFile(filepath.Join(dir, ".triage.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, string(written))

	_, _, err = executeCommand(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = executeCommand(t, "init", "--force")
	require.NoError(t, err)
}

func TestInitCommand_ExplicitPath(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "nested", "triage.yaml")

	_, _, err := executeCommand(t, "init", "--config", path)
	require.NoError(t, err)

	cfg, err := config.NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)
	assert.NoError(t, config.ValidateConfig(cfg))
}

func writeTestDump(t *testing.T, dir string) {
	t.Helper()
	w := diagnostics.NewCrashDumpWriter(diagnostics.CrashDumpOptions{Dir: dir})
	_, err := w.WriteFailureDump(diagnostics.FailureInfo{
		File:       "svc.c",
		Line:       41,
		Expr:       "p != nil",
		Stack:      "    main.run                                    main.go:10\n",
		TID:        7,
		Production: true,
	})
	require.NoError(t, err)
}

func TestDumpCommand(t *testing.T) {
	cfg, path := testConfig(t)
	writeTestDump(t, cfg.CrashDump.Dir)

	stdout, _, err := executeCommand(t, "dump", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Failed fatal check: p != nil")
	assert.Contains(t, stdout, "File: svc.c Line: 41")
	assert.Contains(t, stdout, "main.run")
	assert.Contains(t, stdout, "Resources: ")
}

func TestDumpCommand_JSON(t *testing.T) {
	cfg, path := testConfig(t)
	writeTestDump(t, cfg.CrashDump.Dir)

	stdout, _, err := executeCommand(t, "dump", "--config", path, "--json")
	require.NoError(t, err)

	var dump diagnostics.CrashDump
	require.NoError(t, json.Unmarshal([]byte(stdout), &dump))
	require.NotNil(t, dump.Failure)
	assert.Equal(t, 41, dump.Failure.Line)
	assert.NotEmpty(t, dump.ID)
}

func TestDumpCommand_Empty(t *testing.T) {
	_, path := testConfig(t)

	_, _, err := executeCommand(t, "dump", "--config", path)
	assert.ErrorIs(t, err, diagnostics.ErrNoDumps)
}

func TestDoctorCommand(t *testing.T) {
	cfg, path := testConfig(t, func(c *config.Config) {
		c.Checks.DebuggerCommand = "gdb -p {pid}"
	})

	stdout, _, err := executeCommand(t, "doctor", "--config", path)
	require.NoError(t, err)

	for _, want := range []string{
		"Configuration", path,
		"Check settings", "continue_on_assert", "true",
		"Debugging", "stack capture", "gdb -p {pid}",
		"Crash dumps", "dump directory",
		"Host", "memory",
		"No problems found.",
	} {
		assert.Contains(t, stdout, want)
	}
	assert.DirExists(t, cfg.CrashDump.Dir)
}

func TestDebuggerCommand_Status(t *testing.T) {
	stdout, _, err := executeCommand(t, "debugger", "--status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "debugger attached: ")
}

func TestDebuggerCommand_NoCommand(t *testing.T) {
	_, path := testConfig(t)

	_, _, err := executeCommand(t, "debugger", "--config", path)
	assert.ErrorIs(t, err, debugger.ErrNoCommand)
}

func TestDebuggerCommand_Launch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh and an inherited pipe")
	}
	script := testutil.TempFile(t, testutil.TempDir(t), "attach.sh", "#!/bin/sh\necho ok >&$2\n")
	_, path := testConfig(t)

	stdout, _, err := executeCommand(t, "debugger", "--config", path,
		"--debugger", "/bin/sh "+script+" {pid} {signal}")
	require.NoError(t, err)
	assert.Contains(t, stdout, "debugger attached\n")
}

func TestNewApp_DebuggerCommandReadOnce(t *testing.T) {
	_, path := testConfig(t, func(c *config.Config) {
		c.Checks.DebuggerCommand = "gdb -p {pid}"
	})
	cfgFile = path
	t.Cleanup(resetCommands)

	app, err := newApp(context.Background(), io.Discard)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "gdb -p {pid}", app.Launcher.Command())

	require.NoError(t, rootCmd.PersistentFlags().Set("debugger", "lldb -p {pid}"))
	live, err := app.Loader.FlagSource().ReadString(triage.FlagDebuggerCommand)
	require.NoError(t, err)
	assert.Equal(t, "lldb -p {pid}", live)

	assert.Equal(t, "gdb -p {pid}", app.Launcher.Command(), "launcher uses the cached template")
	assert.Equal(t, "gdb -p {pid}", app.Engine.Settings().DebuggerCommand())
}
