package testutil

import (
	"path/filepath"
	"testing"

	"github.com/hugo-lorenzo-mato/triage/internal/config"
)

// NewTestConfig creates a Config with sensible defaults for tests: checks
// continue, stacks are captured, crash dumps land in a temp dir and the
// monitor is off. Use functional options to override specific fields.
func NewTestConfig(t *testing.T, opts ...func(*config.Config)) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			File:   filepath.Join(dir, "triage.log"),
		},
		Checks: config.ChecksConfig{
			ContinueOnAssert: true,
			RaiseChance:      1,
			AssertStacktrace: true,
		},
		CrashDump: config.CrashDumpConfig{
			Enabled:  true,
			Dir:      filepath.Join(dir, "crashdumps"),
			MaxFiles: 5,
		},
		Monitor: config.MonitorConfig{
			Interval:    "1s",
			HistorySize: 10,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
