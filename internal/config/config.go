// Package config loads operator configuration for fault triage from files,
// environment variables and CLI flags.
package config

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Checks    ChecksConfig    `mapstructure:"checks"`
	CrashDump CrashDumpConfig `mapstructure:"crash_dump"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// LogConfig configures logging behavior. File is the destination of the
// diagnostic sink; empty means stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ChecksConfig holds the flags consulted when a check fails.
type ChecksConfig struct {
	ContinueOnAssert        bool   `mapstructure:"continue_on_assert"`
	RaiseOnAssert           bool   `mapstructure:"raise_on_assert"`
	RaiseChance             uint   `mapstructure:"raise_chance"`
	DebugBreakOnAssert      bool   `mapstructure:"debug_break_on_assert"`
	AssertStacktrace        bool   `mapstructure:"assert_stacktrace"`
	BreakOnCode             uint32 `mapstructure:"break_on_code"`
	BreakOnProductionAssert bool   `mapstructure:"break_on_production_assert"`
	LaunchDebuggerOnAssert  bool   `mapstructure:"launch_debugger_on_assert"`
	ConsistencyChecks       bool   `mapstructure:"consistency_checks"`
	DebuggerCommand         string `mapstructure:"debugger_command"`
	IgnoreFile              string `mapstructure:"ignore_file"`
}

// CrashDumpConfig configures forensic dumps written before fail-fast.
type CrashDumpConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir"`
	MaxFiles      int    `mapstructure:"max_files"`
	IncludeEnv    bool   `mapstructure:"include_env"`
	IncludeSystem bool   `mapstructure:"include_system"`
}

// MonitorConfig configures the resource monitor whose history is attached
// to crash dumps.
type MonitorConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Interval    string `mapstructure:"interval"`
	HistorySize int    `mapstructure:"history_size"`
}
