package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TRIAGE_CHECKS_CONTINUE_ON_ASSERT.
const EnvPrefix = "TRIAGE"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: EnvPrefix,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (TRIAGE_*)
// 3. Project config (.triage.yaml in current directory)
// 4. User config (~/.config/triage/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".triage")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "triage"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values. Every check flag defaults to its
// strictest setting: report, then fail fast.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.file", "")

	l.v.SetDefault("checks.continue_on_assert", false)
	l.v.SetDefault("checks.raise_on_assert", false)
	l.v.SetDefault("checks.raise_chance", 1)
	l.v.SetDefault("checks.debug_break_on_assert", false)
	l.v.SetDefault("checks.assert_stacktrace", true)
	l.v.SetDefault("checks.break_on_code", 0)
	l.v.SetDefault("checks.break_on_production_assert", false)
	l.v.SetDefault("checks.launch_debugger_on_assert", false)
	l.v.SetDefault("checks.consistency_checks", true)
	l.v.SetDefault("checks.debugger_command", "")
	l.v.SetDefault("checks.ignore_file", "")

	l.v.SetDefault("crash_dump.enabled", true)
	l.v.SetDefault("crash_dump.dir", ".triage/crashdumps")
	l.v.SetDefault("crash_dump.max_files", 10)
	l.v.SetDefault("crash_dump.include_env", false)
	l.v.SetDefault("crash_dump.include_system", true)

	l.v.SetDefault("monitor.enabled", false)
	l.v.SetDefault("monitor.interval", "30s")
	l.v.SetDefault("monitor.history_size", 120)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// FlagSource exposes the checks section as a per-flag source for the
// triage engine.
func (l *Loader) FlagSource() *FlagSource {
	return NewFlagSource(l.v, "checks")
}
