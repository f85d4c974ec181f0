package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateChecks(&cfg.Checks)
	v.validateCrashDump(&cfg.CrashDump)
	v.validateMonitor(&cfg.Monitor)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error, fatal")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateChecks(cfg *ChecksConfig) {
	if cfg.RaiseChance != 1 && cfg.RaiseChance != 2 {
		v.addError("checks.raise_chance", cfg.RaiseChance, "must be 1 (swallow) or 2 (propagate)")
	}

	if cfg.LaunchDebuggerOnAssert && strings.TrimSpace(cfg.DebuggerCommand) == "" {
		v.addError("checks.debugger_command", cfg.DebuggerCommand,
			"required when launch_debugger_on_assert is set")
	}
	if cfg.DebuggerCommand != "" && !strings.Contains(cfg.DebuggerCommand, "{pid}") {
		v.addError("checks.debugger_command", cfg.DebuggerCommand, "must reference {pid}")
	}

	if cfg.IgnoreFile != "" {
		if _, err := os.Stat(cfg.IgnoreFile); err != nil {
			v.addError("checks.ignore_file", cfg.IgnoreFile, "file not readable")
		}
	}
}

func (v *Validator) validateCrashDump(cfg *CrashDumpConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Dir == "" {
		v.addError("crash_dump.dir", cfg.Dir, "directory required")
	} else if !isValidPath(cfg.Dir) {
		v.addError("crash_dump.dir", cfg.Dir, "invalid directory path")
	}
	if cfg.MaxFiles <= 0 {
		v.addError("crash_dump.max_files", cfg.MaxFiles, "must be positive")
	}
}

func (v *Validator) validateMonitor(cfg *MonitorConfig) {
	if !cfg.Enabled {
		return
	}
	if d, err := time.ParseDuration(cfg.Interval); err != nil || d <= 0 {
		v.addError("monitor.interval", cfg.Interval, "invalid duration format")
	}
	if cfg.HistorySize <= 0 {
		v.addError("monitor.history_size", cfg.HistorySize, "must be positive")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
