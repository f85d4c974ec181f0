// Package debugger spawns an external debugger against the current process
// and waits for it to attach.
package debugger

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
)

// ErrNoCommand is returned when no debugger command is configured.
var ErrNoCommand = errors.New("no debugger command configured")

// Template placeholders substituted in every argument of the command.
const (
	PlaceholderPID    = "{pid}"
	PlaceholderSignal = "{signal}"
)

// Launcher starts the configured debugger. The command template is split on
// whitespace; {pid} becomes the current process id and {signal} the
// inherited handle the debugger uses to report that it has attached.
type Launcher struct {
	// Command returns the command template. It is read on every launch.
	Command func() string
	Logger  *logging.Logger

	// Only one debugger is spawned at a time.
	mu sync.Mutex

	// waitAttach blocks on the signal; nil means (*signal).wait.
	waitAttach func(*signal) error
}

// New creates a launcher reading its template from command.
func New(command func() string, logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{Command: command, Logger: logger.WithComponent("debugger")}
}

// Launch spawns the debugger and blocks until it signals, closes the signal
// handle or exits. It reports whether the debugger was spawned, not whether
// it attached, and never panics.
func (l *Launcher) Launch() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if err := l.Run(); err != nil {
		l.logger().Warn("debugger launch failed", "error", err)
		return false
	}
	return true
}

// Run is Launch with the failure reason. Once the debugger has started, Run
// succeeds even if waiting for its attach signal fails.
func (l *Launcher) Run() error {
	tmpl := ""
	if l.Command != nil {
		tmpl = l.Command()
	}
	if strings.TrimSpace(tmpl) == "" {
		return ErrNoCommand
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sig, err := newSignal()
	if err != nil {
		return fmt.Errorf("creating attach signal: %w", err)
	}
	defer sig.close()

	args := Expand(tmpl, os.Getpid(), sig.token())
	// #nosec G204 -- the debugger command comes from local configuration
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	sig.attach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", args[0], err)
	}
	sig.started()
	go func() { _ = cmd.Wait() }()

	l.logger().Info("waiting for debugger to attach",
		"command", args[0],
		"debugger_pid", cmd.Process.Pid,
	)
	wait := l.waitAttach
	if wait == nil {
		wait = (*signal).wait
	}
	if err := wait(sig); err != nil {
		l.logger().Warn("lost attach signal from debugger",
			"debugger_pid", cmd.Process.Pid,
			"error", err,
		)
	}
	return nil
}

func (l *Launcher) logger() *logging.Logger {
	if l.Logger == nil {
		return logging.NewNop()
	}
	return l.Logger
}

// Expand splits tmpl into arguments and substitutes the placeholders.
func Expand(tmpl string, pid int, signal string) []string {
	fields := strings.Fields(tmpl)
	r := strings.NewReplacer(PlaceholderPID, strconv.Itoa(pid), PlaceholderSignal, signal)
	for i, f := range fields {
		fields[i] = r.Replace(f)
	}
	return fields
}
