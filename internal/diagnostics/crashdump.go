package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
)

const (
	dumpPrefix = "crash-"
	dumpSuffix = ".json"

	// maxGoroutineDump bounds the all-goroutine stack text.
	maxGoroutineDump = 8 << 20
)

// ErrNoDumps is returned when a directory holds no crash dumps.
var ErrNoDumps = errors.New("no crash dumps found")

// FailureInfo describes the failed check that triggered a dump.
type FailureInfo struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Expr        string `json:"expr"`
	Executable  string `json:"executable,omitempty"`
	Stack       string `json:"stack,omitempty"`
	PID         int    `json:"pid"`
	TID         uint64 `json:"tid"`
	Constrained bool   `json:"constrained,omitempty"`
	Degraded    bool   `json:"degraded,omitempty"`
	Production  bool   `json:"production,omitempty"`
}

// CrashDump contains all information captured before termination.
type CrashDump struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ProcessID int       `json:"process_id"`
	GoVersion string    `json:"go_version"`
	GOOS      string    `json:"goos"`
	GOARCH    string    `json:"goarch"`

	// Exactly one of Failure and PanicValue is set.
	Failure    *FailureInfo `json:"failure,omitempty"`
	PanicValue string       `json:"panic_value,omitempty"`
	Goroutines string       `json:"goroutines,omitempty"`

	ResourceState   ResourceSnapshot   `json:"resource_state"`
	ResourceHistory []ResourceSnapshot `json:"resource_history,omitempty"`
	Process         *ProcessInfo       `json:"process,omitempty"`
	System          *SystemMetrics     `json:"system,omitempty"`

	CommandPath string   `json:"command_path,omitempty"`
	CommandArgs []string `json:"command_args,omitempty"`
	WorkDir     string   `json:"work_dir,omitempty"`

	RedactedEnv map[string]string `json:"redacted_env,omitempty"`
}

// Invocation records how the process was started.
type Invocation struct {
	Path    string
	Args    []string
	WorkDir string
}

// CrashDumpOptions configures a CrashDumpWriter.
type CrashDumpOptions struct {
	Dir           string
	MaxFiles      int
	IncludeStacks bool
	IncludeEnv    bool
	IncludeSystem bool
	Logger        *slog.Logger
	Monitor       *ResourceMonitor
}

// CrashDumpWriter generates and persists crash dumps.
type CrashDumpWriter struct {
	opts    CrashDumpOptions
	system  *SystemMetricsCollector
	current atomic.Pointer[Invocation]

	mu sync.Mutex // serializes file operations
}

// NewCrashDumpWriter creates a crash dump writer.
func NewCrashDumpWriter(opts CrashDumpOptions) *CrashDumpWriter {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 10
	}
	if opts.Dir == "" {
		opts.Dir = ".triage/crashdumps"
	}
	w := &CrashDumpWriter{opts: opts}
	if opts.IncludeSystem {
		w.system = NewSystemMetricsCollector()
	}
	return w
}

// Dir returns the dump directory.
func (w *CrashDumpWriter) Dir() string {
	return w.opts.Dir
}

// SetInvocation records the command line reported in later dumps.
func (w *CrashDumpWriter) SetInvocation(inv *Invocation) {
	w.current.Store(inv)
}

// WriteFailureDump persists a dump for a failed check.
func (w *CrashDumpWriter) WriteFailureDump(info FailureInfo) (string, error) {
	dump := w.newDump()
	dump.Failure = &info
	return w.persist(&dump)
}

// WriteCrashDump persists a dump for a recovered panic.
func (w *CrashDumpWriter) WriteCrashDump(panicValue interface{}) (string, error) {
	dump := w.newDump()
	dump.PanicValue = fmt.Sprintf("%v", panicValue)
	return w.persist(&dump)
}

func (w *CrashDumpWriter) newDump() CrashDump {
	dump := CrashDump{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ProcessID: os.Getpid(),
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
	}

	if w.opts.IncludeStacks {
		dump.Goroutines = allGoroutines()
	}

	if w.opts.Monitor != nil {
		dump.ResourceState = w.opts.Monitor.TakeSnapshot()
		dump.ResourceHistory = w.opts.Monitor.GetHistory()
	}

	if w.system != nil {
		stats := w.system.Collect()
		dump.System = &stats
		dump.Process = CollectProcess()
	}

	if inv := w.current.Load(); inv != nil {
		dump.CommandPath = inv.Path
		dump.CommandArgs = inv.Args
		dump.WorkDir = inv.WorkDir
	}

	if w.opts.IncludeEnv {
		dump.RedactedEnv = redactEnvironment(os.Environ())
	}
	return dump
}

func (w *CrashDumpWriter) persist(dump *CrashDump) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.opts.Dir, 0o750); err != nil {
		return "", fmt.Errorf("creating crash dump dir: %w", err)
	}

	filename := fmt.Sprintf("%s%s-%s%s", dumpPrefix,
		dump.Timestamp.Format("2006-01-02T15-04-05.000"), dump.ID[:8], dumpSuffix)
	path := filepath.Join(w.opts.Dir, filename)

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling crash dump: %w", err)
	}

	if err := writeDumpFile(path, data); err != nil {
		return "", fmt.Errorf("writing crash dump: %w", err)
	}

	if err := w.cleanupOldDumps(); err != nil && w.opts.Logger != nil {
		w.opts.Logger.Warn("crash dump rotation failed", "dir", w.opts.Dir, "error", err)
	}

	return path, nil
}

// RecoverAndReturn recovers from panic, writes a dump, and reports the panic
// as an error.
// Usage: defer writer.RecoverAndReturn(&err)
//
//nolint:gocritic // ptrToRefParam: errPtr must be a pointer to modify the caller's error variable
func (w *CrashDumpWriter) RecoverAndReturn(errPtr *error) {
	if r := recover(); r != nil {
		path, dumpErr := w.WriteCrashDump(r)
		if w.opts.Logger != nil {
			if dumpErr != nil {
				w.opts.Logger.Error("failed to write crash dump", "error", dumpErr, "panic", r)
			} else {
				w.opts.Logger.Error("crash dump written after panic", "path", path, "panic", r)
			}
		}
		*errPtr = fmt.Errorf("panicked: %v (dump: %s)", r, path)
	}
}

// cleanupOldDumps removes the oldest dumps beyond MaxFiles.
func (w *CrashDumpWriter) cleanupOldDumps() error {
	dumps, err := listDumps(w.opts.Dir)
	if err != nil {
		return err
	}

	for len(dumps) > w.opts.MaxFiles {
		path := filepath.Join(w.opts.Dir, dumps[0].name)
		if err := os.Remove(path); err != nil && w.opts.Logger != nil {
			w.opts.Logger.Warn("failed to remove old crash dump", "path", path, "error", err)
		}
		dumps = dumps[1:]
	}
	return nil
}

type dumpEntry struct {
	name    string
	modTime time.Time
}

// listDumps returns the dumps in dir, oldest first. Names embed a
// millisecond timestamp, which breaks ties in modification time.
func listDumps(dir string) ([]dumpEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dumps []dumpEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), dumpPrefix) || !strings.HasSuffix(e.Name(), dumpSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dumps = append(dumps, dumpEntry{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(dumps, func(i, j int) bool {
		if !dumps[i].modTime.Equal(dumps[j].modTime) {
			return dumps[i].modTime.Before(dumps[j].modTime)
		}
		return dumps[i].name < dumps[j].name
	})
	return dumps, nil
}

func allGoroutines() string {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxGoroutineDump {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

func redactEnvironment(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || key == "" {
			continue
		}
		if logging.IsSensitiveKey(key) {
			result[key] = "[REDACTED]"
		} else {
			result[key] = value
		}
	}
	return result
}

// LoadLatestCrashDump loads the most recent crash dump from dir.
func LoadLatestCrashDump(dir string) (*CrashDump, error) {
	dumps, err := listDumps(dir)
	if err != nil {
		return nil, fmt.Errorf("reading crash dump dir: %w", err)
	}
	if len(dumps) == 0 {
		return nil, ErrNoDumps
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening crash dump dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(dumps[len(dumps)-1].name)
	if err != nil {
		return nil, fmt.Errorf("reading crash dump: %w", err)
	}

	var dump CrashDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parsing crash dump: %w", err)
	}
	return &dump, nil
}
