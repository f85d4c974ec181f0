package triage

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
	"github.com/hugo-lorenzo-mato/triage/internal/stacktrace"
)

var errTerminated = errors.New("terminated")

// eventLog records the order of side effects across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type sinkRecord struct {
	Category logging.Category
	Level    slog.Level
	Text     string
}

type fakeSink struct {
	mu        sync.Mutex
	records   []sinkRecord
	events    *eventLog
	panicOn   logging.Category
	shutdowns int
}

func (s *fakeSink) Write(category logging.Category, level slog.Level, text string) {
	if s.panicOn != "" && category == s.panicOn {
		panic("sink write failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{category, level, text})
}

func (s *fakeSink) Flush() { s.events.add("sink.flush") }

func (s *fakeSink) Shutdown() {
	s.mu.Lock()
	s.shutdowns++
	s.mu.Unlock()
	s.events.add("sink.shutdown")
}

func (s *fakeSink) all() []sinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkRecord(nil), s.records...)
}

// fullReports returns the report texts, skipping trace and log lines.
func (s *fakeSink) fullReports() []string {
	var out []string
	for _, r := range s.all() {
		if r.Category == logging.CategoryAssert && strings.Contains(r.Text, "Image: ") {
			out = append(out, r.Text)
		}
	}
	return out
}

func (s *fakeSink) category(c logging.Category) []string {
	var out []string
	for _, r := range s.all() {
		if r.Category == c {
			out = append(out, r.Text)
		}
	}
	return out
}

type fakePlatform struct {
	events     *eventLog
	dumps      []*Report
	terminates atomic.Int32
	// returns makes TerminateUnrecoverable return instead of panicking.
	returns bool
}

func (p *fakePlatform) FlushOutput() { p.events.add("platform.flush") }

func (p *fakePlatform) CaptureDump(r *Report) {
	p.dumps = append(p.dumps, r)
	p.events.add("platform.dump")
}

func (p *fakePlatform) TerminateUnrecoverable() {
	p.terminates.Add(1)
	p.events.add("platform.terminate")
	if !p.returns {
		panic(errTerminated)
	}
}

type fakeFlags struct {
	mu    sync.Mutex
	vals  map[string]uint64
	strs  map[string]string
	errs  map[string]error
	reads map[string]int
	panic bool
}

func newFakeFlags(vals map[string]uint64) *fakeFlags {
	copied := make(map[string]uint64, len(vals))
	for k, v := range vals {
		copied[k] = v
	}
	return &fakeFlags{
		vals:  copied,
		strs:  map[string]string{},
		errs:  map[string]error{},
		reads: map[string]int{},
	}
}

func (f *fakeFlags) ReadFlag(name string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[name]++
	if f.panic {
		panic("config store unavailable")
	}
	if err := f.errs[name]; err != nil {
		return 0, err
	}
	return f.vals[name], nil
}

func (f *fakeFlags) ReadString(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[name]++
	if f.panic {
		panic("config store unavailable")
	}
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.strs[name], nil
}

func (f *fakeFlags) readCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[name]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubWalker struct{ trace string }

func (w stubWalker) RenderFrames(int, int, *stacktrace.Context) (string, error) {
	return w.trace, nil
}

type failingWalker struct{}

func (failingWalker) RenderFrames(int, int, *stacktrace.Context) (string, error) {
	panic("walker crashed")
}

type fakeLauncher struct {
	ok    bool
	calls atomic.Int32
}

func (l *fakeLauncher) Launch() bool {
	l.calls.Add(1)
	return l.ok
}

const stubTrace = "    main.handler                                             handler.go:12\n"

var fixedTime = time.Date(2026, 3, 4, 15, 6, 7, 0, time.Local)

type harness struct {
	eng      *Engine
	flags    *fakeFlags
	sink     *fakeSink
	platform *fakePlatform
	console  *syncBuffer
	events   *eventLog
	breaks   atomic.Int32
	reports  chan *Report
	registry *prometheus.Registry
	metrics  *Metrics
}

func newHarness(t *testing.T, vals map[string]uint64, mutate ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		flags:    newFakeFlags(vals),
		console:  &syncBuffer{},
		events:   &eventLog{},
		reports:  make(chan *Report, 64),
		registry: prometheus.NewRegistry(),
	}
	h.sink = &fakeSink{events: h.events}
	h.platform = &fakePlatform{events: h.events}

	m, err := NewMetrics(h.registry)
	require.NoError(t, err)
	h.metrics = m

	d := Deps{
		Flags:            h.flags,
		Sink:             h.sink,
		Console:          h.console,
		Capturer:         stacktrace.NewCapturer(stubWalker{trace: stubTrace}, 0),
		Platform:         h.platform,
		Metrics:          m,
		Breaker:          func() { h.breaks.Add(1) },
		DebuggerAttached: func() bool { return false },
		Executable:       func() (string, error) { return "/opt/app/bin/app", nil },
		Now:              func() time.Time { return fixedTime },
		ThreadID:         func() uint64 { return 42 },
		OnReport:         func(r *Report) { h.reports <- r },
	}
	for _, fn := range mutate {
		fn(&d)
	}
	h.eng = NewEngine(d)
	return h
}

// collected drains the reports seen so far.
func (h *harness) collected() []*Report {
	var out []*Report
	for {
		select {
		case r := <-h.reports:
			out = append(out, r)
		default:
			return out
		}
	}
}

// terminates runs fn and reports whether it ended in fail-fast termination.
func terminates(fn func()) (terminated bool) {
	defer func() {
		if r := recover(); r != nil {
			if r == errTerminated {
				terminated = true
				return
			}
			panic(r)
		}
	}()
	fn()
	return false
}

var continueFlags = map[string]uint64{FlagContinueOnAssert: 1, FlagAssertStacktrace: 1}
