package testutil

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/triage/internal/logging"
)

// MockCall records a call to a mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

// SinkRecord is one record written to a RecordingSink.
type SinkRecord struct {
	Category logging.Category
	Level    slog.Level
	Text     string
}

// RecordingSink implements triage.Sink and keeps everything written to it.
type RecordingSink struct {
	mu      sync.Mutex
	records []SinkRecord
	calls   []MockCall
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Write records a message.
func (s *RecordingSink) Write(category logging.Category, level slog.Level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, SinkRecord{Category: category, Level: level, Text: text})
	s.calls = append(s.calls, MockCall{Method: "Write", Args: category, Timestamp: time.Now()})
}

// Flush records the call.
func (s *RecordingSink) Flush() {
	s.recordCall("Flush")
}

// Shutdown records the call.
func (s *RecordingSink) Shutdown() {
	s.recordCall("Shutdown")
}

func (s *RecordingSink) recordCall(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, MockCall{Method: method, Timestamp: time.Now()})
}

// Records returns everything written so far.
func (s *RecordingSink) Records() []SinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SinkRecord{}, s.records...)
}

// Category returns the texts written to one category.
func (s *RecordingSink) Category(c logging.Category) []string {
	var out []string
	for _, r := range s.Records() {
		if r.Category == c {
			out = append(out, r.Text)
		}
	}
	return out
}

// Text joins every record with newlines.
func (s *RecordingSink) Text() string {
	var sb strings.Builder
	for _, r := range s.Records() {
		sb.WriteString(r.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Calls returns recorded calls.
func (s *RecordingSink) Calls() []MockCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockCall{}, s.calls...)
}

// CallCount returns number of calls to a method.
func (s *RecordingSink) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// MockFlagSource implements triage.FlagSource over fixed values.
type MockFlagSource struct {
	mu      sync.Mutex
	flags   map[string]uint64
	strings map[string]string
	err     error
	calls   []MockCall
}

// NewMockFlagSource creates a source answering from flags. Missing names
// read as zero.
func NewMockFlagSource(flags map[string]uint64) *MockFlagSource {
	m := &MockFlagSource{
		flags:   make(map[string]uint64, len(flags)),
		strings: make(map[string]string),
	}
	for k, v := range flags {
		m.flags[k] = v
	}
	return m
}

// WithString sets a string value.
func (m *MockFlagSource) WithString(name, value string) *MockFlagSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[name] = value
	return m
}

// WithError makes every read fail with err.
func (m *MockFlagSource) WithError(err error) *MockFlagSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// ReadFlag returns the numeric value of name.
func (m *MockFlagSource) ReadFlag(name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "ReadFlag", Args: name, Timestamp: time.Now()})
	if m.err != nil {
		return 0, fmt.Errorf("reading %s: %w", name, m.err)
	}
	return m.flags[name], nil
}

// ReadString returns the string value of name.
func (m *MockFlagSource) ReadString(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "ReadString", Args: name, Timestamp: time.Now()})
	if m.err != nil {
		return "", fmt.Errorf("reading %s: %w", name, m.err)
	}
	return m.strings[name], nil
}

// CallCount returns how many times name was read.
func (m *MockFlagSource) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Args == name {
			count++
		}
	}
	return count
}
