package triage

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// IgnoreEntry marks a check location. Entries are never removed.
type IgnoreEntry struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Ignore bool   `yaml:"ignore"`
}

// IgnoreRegistry holds the locations whose failures are suppressed for the
// rest of the run. Lookups are lock-free; appends copy the slice.
type IgnoreRegistry struct {
	entries atomic.Pointer[[]IgnoreEntry]
	mu      sync.Mutex // serializes writers
}

// NewIgnoreRegistry creates an empty registry.
func NewIgnoreRegistry() *IgnoreRegistry {
	return &IgnoreRegistry{}
}

// ShouldIgnore reports whether failures at file:line are suppressed. File
// names compare case-insensitively; lines compare exactly.
func (r *IgnoreRegistry) ShouldIgnore(file string, line int) bool {
	if r == nil {
		return false
	}
	p := r.entries.Load()
	if p == nil {
		return false
	}
	for _, e := range *p {
		if e.Line == line && e.Ignore && strings.EqualFold(e.File, file) {
			return true
		}
	}
	return false
}

// Add suppresses file:line.
func (r *IgnoreRegistry) Add(file string, line int) {
	r.AddEntry(IgnoreEntry{File: file, Line: line, Ignore: true})
}

// AddEntry appends e as is.
func (r *IgnoreRegistry) AddEntry(e IgnoreEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next []IgnoreEntry
	if p := r.entries.Load(); p != nil {
		next = make([]IgnoreEntry, len(*p), len(*p)+1)
		copy(next, *p)
	}
	next = append(next, e)
	r.entries.Store(&next)
}

// Entries returns a copy of all entries in insertion order.
func (r *IgnoreRegistry) Entries() []IgnoreEntry {
	p := r.entries.Load()
	if p == nil {
		return nil
	}
	out := make([]IgnoreEntry, len(*p))
	copy(out, *p)
	return out
}

// Len returns the number of entries.
func (r *IgnoreRegistry) Len() int {
	if p := r.entries.Load(); p != nil {
		return len(*p)
	}
	return 0
}

// ignoreFile is the on-disk layout read by LoadFile. Entries without an
// explicit ignore key are suppressed.
type ignoreFile struct {
	Ignore []struct {
		File   string `yaml:"file"`
		Line   int    `yaml:"line"`
		Ignore *bool  `yaml:"ignore"`
	} `yaml:"ignore"`
}

// LoadFile appends the entries listed in a YAML file:
//
//	ignore:
//	  - file: engine.go
//	    line: 120
func (r *IgnoreRegistry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return 0, fmt.Errorf("reading ignore file: %w", err)
	}

	var f ignoreFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parsing ignore file: %w", err)
	}

	for i, e := range f.Ignore {
		if e.File == "" || e.Line <= 0 {
			return i, fmt.Errorf("ignore entry %d: file and positive line required", i)
		}
		ignore := true
		if e.Ignore != nil {
			ignore = *e.Ignore
		}
		r.AddEntry(IgnoreEntry{File: e.File, Line: e.Line, Ignore: ignore})
	}
	return len(f.Ignore), nil
}
