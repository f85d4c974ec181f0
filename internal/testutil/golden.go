package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// Golden provides golden file testing utilities.
type Golden struct {
	t       *testing.T
	baseDir string
}

// NewGolden creates a new golden file helper.
func NewGolden(t *testing.T, baseDir string) *Golden {
	return &Golden{
		t:       t,
		baseDir: baseDir,
	}
}

// Assert compares actual output against golden file.
func (g *Golden) Assert(name string, actual []byte) {
	g.t.Helper()

	goldenPath := filepath.Join(g.baseDir, name+".golden")

	if *update {
		g.updateGolden(goldenPath, actual)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		g.t.Fatalf("reading golden file %s: %v", goldenPath, err)
	}

	if Normalize(string(actual)) != Normalize(string(expected)) {
		g.t.Errorf("output mismatch for %s:\n--- expected ---\n%s\n--- actual ---\n%s",
			name, expected, actual)
	}
}

// AssertString compares string output against golden file.
func (g *Golden) AssertString(name, actual string) {
	g.Assert(name, []byte(actual))
}

func (g *Golden) updateGolden(path string, actual []byte) {
	g.t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		g.t.Fatalf("creating golden directory: %v", err)
	}
	if err := os.WriteFile(path, actual, 0o644); err != nil {
		g.t.Fatalf("writing golden file: %v", err)
	}
	g.t.Logf("updated golden file: %s", path)
}

// Normalize normalizes output for comparison.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

var (
	reDateTime   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(\.\d+)?( [A-Z+\-0-9]+)?`)
	reLogTime    = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}: \d{2}:\d{2}:\d{2} [ap]m`)
	reProcess    = regexp.MustCompile(`(PID|Thread:) \d+ \[0x[0-9a-f]+\]`)
	reUUID       = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reStackFrame = regexp.MustCompile(`(?m)^    \S.*\n`)
)

// ScrubTimestamps replaces report and log timestamps.
func ScrubTimestamps(s string) string {
	s = reDateTime.ReplaceAllString(s, "[TIMESTAMP]")
	return reLogTime.ReplaceAllString(s, "[TIMESTAMP]")
}

// ScrubProcess replaces process and thread ids in report headers.
func ScrubProcess(s string) string {
	return reProcess.ReplaceAllString(s, "$1 [ID]")
}

// ScrubPaths normalizes file paths.
func ScrubPaths(s, basePath string) string {
	return strings.ReplaceAll(s, basePath, "[WORKDIR]")
}

// ScrubUUIDs removes UUIDs from output.
func ScrubUUIDs(s string) string {
	return reUUID.ReplaceAllString(s, "[UUID]")
}

// ScrubStack drops indented stack frame lines, keeping the
// "    File:" style report fields.
func ScrubStack(s string) string {
	return reStackFrame.ReplaceAllStringFunc(s, func(line string) string {
		field := strings.TrimSpace(line)
		if strings.HasPrefix(field, "File:") || strings.HasPrefix(field, "Time:") || strings.HasPrefix(field, "Image:") {
			return line
		}
		return ""
	})
}

// ScrubAll applies all scrubbing functions.
func ScrubAll(s, basePath string) string {
	result := s
	result = ScrubStack(result)
	result = ScrubTimestamps(result)
	result = ScrubProcess(result)
	result = ScrubPaths(result, basePath)
	result = ScrubUUIDs(result)
	return Normalize(result)
}
