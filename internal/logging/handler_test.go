package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestSanitizingHandler_TraceKeptAndCompacted(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewSanitizingHandler(slog.NewJSONHandler(&buf, nil), NewSanitizer()))

	msg := "ASSERT:auth.go, line:3\n  token=abcdefghijklmnopqrstuvwxyz0123"
	logger.Info(msg, CategoryKey, string(CategoryTrace))

	rec := decodeRecord(t, &buf)
	assert.Equal(t, "ASSERT:auth.go, line:3 token=abcdefghijklmnopqrstuvwxyz0123", rec["msg"])
}

func TestSanitizingHandler_TraceTruncated(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewSanitizingHandler(slog.NewJSONHandler(&buf, nil), NewSanitizer()))

	logger.With(CategoryKey, string(CategoryTrace)).Info(strings.Repeat("x", 2*maxTraceLen))

	msg, _ := decodeRecord(t, &buf)["msg"].(string)
	assert.Len(t, msg, maxTraceLen)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestSanitizingHandler_AssertRedacted(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewSanitizingHandler(slog.NewJSONHandler(&buf, nil), NewSanitizer()))

	report := "Assert failure(PID 7 [0x00000007], Thread: 9 [0x0009]): token=abcdefghijklmnopqrstuvwxyz0123\n    File: a.go Line: 3"
	logger.Error(report, CategoryKey, string(CategoryAssert))

	rec := decodeRecord(t, &buf)
	assert.Contains(t, rec["msg"], "[REDACTED]")
	assert.Contains(t, rec["msg"], "\n    File: a.go Line: 3", "report layout is preserved")
	assert.NotContains(t, rec["msg"], "abcdefghijklmnopqrstuvwxyz0123")
}

func TestSanitizingHandler_SensitiveKeys(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewSanitizingHandler(slog.NewJSONHandler(&buf, nil), NewSanitizer()))

	logger.Info("launching", "api_key", "short", "auth_retries", 3, "file", "a.go")

	rec := decodeRecord(t, &buf)
	assert.Equal(t, "[REDACTED]", rec["api_key"])
	assert.Equal(t, "[REDACTED]", rec["auth_retries"])
	assert.Equal(t, "a.go", rec["file"])
}

func TestPrettyHandler_CategoryAndReportLayout(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, slog.LevelDebug))

	logger.Log(t.Context(), LevelFatal, "Assert failure\n    File: a.go Line: 3\n",
		CategoryKey, string(CategoryAssert), "pid", 7)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "FTL")
	assert.Contains(t, lines[0], "[assert]")
	assert.Contains(t, lines[0], "Assert failure")
	assert.Contains(t, lines[0], "pid")
	assert.NotContains(t, lines[0], "category=")
	assert.Equal(t, "        File: a.go Line: 3", lines[1])
}

func TestPrettyHandler_Groups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, slog.LevelInfo)).WithGroup("dump").With("id", "abc")

	logger.Info("written")
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), "dump.id")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
