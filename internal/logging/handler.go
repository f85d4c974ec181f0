package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// CategoryKey is the record attribute carrying a Category.
const CategoryKey = "category"

// maxTraceLen bounds trace records, which are meant to fit on one line.
const maxTraceLen = 512

// SanitizingHandler redacts credentials before records reach the wrapped
// handler. Assert reports and uncategorized records are redacted in full.
// Trace records are location summaries: their message is kept verbatim,
// folded onto one line and truncated to maxTraceLen.
type SanitizingHandler struct {
	handler   slog.Handler
	sanitizer *Sanitizer
	// category preset through WithAttrs, if any.
	category Category
}

// NewSanitizingHandler wraps handler.
func NewSanitizingHandler(handler slog.Handler, sanitizer *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{
		handler:   handler,
		sanitizer: sanitizer,
	}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the message and attributes according to the record's
// category and passes the result on.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	category := h.category
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == CategoryKey {
			category = Category(a.Value.String())
			return false
		}
		return true
	})

	var msg string
	if category == CategoryTrace {
		msg = compactTrace(r.Message)
	} else {
		msg = h.sanitizer.Sanitize(r.Message)
	}

	out := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	category := h.category
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		if a.Key == CategoryKey {
			category = Category(a.Value.String())
		}
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SanitizingHandler{
		handler:   h.handler.WithAttrs(sanitized),
		sanitizer: h.sanitizer,
		category:  category,
	}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{
		handler:   h.handler.WithGroup(name),
		sanitizer: h.sanitizer,
		category:  h.category,
	}
}

// sanitizeAttr redacts string values, and every value under a key that
// names a credential.
func (h *SanitizingHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			sanitized[i] = h.sanitizeAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	case slog.KindString:
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, h.sanitizer.redacted)
		}
		return slog.String(a.Key, h.sanitizer.Sanitize(a.Value.String()))
	default:
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, h.sanitizer.redacted)
		}
		return a
	}
}

func compactTrace(msg string) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxTraceLen {
		msg = msg[:maxTraceLen-3] + "..."
	}
	return msg
}

// PrettyHandler writes colorized single-record output for terminals. A
// category is shown as a tag after the level; multi-line messages such as
// failure reports are indented under the header line.
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var category string
	var b strings.Builder
	attr := func(a slog.Attr) bool {
		if a.Key == CategoryKey && len(h.groups) == 0 {
			category = a.Value.String()
			return true
		}
		h.writeAttr(&b, a)
		return true
	}
	for _, a := range h.attrs {
		attr(a)
	}
	r.Attrs(attr)

	head, body, multiline := strings.Cut(strings.TrimRight(r.Message, "\n"), "\n")

	var line strings.Builder
	line.WriteString(r.Time.Format("15:04:05"))
	line.WriteByte(' ')
	line.WriteString(formatLevel(r.Level))
	if category != "" {
		fmt.Fprintf(&line, " %s[%s]%s", colorGray, category, colorReset)
	}
	line.WriteByte(' ')
	line.WriteString(head)
	line.WriteString(b.String())
	if multiline {
		for _, l := range strings.Split(body, "\n") {
			line.WriteString("\n    ")
			line.WriteString(l)
		}
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func formatLevel(level slog.Level) string {
	switch {
	case level >= LevelFatal:
		return colorRed + "FTL" + colorReset
	case level >= slog.LevelError:
		return colorRed + "ERR" + colorReset
	case level >= slog.LevelWarn:
		return colorYellow + "WRN" + colorReset
	case level >= slog.LevelInfo:
		return colorBlue + "INF" + colorReset
	default:
		return colorGray + "DBG" + colorReset
	}
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		for _, attr := range a.Value.Group() {
			h.writeAttr(b, attr)
		}
		return
	}
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	fmt.Fprintf(b, " %s%s%s=%v", colorCyan, key, colorReset, a.Value.Any())
}
