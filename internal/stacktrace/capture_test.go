package stacktrace

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicWalker struct{}

func (panicWalker) RenderFrames(int, int, *Context) (string, error) {
	panic("walker exploded")
}

type errWalker struct{}

func (errWalker) RenderFrames(int, int, *Context) (string, error) {
	return "", errors.New("no symbols")
}

type recordingWalker struct {
	skip int
	max  int
	ctx  *Context
}

func (w *recordingWalker) RenderFrames(skip, max int, ctx *Context) (string, error) {
	w.skip, w.max, w.ctx = skip, max, ctx
	return "frames", nil
}

func TestCapture_CurrentGoroutine(t *testing.T) {
	t.Parallel()
	c := NewDefaultCapturer()

	trace, err := c.Capture(nil)
	require.NoError(t, err)

	assert.Contains(t, trace, "TestCapture_CurrentGoroutine")
	assert.NotContains(t, trace, "stacktrace.(*Capturer).Capture", "capture frame must be skipped")
	assert.LessOrEqual(t, strings.Count(trace, "\n"), MaxFrames)
}

func TestCapture_FixedWidthFrames(t *testing.T) {
	t.Parallel()
	c := NewDefaultCapturer()

	trace, err := c.Capture(nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(trace, "\n"), "\n")
	require.NotEmpty(t, lines)
	width := len(lines[0])
	for _, line := range lines {
		assert.Equal(t, width, len(line), "frame %q", line)
	}
}

func TestCapture_ExplicitContextSkipsNothing(t *testing.T) {
	t.Parallel()
	w := &recordingWalker{}
	c := NewCapturer(w, 5)
	ctx := &Context{PCs: []uintptr{1, 2, 3}}

	trace, err := c.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frames", trace)
	assert.Equal(t, 0, w.skip)
	assert.Equal(t, 5, w.max)
	assert.Same(t, ctx, w.ctx)
}

func TestCapture_NilContextSkipsOne(t *testing.T) {
	t.Parallel()
	w := &recordingWalker{}
	c := NewCapturer(w, 0)

	_, err := c.Capture(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.skip)
	assert.Equal(t, MaxFrames, w.max)
}

func TestCapture_RecordedContext(t *testing.T) {
	t.Parallel()
	ctx := captureInHelper()
	c := NewDefaultCapturer()

	trace, err := c.Capture(ctx)
	require.NoError(t, err)
	assert.Contains(t, trace, "captureInHelper")
}

func captureInHelper() *Context {
	return CurrentContext()
}

func TestCapture_WalkerPanicIsContained(t *testing.T) {
	t.Parallel()
	c := NewCapturer(panicWalker{}, 0)

	var (
		trace string
		err   error
	)
	assert.NotPanics(t, func() { trace, err = c.Capture(nil) })
	assert.Empty(t, trace)
	assert.ErrorIs(t, err, ErrCaptureFailed)
}

func TestCapture_WalkerError(t *testing.T) {
	t.Parallel()
	c := NewCapturer(errWalker{}, 0)

	_, err := c.Capture(nil)
	assert.ErrorIs(t, err, ErrCaptureFailed)
}

func TestCapture_Unavailable(t *testing.T) {
	t.Parallel()
	c := NewCapturer(nil, 0)
	assert.False(t, c.Available())

	_, err := c.Capture(nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	var nilCapturer *Capturer
	_, err = nilCapturer.Capture(nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRuntimeWalker_EmptyContext(t *testing.T) {
	t.Parallel()
	_, err := RuntimeWalker{}.RenderFrames(0, 5, &Context{})
	assert.Error(t, err)
}
