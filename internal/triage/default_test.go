package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	platform := &fakePlatform{events: &eventLog{}}
	console := &syncBuffer{}
	SetDefault(Deps{
		Flags:            newFakeFlags(continueFlags),
		Console:          console,
		Platform:         platform,
		DebuggerAttached: func() bool { return false },
	})

	eng := Default()
	assert.Same(t, eng, Default())

	Assert(true, "never reported")
	assert.Empty(t, console.String())

	Assert(false, "queue drained")
	assert.Contains(t, console.String(), "queue drained")
	assert.Contains(t, console.String(), "default_test.go")

	assert.False(t, Check("a.c", 10, "x"))
	assert.Zero(t, platform.terminates.Load())

	SetDefault(Deps{})
	assert.Same(t, eng, Default(), "later SetDefault calls have no effect")
}
