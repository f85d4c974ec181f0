package triage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_ReadsOnce(t *testing.T) {
	t.Parallel()
	src := newFakeFlags(map[string]uint64{FlagContinueOnAssert: 1})
	s := NewSettings(src)

	for i := 0; i < 5; i++ {
		assert.True(t, s.ContinueOnAssert())
	}
	assert.Equal(t, 1, src.readCount(FlagContinueOnAssert))

	src.vals[FlagContinueOnAssert] = 0
	assert.True(t, s.ContinueOnAssert(), "cached for the process lifetime")
}

func TestSettings_Values(t *testing.T) {
	t.Parallel()
	s := NewSettings(newFakeFlags(map[string]uint64{
		FlagRaiseOnAssert:           1,
		FlagRaiseChance:             2,
		FlagDebugBreakOnAssert:      1,
		FlagAssertStacktrace:        0,
		FlagBreakOnCode:             0x8007000E,
		FlagBreakOnProductionAssert: 1,
		FlagLaunchDebuggerOnAssert:  1,
		FlagConsistencyChecks:       0,
	}))

	assert.False(t, s.ContinueOnAssert())
	assert.True(t, s.RaiseOnAssert())
	assert.Equal(t, Propagate, s.RaiseChance())
	assert.True(t, s.DebugBreakOnAssert())
	assert.False(t, s.AssertStacktrace())
	assert.Equal(t, uint32(0x8007000E), s.BreakOnCode())
	assert.True(t, s.BreakOnProductionAssert())
	assert.True(t, s.LaunchDebuggerOnAssert())
	assert.False(t, s.ConsistencyChecks())
	assert.Empty(t, s.ReadErrors())
}

func TestSettings_ChanceDefaultsToSwallow(t *testing.T) {
	t.Parallel()
	for _, v := range []uint64{0, 1, 3, 99} {
		s := NewSettings(newFakeFlags(map[string]uint64{FlagRaiseChance: v}))
		assert.Equal(t, Swallow, s.RaiseChance(), "value %d", v)
	}
}

func TestSettings_FailedReadsAreStrict(t *testing.T) {
	t.Parallel()
	src := newFakeFlags(map[string]uint64{
		FlagContinueOnAssert:   1,
		FlagDebugBreakOnAssert: 1,
		FlagRaiseOnAssert:      1,
	})
	readErr := errors.New("registry not ready")
	src.errs[FlagContinueOnAssert] = readErr
	src.errs[FlagDebugBreakOnAssert] = readErr
	src.errs[FlagRaiseOnAssert] = readErr
	s := NewSettings(src)

	assert.False(t, s.ContinueOnAssert(), "no suppression")
	assert.False(t, s.DebugBreakOnAssert())
	assert.False(t, s.RaiseOnAssert(), "no special exception")
	assert.ElementsMatch(t,
		[]string{FlagContinueOnAssert, FlagDebugBreakOnAssert, FlagRaiseOnAssert},
		s.ReadErrors())
}

func TestSettings_PanickingSource(t *testing.T) {
	t.Parallel()
	src := newFakeFlags(nil)
	src.panic = true
	s := NewSettings(src)

	assert.False(t, s.ContinueOnAssert())
	assert.True(t, s.AssertStacktrace())
	assert.True(t, s.ConsistencyChecks())
	assert.Equal(t, Swallow, s.RaiseChance())
	assert.Empty(t, s.DebuggerCommand())
	assert.Len(t, s.ReadErrors(), int(flagCount))
}

func TestSettings_NilSource(t *testing.T) {
	t.Parallel()
	s := NewSettings(nil)
	assert.False(t, s.ContinueOnAssert())
	assert.True(t, s.AssertStacktrace())
	assert.Empty(t, s.DebuggerCommand())
	assert.Len(t, s.ReadErrors(), int(flagCount))
}

func TestSettings_DebuggerCommand(t *testing.T) {
	t.Parallel()
	src := newFakeFlags(nil)
	src.strs[FlagDebuggerCommand] = "gdb -p {pid}"
	s := NewSettings(src)

	assert.Equal(t, "gdb -p {pid}", s.DebuggerCommand())
	assert.Equal(t, "gdb -p {pid}", s.DebuggerCommand())
	assert.Equal(t, 1, src.readCount(FlagDebuggerCommand))
}

// hookFlags runs onRead before delegating the first read of a named flag.
type hookFlags struct {
	*fakeFlags
	name   string
	once   sync.Once
	onRead func()
}

func (f *hookFlags) ReadFlag(name string) (uint64, error) {
	if name == f.name {
		f.once.Do(f.onRead)
	}
	return f.fakeFlags.ReadFlag(name)
}

func TestSettings_InProgressReadUsesFallback(t *testing.T) {
	t.Parallel()
	src := &hookFlags{
		fakeFlags: newFakeFlags(map[string]uint64{FlagContinueOnAssert: 1, FlagConsistencyChecks: 0}),
		name:      FlagContinueOnAssert,
	}
	s := NewSettings(src)
	var nested []bool
	src.onRead = func() {
		nested = append(nested, s.ContinueOnAssert(), s.ConsistencyChecks())
	}

	assert.True(t, s.ContinueOnAssert())
	assert.Equal(t, []bool{false, false}, nested, "in-progress flag falls back, others read normally")
	assert.True(t, s.ContinueOnAssert(), "cached after the read completes")
	assert.Empty(t, s.ReadErrors())
}

func TestEngine_FailureDuringFlagRead(t *testing.T) {
	t.Parallel()
	src := &hookFlags{
		fakeFlags: newFakeFlags(map[string]uint64{FlagContinueOnAssert: 1, FlagDebugBreakOnAssert: 1}),
		name:      FlagContinueOnAssert,
	}
	h := newHarness(t, nil, func(d *Deps) { d.Flags = src })
	var nestedRetry bool
	src.onRead = func() {
		nestedRetry = h.eng.CheckFailedNoThrow("flags.c", 7, "store ready", false)
	}

	done := make(chan bool, 1)
	go func() { done <- h.eng.CheckFailed("a.c", 10, "x", false) }()

	select {
	case retry := <-done:
		assert.False(t, retry, "outer failure continues")
	case <-time.After(5 * time.Second):
		require.FailNow(t, "nested failure during a flag read never returned")
	}
	assert.True(t, nestedRetry, "nested failure used the strict continue fallback")
	assert.Zero(t, h.platform.terminates.Load())
	assert.Equal(t, int32(0), h.eng.Guard().Depth())
}
