package triage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultSignal(t *testing.T) {
	t.Parallel()
	sig := &FaultSignal{Code: FaultCode, Chance: Propagate, File: "a.go", Line: 3, Expr: "x != nil"}

	assert.Equal(t, "check failed (code 0xE0584D4E, propagate): x != nil at a.go:3", sig.Error())
	assert.True(t, IsFaultSignal(sig))
	assert.False(t, IsFaultSignal(errors.New("other")))
	assert.False(t, IsFaultSignal(nil))

	var err error = sig
	var target *FaultSignal
	assert.True(t, errors.As(err, &target))
}

func TestChance_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "swallow", Swallow.String())
	assert.Equal(t, "propagate", Propagate.String())
	assert.Equal(t, "chance(7)", Chance(7).String())
}
