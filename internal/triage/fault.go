package triage

import "fmt"

// FaultCode identifies a FaultSignal raised by a failed check.
const FaultCode uint32 = 0xE0584D4E

// Chance selects what happens to a raised FaultSignal.
type Chance uint

const (
	// Swallow recovers the signal inside the same triage call, which then
	// carries on as if nothing was raised.
	Swallow Chance = 1
	// Propagate lets the signal panic out to the caller's handler. The rest
	// of triage is skipped.
	Propagate Chance = 2
)

func (c Chance) String() string {
	switch c {
	case Swallow:
		return "swallow"
	case Propagate:
		return "propagate"
	default:
		return fmt.Sprintf("chance(%d)", uint(c))
	}
}

// FaultSignal is the panic value raised when raise_on_assert is set.
// Handlers recover it with:
//
//	if sig, ok := recover().(*triage.FaultSignal); ok { ... }
type FaultSignal struct {
	Code   uint32
	Chance Chance
	File   string
	Line   int
	Expr   string
}

func (f *FaultSignal) Error() string {
	return fmt.Sprintf("check failed (code 0x%08X, %s): %s at %s:%d",
		f.Code, f.Chance, f.Expr, f.File, f.Line)
}

// IsFaultSignal reports whether v, typically a recovered panic value, is a
// FaultSignal.
func IsFaultSignal(v any) bool {
	_, ok := v.(*FaultSignal)
	return ok
}
