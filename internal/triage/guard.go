package triage

import "sync/atomic"

// ReentrancyThreshold is the nesting depth past which triage stops
// formatting and goes straight to a break.
const ReentrancyThreshold = 16

// Guard counts triage invocations in progress across all goroutines. A
// failure raised while handling another failure shows up as depth > 1.
type Guard struct {
	count atomic.Int32
}

// NewGuard creates a guard at depth zero.
func NewGuard() *Guard {
	return &Guard{}
}

// Enter increments the counter. The returned scope must be released on
// every exit path, so callers defer Release.
func (g *Guard) Enter() *Scope {
	return &Scope{g: g, depth: g.count.Add(1)}
}

// Depth returns the current number of invocations in progress.
func (g *Guard) Depth() int32 {
	return g.count.Load()
}

// Scope is one guarded invocation.
type Scope struct {
	g        *Guard
	depth    int32
	released atomic.Bool
}

// Depth is the counter value observed right after entering.
func (s *Scope) Depth() int32 {
	return s.depth
}

// Exceeded reports whether the depth is past ReentrancyThreshold.
func (s *Scope) Exceeded() bool {
	return s.depth > ReentrancyThreshold
}

// Release decrements the counter. Only the first call has an effect.
func (s *Scope) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.g.count.Add(-1)
	}
}
