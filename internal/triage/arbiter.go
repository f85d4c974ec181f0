package triage

import "sync/atomic"

const (
	// SharedBufferSize is the capacity of the buffer that carries a full
	// report with its stack trace.
	SharedBufferSize = 10480

	// privateBufferSize bounds reports built by goroutines that lost the
	// shared buffer.
	privateBufferSize = 1024
)

// Arbiter hands out the shared diagnostic buffer to at most one goroutine.
// It never waits: a loser gets false immediately and builds a smaller
// report on its own.
type Arbiter struct {
	owned atomic.Int32
	buf   []byte
}

// NewArbiter preallocates the shared buffer.
func NewArbiter() *Arbiter {
	return &Arbiter{buf: make([]byte, 0, SharedBufferSize)}
}

// TryAcquire swaps the ownership flag to 1 and reports whether the caller
// became the owner.
func (a *Arbiter) TryAcquire() bool {
	return a.owned.Swap(1) == 0
}

// Release gives up ownership. Only the owner may call it.
func (a *Arbiter) Release() {
	a.owned.Store(0)
}

// Owned reports whether some goroutine holds the buffer.
func (a *Arbiter) Owned() bool {
	return a.owned.Load() == 1
}

// Buffer returns the shared buffer, reset to zero length. Only valid while
// owned.
func (a *Arbiter) Buffer() []byte {
	return a.buf[:0]
}
