package platform

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// MainThread is a single designated OS thread that runs queued callbacks
// in submission order. Submission never blocks the caller.
type MainThread struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	tid     atomic.Uint64
	running atomic.Bool
}

// NewMainThread creates an idle dispatcher. Call Start or Loop to begin
// draining callbacks.
func NewMainThread() *MainThread {
	return &MainThread{
		wake: make(chan struct{}, 1),
	}
}

// Start runs the dispatch loop on a dedicated goroutine pinned to its own
// OS thread until ctx is done.
func (m *MainThread) Start(ctx context.Context) {
	started := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		m.loop(ctx, started)
	}()
	<-started
}

// Loop runs the dispatch loop on the calling goroutine, which is locked to
// its current OS thread for the duration. Use it from main() to designate
// the process's initial thread.
func (m *MainThread) Loop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	m.loop(ctx, nil)
}

func (m *MainThread) loop(ctx context.Context, started chan<- struct{}) {
	if !m.running.CompareAndSwap(false, true) {
		if started != nil {
			close(started)
		}
		return
	}
	defer m.running.Store(false)

	m.tid.Store(ThreadID())
	defer m.tid.Store(0)
	if started != nil {
		close(started)
	}

	for {
		m.drain()
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}
	}
}

func (m *MainThread) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.invoke(fn)
	}
}

// invoke isolates callback panics so one bad callback cannot stop the loop.
func (m *MainThread) invoke(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// IsCurrent reports whether the caller is running on the designated thread.
func (m *MainThread) IsCurrent() bool {
	tid := m.tid.Load()
	return tid != 0 && tid == ThreadID()
}

// Run queues fn for asynchronous execution on the main thread.
func (m *MainThread) Run(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of callbacks not yet started.
func (m *MainThread) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RunWith queues fn(arg) on the main thread.
func RunWith[T any](m *MainThread, fn func(T), arg T) {
	if fn == nil {
		return
	}
	m.Run(func() { fn(arg) })
}

// RunWith2 queues fn(arg1, arg2) on the main thread.
func RunWith2[A, B any](m *MainThread, fn func(A, B), arg1 A, arg2 B) {
	if fn == nil {
		return
	}
	m.Run(func() { fn(arg1, arg2) })
}

var designated atomic.Pointer[MainThread]

// Designate marks m as the process's main thread for IsMainThread.
func Designate(m *MainThread) {
	designated.Store(m)
}

// IsMainThread reports whether the caller runs on the designated main
// thread. It is false when no thread has been designated.
func IsMainThread() bool {
	m := designated.Load()
	return m != nil && m.IsCurrent()
}
