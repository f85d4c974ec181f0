// Package platform holds the thread-role glue shared by the runtime's
// lower layers: querying the current OS thread and dispatching callbacks
// onto a single designated main thread.
package platform

import (
	"bytes"
	"runtime"
	"strconv"
)

// ThreadID returns the identifier of the calling OS thread. On platforms
// without a native thread id it falls back to the goroutine id.
func ThreadID() uint64 {
	if tid, ok := osThreadID(); ok {
		return tid
	}
	return goroutineID()
}

// goroutineID parses the "goroutine N [" header written by runtime.Stack.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
