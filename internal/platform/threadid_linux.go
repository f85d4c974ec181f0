//go:build linux

package platform

import "golang.org/x/sys/unix"

func osThreadID() (uint64, bool) {
	// #nosec G115 -- thread ids are positive
	return uint64(unix.Gettid()), true
}
