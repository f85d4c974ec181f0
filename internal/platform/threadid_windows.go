//go:build windows

package platform

import "golang.org/x/sys/windows"

func osThreadID() (uint64, bool) {
	return uint64(windows.GetCurrentThreadId()), true
}
