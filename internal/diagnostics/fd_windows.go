//go:build windows

package diagnostics

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetProcessHandleCount = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetProcessHandleCount")

// CountFDs returns the number of open handles. Windows has no descriptor
// limit comparable to RLIMIT_NOFILE, so limit is always 0.
func CountFDs() (open, limit int) {
	if err := procGetProcessHandleCount.Find(); err != nil {
		return 0, 0
	}
	var count uint32
	r, _, _ := procGetProcessHandleCount.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&count)),
	)
	if r == 0 {
		return 0, 0
	}
	return int(count), 0
}
