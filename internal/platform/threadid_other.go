//go:build !linux && !windows

package platform

// osThreadID is unavailable here; callers fall back to goroutine ids.
func osThreadID() (uint64, bool) {
	return 0, false
}
