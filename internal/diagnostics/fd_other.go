//go:build !linux && !darwin && !windows

package diagnostics

// CountFDs is not implemented on this platform.
func CountFDs() (open, limit int) {
	return 0, 0
}
