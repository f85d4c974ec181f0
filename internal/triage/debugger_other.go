//go:build !linux && !windows

package triage

// DebuggerAttached always reports false where detection is not implemented.
func DebuggerAttached() bool {
	return false
}
