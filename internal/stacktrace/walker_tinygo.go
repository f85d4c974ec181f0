//go:build tinygo

package stacktrace

// DefaultWalker returns nil: TinyGo does not implement runtime.Callers,
// so every capture reports ErrUnavailable.
func DefaultWalker() Walker {
	return nil
}
