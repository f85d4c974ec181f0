//go:build !windows

package diagnostics

import "github.com/google/renameio/v2"

func writeDumpFile(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0o600)
}
