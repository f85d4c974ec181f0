//go:build windows

package diagnostics

import (
	"os"
	"path/filepath"
)

func writeDumpFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".crash-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
