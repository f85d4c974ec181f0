package config

import (
	"os"
	"path/filepath"
)

// AtomicWrite replaces the file at path with data, creating parent
// directories as needed. An existing file keeps its permissions; new files
// are 0600.
func AtomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	perm := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return replaceFile(path, data, perm)
}
