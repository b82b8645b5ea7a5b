package utils

import (
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory holding path. SQLite in-memory
// paths and bare file names need nothing.
func EnsureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
