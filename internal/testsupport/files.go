package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile creates path holding size filler bytes (at least one).
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	WriteBytes(t, path, bytes.Repeat([]byte{'B'}, max(size, 1)))
}
