package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// ZipEntry describes one member of a fixture archive.
type ZipEntry struct {
	Name string
	Body string
	// Size pads Body with filler bytes up to the given length when larger.
	Size    int64
	Symlink bool
	NonUTF8 bool
}

// Entry is shorthand for a regular file entry.
func Entry(name, body string) ZipEntry {
	return ZipEntry{Name: name, Body: body}
}

// WriteZip builds a zip archive at path containing entries in order.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()

	zw := zip.NewWriter(file)
	for _, entry := range entries {
		header := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate, NonUTF8: entry.NonUTF8}
		body := []byte(entry.Body)
		if entry.Symlink {
			header.SetMode(os.ModeSymlink | 0o777)
		} else {
			header.SetMode(0o644)
			if pad := entry.Size - int64(len(body)); pad > 0 {
				body = append(body, bytes.Repeat([]byte{0x42}, int(pad))...)
			}
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip header %s: %v", entry.Name, err)
		}
		if _, err := w.Write(body); err != nil {
			t.Fatalf("zip write %s: %v", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip %s: %v", path, err)
	}
	return path
}

// ReadZip returns the member names and contents of the archive at path.
func ReadZip(t testing.TB, path string) map[string]string {
	t.Helper()

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip %s: %v", path, err)
	}
	defer reader.Close()

	contents := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open member %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read member %s: %v", file.Name, err)
		}
		contents[file.Name] = string(data)
	}
	return contents
}

// ZipNames returns the sorted member names of the archive at path.
func ZipNames(t testing.TB, path string) []string {
	t.Helper()

	contents := ReadZip(t, path)
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
