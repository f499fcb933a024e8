package extract

import (
	"errors"
	"path"
	"path/filepath"
	"strings"

	"stlpipe/internal/textutil"
)

var (
	errAbsoluteEntry = errors.New("absolute path")
	errEscapingEntry = errors.New("path escapes destination")
	errSymlinkEntry  = errors.New("symlink entry")
	errEmptyEntry    = errors.New("empty name")
)

// resolveEntry validates an archive entry name and returns its cleaned
// slash-separated relative path plus the absolute target below destDir.
func resolveEntry(destDir, name string) (string, string, error) {
	name = textutil.NormalizeName(strings.ReplaceAll(name, "\\", "/"))
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", "", errEmptyEntry
	}
	if strings.HasPrefix(name, "/") || hasDriveLetter(name) {
		return "", "", errAbsoluteEntry
	}

	rel := path.Clean(name)
	if rel == "." {
		return "", "", errEmptyEntry
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", "", errEscapingEntry
	}

	target := filepath.Join(destDir, filepath.FromSlash(rel))
	check, err := filepath.Rel(destDir, target)
	if err != nil || check == ".." || strings.HasPrefix(check, ".."+string(filepath.Separator)) {
		return "", "", errEscapingEntry
	}
	return rel, target, nil
}

func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
