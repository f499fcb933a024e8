package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	rarPartPattern   = regexp.MustCompile(`(?i)\.part0*(\d+)\.rar$`)
	splitPartPattern = regexp.MustCompile(`\.(\d{3})$`)
)

// ScanArchives lists the archives directly inside dir, sorted by name.
// Only the first volume of a multi-part set is returned.
func ScanArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !isArchiveName(name) || !IsFirstVolume(name) {
			continue
		}
		archives = append(archives, filepath.Join(dir, name))
	}
	sort.Strings(archives)
	return archives, nil
}

func isArchiveName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".rar":
		return true
	}
	loc := splitPartPattern.FindStringIndex(name)
	if loc == nil {
		return false
	}
	// pack.zip.001 and pack.001 are joined before detection; pack.7z.001 is not ours
	switch strings.ToLower(filepath.Ext(name[:loc[0]])) {
	case ".zip", ".rar", "":
		return true
	}
	return false
}

// IsFirstVolume reports whether name opens its archive: either a single-file
// archive or volume 1 of a multi-part set.
func IsFirstVolume(name string) bool {
	if m := rarPartPattern.FindStringSubmatch(name); m != nil {
		return partNumber(m[1]) == 1
	}
	if m := splitPartPattern.FindStringSubmatch(name); m != nil {
		return partNumber(m[1]) == 1
	}
	return true
}

// VolumeIndex splits a multi-part volume name into the name of its set and its
// 1-based position. ok is false for a single-file archive.
func VolumeIndex(name string) (set string, index int, ok bool) {
	if m := rarPartPattern.FindStringSubmatchIndex(name); m != nil {
		return name[:m[0]] + ".rar", partNumber(name[m[2]:m[3]]), true
	}
	if m := splitPartPattern.FindStringSubmatchIndex(name); m != nil {
		return name[:m[0]], partNumber(name[m[2]:m[3]]), true
	}
	return "", 0, false
}

// OrderVolumes sorts the volumes of one set by position and fails when the
// positions do not run 1, 2, 3... without a gap.
func OrderVolumes(volumes []string) ([]string, error) {
	type numbered struct {
		path  string
		index int
	}
	list := make([]numbered, 0, len(volumes))
	for _, path := range volumes {
		_, index, ok := VolumeIndex(filepath.Base(path))
		if !ok {
			index = 1
		}
		list = append(list, numbered{path: path, index: index})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].index < list[j].index })
	ordered := make([]string, len(list))
	for i, v := range list {
		if v.index != i+1 {
			return nil, fmt.Errorf("volume %d missing", i+1)
		}
		ordered[i] = v.path
	}
	return ordered, nil
}

func partNumber(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return n
}

// Volumes returns every volume of the multi-part set opened by first, sorted
// by name. A single-file archive yields just first.
func Volumes(first string) ([]string, error) {
	dir, name := filepath.Dir(first), filepath.Base(first)
	pattern := rarPartPattern
	loc := pattern.FindStringIndex(name)
	if loc == nil {
		pattern = splitPartPattern
		loc = pattern.FindStringIndex(name)
	}
	if loc == nil {
		return []string{first}, nil
	}
	prefix := name[:loc[0]]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var volumes []string
	for _, entry := range entries {
		candidate := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(candidate, prefix) {
			continue
		}
		if m := pattern.FindStringIndex(candidate); m != nil && m[0] == len(prefix) {
			volumes = append(volumes, filepath.Join(dir, candidate))
		}
	}
	sort.Strings(volumes)
	return volumes, nil
}
