package sorter

import (
	"os"
	"path/filepath"
	"strings"
)

// EffectiveRoot descends from dir through wrapper folders that are the only
// visible item at their level. Hidden names and __MACOSX do not count.
func EffectiveRoot(dir string) string {
	current := dir
	for {
		items, err := os.ReadDir(current)
		if err != nil {
			return current
		}
		var visible []os.DirEntry
		for _, item := range items {
			if strings.HasPrefix(item.Name(), ".") || item.Name() == "__MACOSX" {
				continue
			}
			visible = append(visible, item)
		}
		if len(visible) != 1 || !visible[0].IsDir() {
			return current
		}
		current = filepath.Join(current, visible[0].Name())
	}
}

// relativeTo returns rel (relative to sourceRoot) re-expressed against the
// effective root prefix. Entries outside the prefix keep their full path.
func relativeTo(prefix, rel string) string {
	if prefix == "" || prefix == "." {
		return rel
	}
	if trimmed, ok := strings.CutPrefix(rel, prefix+"/"); ok {
		return trimmed
	}
	return rel
}
