package classify

import (
	"fmt"
	"path"
	"strings"
)

// Filter drops entries whose path contains a blacklisted pattern or whose
// basename is smaller than a configured minimum size.
type Filter struct {
	patterns  []string
	sizeRules map[string]int64
}

// NewFilter builds a Filter. Patterns match case-insensitively anywhere in
// the slash-separated relative path. sizeRules maps an exact basename to the
// minimum byte size it must reach to be kept.
func NewFilter(patterns []string, sizeRules map[string]int64) *Filter {
	f := &Filter{sizeRules: make(map[string]int64, len(sizeRules))}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			f.patterns = append(f.patterns, strings.ToLower(p))
		}
	}
	for name, size := range sizeRules {
		f.sizeRules[name] = size
	}
	return f
}

// Allow reports whether the entry should be kept and, when it is not, why.
func (f *Filter) Allow(relPath string, size int64) (bool, string) {
	if f == nil {
		return true, ""
	}
	lowered := strings.ToLower(relPath)
	for _, pattern := range f.patterns {
		if strings.Contains(lowered, pattern) {
			return false, fmt.Sprintf("matches blacklist pattern %q", pattern)
		}
	}
	if minSize, ok := f.sizeRules[path.Base(relPath)]; ok && size < minSize {
		return false, fmt.Sprintf("smaller than %d bytes", minSize)
	}
	return true, ""
}
