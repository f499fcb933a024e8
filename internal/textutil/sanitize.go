package textutil

import "strings"

// SanitizeFileName makes an archive or entry name safe to use as a single
// path element. Separators and wildcards become dashes, characters Windows
// rejects and control characters are dropped, and "." or ".." reduce to the
// empty string.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == ':', r == '*':
			return '-'
		case r == '?', r == '"', r == '<', r == '>', r == '|', r < 0x20, r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// SanitizeToken lowercases value and keeps only ASCII letters, digits, '-'
// and '_'; anything else becomes '_'. Workspace directory names are built
// from it. Blank results yield "unknown".
func SanitizeToken(value string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case 'A' <= r && r <= 'Z':
			return r + 'a' - 'A'
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(value))
	if token = strings.Trim(token, "_-"); token == "" {
		return "unknown"
	}
	return token
}
