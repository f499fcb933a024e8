package textutil

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName returns name in Unicode NFC form.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// CleanName removes every occurrence of the given patterns, collapses runs of
// whitespace, and folds repeated dashes left behind by the removal.
// "Dragon -- CW Studio  Bust" with pattern "CW Studio" becomes "Dragon - Bust".
func CleanName(name string, patterns []string) string {
	cleaned := NormalizeName(name)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		cleaned = strings.ReplaceAll(cleaned, pattern, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	for strings.Contains(cleaned, "--") {
		cleaned = strings.ReplaceAll(cleaned, "--", "-")
	}
	for strings.Contains(cleaned, " - - ") {
		cleaned = strings.ReplaceAll(cleaned, " - - ", " - ")
	}
	cleaned = strings.Trim(cleaned, " -")
	return cleaned
}

var (
	splitCounter = regexp.MustCompile(`\.\d{3}$`)
	rarPartTag   = regexp.MustCompile(`(?i)\.part\d+$`)
)

// Stem returns the base name of path without its final extension. Volume
// markers go too, so pack.part1.rar and pack.zip.001 both give "pack".
func Stem(path string) string {
	base := splitCounter.ReplaceAllString(filepath.Base(path), "")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if strings.EqualFold(ext, ".rar") {
		stem = rarPartTag.ReplaceAllString(stem, "")
	}
	return stem
}

// CleanStem cleans and sanitizes the stem of an artifact name so it can be
// used as a directory or file prefix. Empty results fall back to "archive".
func CleanStem(name string, patterns []string) string {
	stem := SanitizeFileName(CleanName(Stem(name), patterns))
	if stem == "" {
		return "archive"
	}
	return stem
}
