// Package classify tags extracted archive entries as images, 3D models, or
// ignored files, and filters out unwanted entries before they are packaged.
package classify

import (
	"path"
	"strings"
)

// Kind is the classification tag for a single extracted entry.
type Kind string

const (
	KindImage   Kind = "image"
	KindModel   Kind = "model"
	KindIgnored Kind = "ignored"
)

// Classifier maps an entry path to a Kind by its case-insensitive extension.
// It holds no state beyond the two extension sets and is safe for concurrent use.
type Classifier struct {
	images map[string]struct{}
	models map[string]struct{}
}

// New builds a Classifier. Extensions may be given with or without the
// leading dot and in any case.
func New(imageExts, modelExts []string) *Classifier {
	return &Classifier{images: extSet(imageExts), models: extSet(modelExts)}
}

// Classify returns the Kind for relPath. Unknown extensions are ignored.
func (c *Classifier) Classify(relPath string) Kind {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(relPath, "\\", "/")))
	if ext == "" {
		return KindIgnored
	}
	if _, ok := c.images[ext]; ok {
		return KindImage
	}
	if _, ok := c.models[ext]; ok {
		return KindModel
	}
	return KindIgnored
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
