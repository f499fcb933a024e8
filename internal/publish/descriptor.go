package publish

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"stlpipe/internal/fileutil"
)

// DefaultLinkFilename is used when a descriptor does not name its file.
const DefaultLinkFilename = "link_download_here.txt"

// LinkDescriptor is the human-readable pointer to a published archive.
type LinkDescriptor struct {
	ArtifactName string
	URL          string
	GeneratedAt  time.Time
	// FileName overrides DefaultLinkFilename.
	FileName string
}

// Render returns the descriptor file contents.
func (d LinkDescriptor) Render() string {
	var b strings.Builder
	b.WriteString("Download your STL models from Google Drive:\n\n")
	b.WriteString(d.URL)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Artifact: %s\n", d.ArtifactName)
	fmt.Fprintf(&b, "Generated: %s\n", d.GeneratedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// WriteDescriptor atomically writes d into dir, replacing any previous
// descriptor, and returns the file path.
func WriteDescriptor(dir string, d LinkDescriptor) (string, error) {
	name := d.FileName
	if name == "" {
		name = DefaultLinkFilename
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = time.Now()
	}
	path := filepath.Join(dir, name)
	if err := fileutil.WriteFileAtomic(path, []byte(d.Render()), 0o644); err != nil {
		return "", fmt.Errorf("write link descriptor: %w", err)
	}
	return path, nil
}
