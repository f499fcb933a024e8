package feed

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stlpipe/internal/extract"
)

// Event is one archive ready for processing.
type Event struct {
	// ID identifies the delivery. It is empty for sources without a stable
	// message identity.
	ID         string
	Name       string
	Path       string
	Size       int64
	ChatID     int64
	MessageID  int
	ReceivedAt time.Time
	// Volumes lists every file of a multi-part set, including Path.
	Volumes []string
}

// Handler consumes an event. Errors are logged by the listener and do not
// stop it.
type Handler func(ctx context.Context, ev Event) error

// Listener produces events until ctx ends.
type Listener interface {
	Listen(ctx context.Context, handle Handler) error
}

// Replier can answer the sender of an event.
type Replier interface {
	Reply(ctx context.Context, ev Event, text string) error
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// allowedName reports whether name carries one of the allowed extensions.
// Split volumes carry their format before the counter, as in pack.zip.001.
func allowedName(allowed map[string]bool, name string) bool {
	name = strings.ToLower(name)
	if allowed[filepath.Ext(name)] {
		return true
	}
	if set, _, ok := extract.VolumeIndex(name); ok {
		return allowed[filepath.Ext(set)]
	}
	return false
}

// uniqueTarget returns dir/name, or dir/<stem>_YYYYMMDD_HHMMSS<ext> when
// dir/name already exists.
func uniqueTarget(dir, name string, now time.Time) string {
	target := filepath.Join(dir, name)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamped := filepath.Join(dir, stem+"_"+now.Format("20060102_150405")+ext)
	for i := 2; ; i++ {
		if _, err := os.Lstat(stamped); os.IsNotExist(err) {
			return stamped
		}
		stamped = filepath.Join(dir, stem+"_"+now.Format("20060102_150405")+"_"+strconv.Itoa(i)+ext)
	}
}
