package feed

import (
	"context"
	"os"
	"strconv"
	"time"

	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
)

// volumeSet collects the volumes of one multi-part archive posted as separate
// documents. Each set downloads into its own directory so volume names never
// collide with another set or get a timestamp suffix.
type volumeSet struct {
	name     string
	dir      string
	first    *Event
	size     int64
	lastSeen time.Time
	warned   bool
}

func (s *volumeSet) add(ev Event, index int, now time.Time) {
	s.size += ev.Size
	s.lastSeen = now
	s.warned = false
	if index == 1 && s.first == nil {
		first := ev
		s.first = &first
	}
}

func (t *Telegram) volumeSet(chatID int64, name string) (*volumeSet, error) {
	key := strconv.FormatInt(chatID, 10) + "/" + name
	if set, ok := t.sets[key]; ok {
		return set, nil
	}
	if err := os.MkdirAll(t.downloadDir, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(t.downloadDir, "volumes-*")
	if err != nil {
		return nil, err
	}
	set := &volumeSet{name: name, dir: dir, lastSeen: t.now()}
	t.sets[key] = set
	return set, nil
}

// flushSets delivers every set that has been quiet for the settle period,
// holds volume 1 and has no gap in its numbering.
func (t *Telegram) flushSets(ctx context.Context, handle Handler) {
	now := t.now()
	for key, set := range t.sets {
		if ctx.Err() != nil {
			return
		}
		if now.Sub(set.lastSeen) < t.settle {
			continue
		}
		logger := t.logger.With(logging.String("set", set.name), logging.String("dir", set.dir))
		if set.first == nil {
			t.warnIncomplete(set, "volume 1 has not arrived")
			continue
		}
		volumes, err := extract.Volumes(set.first.Path)
		if err == nil {
			volumes, err = extract.OrderVolumes(volumes)
		}
		if err != nil {
			t.warnIncomplete(set, err.Error())
			continue
		}
		delete(t.sets, key)
		ev := *set.first
		ev.Size = set.size
		ev.Volumes = volumes
		logger.Info("volume set complete",
			logging.Int("volumes", len(volumes)),
			logging.Int64("size_bytes", ev.Size),
			logging.String(logging.FieldEventType, "feed_volume_set"),
		)
		t.deliver(ctx, logger, ev, handle)
	}
}

func (t *Telegram) warnIncomplete(set *volumeSet, detail string) {
	if set.warned {
		return
	}
	set.warned = true
	logging.WarnWithContext(t.logger, "volume set incomplete", "feed_volume_incomplete",
		logging.String("set", set.name),
		logging.String("detail", detail),
		logging.String(logging.FieldErrorHint, "post the missing volumes to the same chat"),
		logging.String(logging.FieldImpact, "set held until the missing volumes arrive"),
	)
}

func (t *Telegram) logPendingSets() {
	for _, set := range t.sets {
		t.logger.Info("volume set left pending at shutdown",
			logging.String("set", set.name),
			logging.String("dir", set.dir),
		)
	}
}
