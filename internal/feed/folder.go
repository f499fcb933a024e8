package feed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/fileutil"
	"stlpipe/internal/logging"
)

// Folder polls an inbox directory. A file is claimed once its size and
// modification time are unchanged between two polls. Claiming moves the file
// into the download directory; the volumes of a multi-part set move together
// into a fresh subdirectory so their names stay intact.
type Folder struct {
	inbox       string
	downloadDir string
	interval    time.Duration
	allowed     map[string]bool
	logger      *slog.Logger
	now         func() time.Time

	pending map[string]snapshot
}

type snapshot struct {
	size    int64
	modTime int64
}

// NewFolder builds a poller for watch.inbox_dir.
func NewFolder(cfg *config.Config, logger *slog.Logger) *Folder {
	interval := time.Duration(cfg.Watch.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Folder{
		inbox:       cfg.Watch.InboxDir,
		downloadDir: cfg.Paths.DownloadDir,
		interval:    interval,
		allowed:     extensionSet(cfg.Telegram.AllowedExtensions),
		logger:      logging.NewComponentLogger(logger, "inbox"),
		now:         time.Now,
		pending:     make(map[string]snapshot),
	}
}

// Listen polls until ctx ends and returns nil on a clean shutdown.
func (f *Folder) Listen(ctx context.Context, handle Handler) error {
	for _, dir := range []string{f.inbox, f.downloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f.logger.Info("inbox listener started",
		logging.String("inbox", f.inbox),
		logging.Duration("interval", f.interval),
		logging.String(logging.FieldEventType, "feed_start"),
	)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		if err := f.Poll(ctx, handle); err != nil {
			logging.WarnWithContext(f.logger, "inbox scan failed", "feed_scan_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check watch.inbox_dir permissions"),
				logging.String(logging.FieldImpact, "new archives wait for the next poll"),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one scan of the inbox, delivering every archive that was stable
// since the previous scan.
func (f *Folder) Poll(ctx context.Context, handle Handler) error {
	archives, err := extract.ScanArchives(f.inbox)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(archives))
	for _, path := range archives {
		if ctx.Err() != nil {
			return nil
		}
		if !f.accepts(path) {
			continue
		}
		seen[path] = true
		volumes, err := extract.Volumes(path)
		if err != nil {
			return err
		}
		current, err := measure(volumes)
		if err != nil {
			continue
		}
		previous, known := f.pending[path]
		f.pending[path] = current
		if !known || previous != current {
			continue
		}
		delete(f.pending, path)
		f.claim(ctx, path, volumes, handle)
	}
	for path := range f.pending {
		if !seen[path] {
			delete(f.pending, path)
		}
	}
	return nil
}

func (f *Folder) accepts(path string) bool {
	if len(f.allowed) == 0 {
		return true
	}
	return allowedName(f.allowed, filepath.Base(path))
}

func (f *Folder) claim(ctx context.Context, first string, volumes []string, handle Handler) {
	now := f.now()
	dir := f.downloadDir
	if len(volumes) > 1 {
		setDir, err := os.MkdirTemp(f.downloadDir, "volumes-*")
		if err != nil {
			logging.WarnWithContext(f.logger, "inbox claim failed", "feed_claim_failed",
				logging.String("path", first),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive stays in the inbox and is retried"),
			)
			return
		}
		dir = setDir
	}
	var moved []string
	var target string
	for _, src := range volumes {
		dst := uniqueTarget(dir, filepath.Base(src), now)
		if err := fileutil.MoveFile(src, dst); err != nil {
			logging.WarnWithContext(f.logger, "inbox claim failed", "feed_claim_failed",
				logging.String("path", src),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive stays in the inbox and is retried"),
			)
			return
		}
		moved = append(moved, dst)
		if src == first {
			target = dst
		}
	}
	info, err := os.Stat(target)
	if err != nil {
		return
	}
	ev := Event{
		Name:       filepath.Base(target),
		Path:       target,
		Size:       info.Size(),
		ReceivedAt: now,
		Volumes:    moved,
	}
	f.logger.Info("archive claimed from inbox",
		logging.String("path", target),
		logging.Int("volumes", len(moved)),
		logging.String(logging.FieldEventType, "feed_claim"),
	)
	if err := handle(ctx, ev); err != nil {
		logging.WarnWithContext(f.logger, "feed handler failed", "feed_handler_failed",
			logging.String("path", target),
			logging.Error(err),
			logging.String(logging.FieldImpact, "archive left in the download directory"),
		)
	}
}

func measure(paths []string) (snapshot, error) {
	var snap snapshot
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return snapshot{}, err
		}
		snap.size += info.Size()
		snap.modTime = max(snap.modTime, info.ModTime().UnixNano())
	}
	return snap, nil
}
