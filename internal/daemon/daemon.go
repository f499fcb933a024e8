package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"stlpipe/internal/config"
	"stlpipe/internal/feed"
	"stlpipe/internal/logging"
	"stlpipe/internal/staging"
	"stlpipe/internal/workflow"
)

// Daemon feeds archives from a listener into the coordinator and enforces
// single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	coordinator *workflow.Coordinator
	listener    feed.Listener
	replier     feed.Replier

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64

	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	followUp sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	InFlight     int
	Processed    int64
	Failed       int64
	LockFilePath string
}

// New constructs a daemon. When listener also implements feed.Replier and
// telegram.reply_with_link is set, job outcomes are sent back to the sender.
func New(cfg *config.Config, logger *slog.Logger, coordinator *workflow.Coordinator, listener feed.Listener) (*Daemon, error) {
	if cfg == nil || coordinator == nil || listener == nil {
		return nil, errors.New("daemon requires config, coordinator, and listener")
	}
	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		coordinator: coordinator,
		listener:    listener,
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
	}
	if replier, ok := listener.(feed.Replier); ok && cfg.Telegram.ReplyWithLink {
		d.replier = replier
	}
	return d, nil
}

// Start acquires the lock, sweeps stale workspaces, and begins listening.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stlpipe watch instance is already running")
	}

	d.sweepStale(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.err = nil
	d.running.Store(true)
	go func() {
		defer close(d.done)
		if err := d.listener.Listen(runCtx, d.handle); err != nil && runCtx.Err() == nil {
			d.err = err
			logging.ErrorWithContext(d.logger, "feed listener stopped", "feed_stopped",
				logging.Error(err),
				logging.Alert("feed_down"),
				logging.String(logging.FieldErrorHint, "check watch.source settings and network access"),
			)
		}
	}()
	d.logger.Info("stlpipe watch started",
		logging.String("lock", d.lockPath),
		logging.String("source", d.cfg.Watch.Source),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Done is closed when the listener stops, either after Stop or on failure.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Err returns the listener failure, if any, once Done is closed.
func (d *Daemon) Err() error {
	return d.err
}

// Stop cancels listening and running jobs, waits for them, and releases the
// lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.done
	d.coordinator.Shutdown()
	d.followUp.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may need the lock file removed"),
		)
	}
	d.running.Store(false)
	d.logger.Info("stlpipe watch stopped",
		logging.Int64("processed", d.processed.Load()),
		logging.Int64("failed", d.failed.Load()),
		logging.String(logging.FieldEventType, "daemon_stop"),
	)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		InFlight:     d.coordinator.Registry().Len(),
		Processed:    d.processed.Load(),
		Failed:       d.failed.Load(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) sweepStale(ctx context.Context) {
	hours := d.cfg.Workflow.StaleWorkspaceHours
	if hours <= 0 {
		return
	}
	result := staging.CleanStale(ctx, d.cfg.Paths.ScratchDir, time.Duration(hours)*time.Hour, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("stale workspaces removed",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "stale_workspace_sweep"),
		)
	}
}

func (d *Daemon) handle(ctx context.Context, ev feed.Event) error {
	art := workflow.Artifact{
		Name:      ev.Name,
		Path:      ev.Path,
		EventID:   ev.ID,
		Size:      ev.Size,
		Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(ev.Name)), "."),
		ArrivedAt: ev.ReceivedAt,
	}
	ticket := d.coordinator.Submit(ctx, art)
	d.followUp.Add(1)
	go func() {
		defer d.followUp.Done()
		<-ticket.Done()
		job, _ := ticket.Wait(context.Background())
		d.finish(context.WithoutCancel(ctx), ev, job)
	}()
	return nil
}

func (d *Daemon) finish(ctx context.Context, ev feed.Event, job *workflow.Job) {
	switch job.State {
	case workflow.StateDone:
		d.processed.Add(1)
		if d.cfg.Watch.DeleteSourceAfterProcessing {
			d.removeSource(ev)
		}
	case workflow.StateFailed:
		d.failed.Add(1)
	case workflow.StateSkippedDuplicate:
		return
	}
	if d.replier == nil || job.Reason == workflow.ReasonCancelled {
		return
	}
	if err := d.replier.Reply(ctx, ev, ReplyText(job)); err != nil {
		logging.WarnWithContext(d.logger, "reply to sender failed", "feed_reply_failed",
			logging.String(logging.FieldArtifact, ev.Name),
			logging.Error(err),
			logging.String(logging.FieldImpact, "sender not told about the result"),
		)
	}
}

func (d *Daemon) removeSource(ev feed.Event) {
	volumes := ev.Volumes
	if len(volumes) == 0 {
		volumes = []string{ev.Path}
	}
	for _, path := range volumes {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.WarnWithContext(d.logger, "source archive not removed", "source_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive remains in the download directory"),
			)
		}
	}
	if dir := filepath.Dir(ev.Path); filepath.Clean(dir) != filepath.Clean(d.cfg.Paths.DownloadDir) {
		_ = os.Remove(dir)
	}
}

// ReplyText renders the message sent back to the sender of an archive.
func ReplyText(job *workflow.Job) string {
	name := job.Artifact.Name
	switch {
	case job.State == workflow.StateDone && job.Link != "":
		return fmt.Sprintf("%s is ready:\n%s", name, job.Link)
	case job.State == workflow.StateDone:
		models := 0
		if job.Bundle != nil {
			models = job.Bundle.ModelCount()
		}
		return fmt.Sprintf("%s sorted (%d models), nothing uploaded", name, models)
	default:
		return fmt.Sprintf("%s failed: %s", name, job.Reason)
	}
}
