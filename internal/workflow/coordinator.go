package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"stlpipe/internal/config"
	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
	"stlpipe/internal/metrics"
	"stlpipe/internal/publish"
	"stlpipe/internal/services"
	"stlpipe/internal/sorter"
)

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, artifactPath, destDir string) (*extract.Result, error)
}

// Sorter turns extracted entries into an output bundle.
type Sorter interface {
	Sort(ctx context.Context, in sorter.Input, outputDir string) (*sorter.Bundle, error)
}

// Publisher delivers an archive and exposes it through a public link.
type Publisher interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Share(ctx context.Context, remoteID string) (string, error)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRegistry shares an in-flight registry between coordinators.
func WithRegistry(r *Registry) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithObservers appends transition observers.
func WithObservers(observers ...Observer) Option {
	return func(c *Coordinator) {
		for _, o := range observers {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// WithPublisher sets the remote delivery collaborator.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithExtractor replaces the archive extractor.
func WithExtractor(e Extractor) Option {
	return func(c *Coordinator) { c.extractor = e }
}

// WithSorter replaces the bundle writer.
func WithSorter(s Sorter) Option {
	return func(c *Coordinator) { c.sorter = s }
}

// WithBackOff replaces the retry schedule factory. The attempt limit from
// upload.max_attempts still applies.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Coordinator) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithCleanup controls whether terminal jobs remove their workspace.
func WithCleanup(enabled bool) Option {
	return func(c *Coordinator) { c.cleanup = enabled }
}

// WithWorkers overrides workflow.workers.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMetrics records retry attempts on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Coordinator) { c.metrics = rec }
}

// Coordinator runs artifacts through the pipeline.
type Coordinator struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *Registry
	extractor  Extractor
	sorter     Sorter
	publisher  Publisher
	observers  []Observer
	newBackOff func() backoff.BackOff
	metrics    *metrics.Recorder
	cleanup    bool
	workers    int

	sem    chan struct{}
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New builds a coordinator. Without WithPublisher every upload fails with
// permission_denied, so callers that keep upload enabled must supply one.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Coordinator {
	logger = logging.NewComponentLogger(logger, "workflow")
	c := &Coordinator{
		cfg:       cfg,
		logger:    logger,
		registry:  NewRegistry(),
		extractor: extract.New(cfg, logger),
		sorter:    sorter.New(cfg, logger),
		cleanup:   cfg.Workflow.Cleanup,
		workers:   cfg.Workflow.Workers,
	}
	c.newBackOff = c.defaultBackOff
	for _, opt := range opts {
		opt(c)
	}
	if c.publisher == nil {
		c.publisher = publish.NewPublisher(nil, logger)
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	c.sem = make(chan struct{}, c.workers)
	c.base, c.cancel = context.WithCancel(context.Background())
	return c
}

func (c *Coordinator) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBaseDelay()
	b.MaxInterval = c.cfg.RetryMaxDelay()
	b.MaxElapsedTime = 0
	return b
}

// Registry returns the in-flight registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Submit accepts art for processing. A duplicate of an in-flight artifact is
// answered with an already finished skipped_duplicate ticket. Cancelling ctx
// cancels the job.
func (c *Coordinator) Submit(ctx context.Context, art Artifact) *Ticket {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Artifact:  art,
		State:     StateQueued,
		CreatedAt: now,
		enteredAt: now,
	}
	ticket := &Ticket{job: job, done: make(chan struct{})}

	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithArtifact(ctx, art.Name)
	queued := Transition{To: StateQueued, At: now}
	job.History = append(job.History, queued)
	c.emit(ctx, job, queued)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.finish(ctx, job, StateFailed, ReasonCancelled, errors.New("coordinator is shut down"))
		close(ticket.done)
		return ticket
	}
	if !c.registry.Acquire(art.Key(), job.ID) {
		c.mu.Unlock()
		holder, _ := c.registry.Holder(art.Key())
		c.logger.Info("artifact already in flight",
			logging.String(logging.FieldArtifact, art.Name),
			logging.String("holder_job_id", holder),
			logging.String(logging.FieldEventType, "job_skipped_duplicate"),
		)
		c.finish(ctx, job, StateSkippedDuplicate, ReasonDuplicateInFlight, ErrDuplicateInFlight)
		close(ticket.done)
		return ticket
	}
	c.wg.Add(1)
	c.mu.Unlock()

	jobCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.base, cancel)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()
		c.execute(jobCtx, job)
		c.registry.Release(art.Key(), job.ID)
		close(ticket.done)
	}()
	return ticket
}

// Run submits art and waits for the job to finish.
func (c *Coordinator) Run(ctx context.Context, art Artifact) *Job {
	ticket := c.Submit(ctx, art)
	<-ticket.Done()
	return ticket.job
}

// Wait blocks until every accepted job has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Shutdown rejects new submissions, cancels running jobs, and waits for them.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) execute(ctx context.Context, job *Job) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		c.finish(ctx, job, StateFailed, ReasonCancelled, ctx.Err())
		return
	}
	defer func() { <-c.sem }()

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("job started",
		logging.String("path", job.Artifact.Path),
		logging.Int64("size_bytes", job.Artifact.Size),
		logging.String(logging.FieldEventType, "job_start"),
	)

	stages := map[State]stageFunc{
		StateExtracting:     c.extractStage,
		StateSorting:        c.sortStage,
		StateUploading:      c.uploadStage,
		StatePublishingLink: c.publishStage,
	}
	next := StateExtracting
	for {
		if err := ctx.Err(); err != nil {
			c.finish(ctx, job, StateFailed, ReasonCancelled, err)
			break
		}
		c.transition(ctx, job, next, ReasonNone)
		stageCtx := services.WithStage(ctx, string(next))
		outcome := stages[next](stageCtx, job)
		if outcome.err != nil && errors.Is(outcome.err, context.Canceled) && ctx.Err() != nil {
			c.finish(ctx, job, StateFailed, ReasonCancelled, ctx.Err())
			break
		}
		if outcome.next.Terminal() {
			c.finish(ctx, job, outcome.next, outcome.reason, outcome.err)
			break
		}
		next = outcome.next
	}
	c.cleanupWorkspace(ctx, job)
}

// transition moves job into a non-terminal state.
func (c *Coordinator) transition(ctx context.Context, job *Job, to State, reason Reason) {
	now := time.Now()
	tr := Transition{From: job.State, To: to, Reason: reason, At: now, Elapsed: now.Sub(job.enteredAt)}
	job.State = to
	job.enteredAt = now
	job.History = append(job.History, tr)
	c.emit(ctx, job, tr)
}

// finish moves job into a terminal state.
func (c *Coordinator) finish(ctx context.Context, job *Job, to State, reason Reason, err error) {
	now := time.Now()
	tr := Transition{From: job.State, To: to, Reason: reason, At: now, Elapsed: now.Sub(job.enteredAt)}
	job.State = to
	job.Reason = reason
	job.Err = err
	job.FinishedAt = now
	job.enteredAt = now
	job.History = append(job.History, tr)

	logger := logging.WithContext(ctx, c.logger)
	switch to {
	case StateDone:
		attrs := []logging.Attr{
			logging.Duration("elapsed", now.Sub(job.CreatedAt)),
			logging.String(logging.FieldEventType, "job_complete"),
		}
		if job.Link != "" {
			attrs = append(attrs, logging.String("link", job.Link))
		}
		logger.Info("job completed", logging.Args(attrs...)...)
	case StateFailed:
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("reason", string(reason)),
			logging.String("failed_stage", string(tr.From)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(reason)),
		)
	}
	c.emit(context.WithoutCancel(ctx), job, tr)
}

func (c *Coordinator) emit(ctx context.Context, job *Job, tr Transition) {
	for _, o := range c.observers {
		o.Transition(ctx, job, tr)
	}
}

func (c *Coordinator) cleanupWorkspace(ctx context.Context, job *Job) {
	if job.Workspace == "" {
		return
	}
	logger := logging.WithContext(ctx, c.logger)
	if !c.cleanup {
		logger.Info("workspace kept",
			logging.String("workspace", job.Workspace),
			logging.String(logging.FieldEventType, "workspace_kept"),
		)
		return
	}
	if err := removeWorkspace(job.Workspace); err != nil {
		logging.WarnWithContext(logger, "workspace cleanup failed", "workspace_cleanup_failed",
			logging.String("workspace", job.Workspace),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually or enable workflow.stale_workspace_hours"),
			logging.String(logging.FieldImpact, "scratch space remains allocated"),
		)
	}
}

func hintFor(reason Reason) string {
	switch reason {
	case ReasonFormatMismatch:
		return "the file extension does not match its contents; re-download the archive"
	case ReasonCapabilityUnavailable:
		return "install unrar or set extraction.unrar_binary"
	case ReasonCorruptArchive:
		return "the archive is damaged or extraction.timeout_seconds is too low"
	case ReasonWriteFailure:
		return "check free space and permissions on paths.output_dir"
	case ReasonUploadExhausted:
		return "Drive kept failing; re-run once connectivity recovers"
	case ReasonQuotaExceeded:
		return "free space on the Drive account"
	case ReasonPermissionDenied:
		return "run stlpipe drive test and check gdrive.folder_id access"
	case ReasonLinkPublishFailed:
		return "the archive is uploaded; share it manually or re-run"
	case ReasonCancelled:
		return "the job was interrupted; re-run to process it"
	default:
		return "check logs for details"
	}
}
