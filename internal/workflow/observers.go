package workflow

import (
	"context"
	"log/slog"

	"stlpipe/internal/history"
	"stlpipe/internal/logging"
	"stlpipe/internal/metrics"
	"stlpipe/internal/notifications"
)

// Observer receives every job transition. Observers run on the job's
// goroutine and must not block for long.
type Observer interface {
	Transition(ctx context.Context, job *Job, tr Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, job *Job, tr Transition)

// Transition calls f.
func (f ObserverFunc) Transition(ctx context.Context, job *Job, tr Transition) {
	f(ctx, job, tr)
}

// HistoryObserver writes each transition to the job ledger and records the
// published link when a job completes.
func HistoryObserver(store *history.Store, logger *slog.Logger) Observer {
	if store == nil {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "history")
	return ObserverFunc(func(ctx context.Context, job *Job, tr Transition) {
		ctx = context.WithoutCancel(ctx)
		if err := store.RecordJob(ctx, recordFor(job, tr)); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "history write failed", "history_write_failed",
				logging.String("state", string(tr.To)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir"),
				logging.String(logging.FieldImpact, "job history incomplete; processing continues"),
			)
			return
		}
		if tr.To != StateDone || job.Link == "" {
			return
		}
		link := history.Link{
			ArtifactName: job.Artifact.Name,
			URL:          job.Link,
			RemoteID:     job.RemoteID,
			GeneratedAt:  tr.At,
		}
		if job.Bundle != nil {
			link.ProjectDir = job.Bundle.ProjectDir
		}
		if err := store.RecordLink(ctx, link); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "link history write failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "link file is still written; history links list is stale"),
			)
		}
	})
}

func recordFor(job *Job, tr Transition) history.Record {
	rec := history.Record{
		JobID:        job.ID,
		ArtifactName: job.Artifact.Name,
		ArtifactKey:  job.Artifact.Key(),
		SourcePath:   job.Artifact.Path,
		State:        string(tr.To),
		Reason:       string(tr.Reason),
		RemoteID:     job.RemoteID,
		Link:         job.Link,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    tr.At,
	}
	if tr.To.Terminal() {
		rec.Reason = string(job.Reason)
		if job.Err != nil {
			rec.ErrorMessage = job.Err.Error()
		}
	}
	if b := job.Bundle; b != nil {
		rec.ProjectDir = b.ProjectDir
		rec.ArchivePath = b.ArchivePath
		rec.Images = len(b.Images)
		rec.Models = b.ModelCount()
	}
	return rec
}

// MetricsObserver feeds job counts and stage durations to rec.
func MetricsObserver(rec *metrics.Recorder) Observer {
	if rec == nil {
		return nil
	}
	return ObserverFunc(func(_ context.Context, job *Job, tr Transition) {
		if tr.From != "" && tr.From != StateQueued {
			rec.ObserveStage(string(tr.From), tr.Elapsed)
		}
		if tr.From == StateQueued && tr.To == StateExtracting {
			rec.JobStarted()
		}
		if tr.To == StateSorting {
			rec.Entries("rejected", job.Rejected)
		}
		if tr.To == StateDone && job.Bundle != nil {
			rec.Entries("image", len(job.Bundle.Images))
			rec.Entries("model", job.Bundle.ModelCount())
			rec.Entries("ignored", len(job.Bundle.Ignored))
			rec.Entries("filtered", len(job.Bundle.Filtered))
		}
		if tr.To.Terminal() {
			rec.JobFinished(string(tr.To), string(tr.Reason), tr.From != StateQueued)
		}
	})
}

// NotificationObserver publishes job_completed and job_failed events.
func NotificationObserver(svc notifications.Service, logger *slog.Logger) Observer {
	if svc == nil {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	return ObserverFunc(func(ctx context.Context, job *Job, tr Transition) {
		var event notifications.Event
		payload := notifications.Payload{"artifact": job.Artifact.Name}
		switch tr.To {
		case StateDone:
			event = notifications.EventJobCompleted
			payload["link"] = job.Link
			if job.Bundle != nil {
				payload["images"] = len(job.Bundle.Images)
				payload["models"] = job.Bundle.ModelCount()
			}
		case StateFailed:
			if job.Reason == ReasonCancelled {
				return
			}
			event = notifications.EventJobFailed
			payload["reason"] = string(job.Reason)
			if job.Err != nil {
				payload["error"] = job.Err.Error()
			}
		default:
			return
		}
		if err := svc.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "job outcome not pushed; processing continues"),
			)
		}
	})
}
