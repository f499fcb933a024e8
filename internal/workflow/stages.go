package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"stlpipe/internal/extract"
	"stlpipe/internal/logging"
	"stlpipe/internal/publish"
	"stlpipe/internal/sorter"
	"stlpipe/internal/staging"
)

type stageFunc func(ctx context.Context, job *Job) stageOutcome

// stageOutcome names the state that follows a stage.
type stageOutcome struct {
	next   State
	reason Reason
	err    error
}

func advance(next State) stageOutcome { return stageOutcome{next: next} }

func fail(reason Reason, err error) stageOutcome {
	return stageOutcome{next: StateFailed, reason: reason, err: err}
}

func (c *Coordinator) extractStage(ctx context.Context, job *Job) stageOutcome {
	ws, err := staging.Allocate(c.cfg.Paths.ScratchDir, job.Artifact.Name, job.Artifact.Key())
	if err != nil {
		return fail(ReasonWriteFailure, err)
	}
	job.Workspace = ws.Path

	extractCtx, cancel := context.WithTimeout(ctx, c.cfg.ExtractionTimeout())
	defer cancel()
	result, err := c.extractor.Extract(extractCtx, job.Artifact.Path, ws.ExtractDir())
	if result != nil {
		job.Rejected = len(result.Rejected)
	}
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return fail(ReasonCancelled, ctx.Err())
		case errors.Is(err, context.DeadlineExceeded) || extractCtx.Err() != nil:
			return fail(ReasonCorruptArchive, fmt.Errorf("extraction exceeded %s: %w", c.cfg.ExtractionTimeout(), err))
		}
		return fail(extractReason(err), err)
	}

	job.extracted = result
	return advance(StateSorting)
}

func extractReason(err error) Reason {
	var extractErr *extract.Error
	if !errors.As(err, &extractErr) {
		return ReasonCorruptArchive
	}
	switch extractErr.Reason {
	case extract.ReasonFormatMismatch:
		return ReasonFormatMismatch
	case extract.ReasonCapabilityUnavailable:
		return ReasonCapabilityUnavailable
	case extract.ReasonWriteFailure:
		return ReasonWriteFailure
	default:
		return ReasonCorruptArchive
	}
}

func (c *Coordinator) sortStage(ctx context.Context, job *Job) stageOutcome {
	in := sorter.Input{
		ArtifactName: job.Artifact.Name,
		SourceRoot:   staging.Workspace{Path: job.Workspace}.ExtractDir(),
	}
	if job.extracted != nil {
		in.Entries = job.extracted.Entries
		in.Rejected = job.extracted.Rejected
	}
	bundle, err := c.sorter.Sort(ctx, in, c.cfg.Paths.OutputDir)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(ReasonCancelled, err)
		}
		return fail(ReasonWriteFailure, err)
	}
	job.Bundle = bundle
	job.Warnings = append(job.Warnings, bundle.Warnings...)

	if !c.cfg.Upload.Enabled {
		return advance(StateDone)
	}
	if bundle.ModelCount() == 0 {
		return advance(StateDone)
	}
	return advance(StateUploading)
}

func (c *Coordinator) uploadStage(ctx context.Context, job *Job) stageOutcome {
	var remoteID string
	err := c.retry(ctx, "upload", c.cfg.UploadTimeout(), func(attemptCtx context.Context) error {
		id, err := c.publisher.Upload(attemptCtx, job.Bundle.ArchivePath)
		if err != nil {
			return err
		}
		remoteID = id
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return fail(ReasonCancelled, err)
		case errors.Is(err, publish.ErrQuota):
			return fail(ReasonQuotaExceeded, err)
		case errors.Is(err, publish.ErrPermissionDenied):
			return fail(ReasonPermissionDenied, err)
		}
		return fail(ReasonUploadExhausted, err)
	}
	job.RemoteID = remoteID
	return advance(StatePublishingLink)
}

func (c *Coordinator) publishStage(ctx context.Context, job *Job) stageOutcome {
	var link string
	err := c.retry(ctx, "share", c.cfg.PublishTimeout(), func(attemptCtx context.Context) error {
		url, err := c.publisher.Share(attemptCtx, job.RemoteID)
		if err != nil {
			return err
		}
		link = url
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(ReasonCancelled, err)
		}
		return fail(ReasonLinkPublishFailed, err)
	}

	path, err := publish.WriteDescriptor(job.Bundle.ProjectDir, publish.LinkDescriptor{
		ArtifactName: job.Artifact.Name,
		URL:          link,
		GeneratedAt:  time.Now(),
		FileName:     c.cfg.Upload.LinkFilename,
	})
	if err != nil {
		return fail(ReasonLinkPublishFailed, err)
	}
	job.Link = link
	job.DescriptorPath = path

	if c.cfg.Upload.DeleteLocalAfterUpload {
		if err := os.Remove(job.Bundle.ArchivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "local archive not removed", "archive_cleanup_failed",
				logging.String("archive", job.Bundle.ArchivePath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "archive stays on disk next to the link file"),
			)
		}
	}
	return advance(StateDone)
}

func removeWorkspace(path string) error {
	return staging.Workspace{Path: path}.Remove()
}
