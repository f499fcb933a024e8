package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stlpipe/internal/extract"
	"stlpipe/internal/sorter"
)

// State is a job lifecycle state.
type State string

const (
	StateQueued           State = "queued"
	StateExtracting       State = "extracting"
	StateSorting          State = "sorting"
	StateUploading        State = "uploading"
	StatePublishingLink   State = "publishing_link"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateSkippedDuplicate State = "skipped_duplicate"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateSkippedDuplicate
}

// Reason explains a failed or skipped job.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonFormatMismatch        Reason = "format_mismatch"
	ReasonCapabilityUnavailable Reason = "capability_unavailable"
	ReasonCorruptArchive        Reason = "corrupt_archive"
	ReasonWriteFailure          Reason = "write_failure"
	ReasonUploadExhausted       Reason = "upload_exhausted"
	ReasonQuotaExceeded         Reason = "quota_exceeded"
	ReasonPermissionDenied      Reason = "permission_denied"
	ReasonLinkPublishFailed     Reason = "link_publish_failed"
	ReasonCancelled             Reason = "cancelled"
	ReasonDuplicateInFlight     Reason = "duplicate_in_flight"
)

// ErrDuplicateInFlight is the error of a job skipped because the same
// artifact was already being processed.
var ErrDuplicateInFlight = errors.New("artifact already in flight")

// Artifact is a single archive submitted for processing.
type Artifact struct {
	Name string
	Path string
	// EventID identifies the feed event that delivered the file, if any.
	EventID   string
	Size      int64
	Format    string
	ArrivedAt time.Time
}

// NewArtifact describes the file at path.
func NewArtifact(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("%s is a directory", path)
	}
	return Artifact{
		Name:      filepath.Base(path),
		Path:      path,
		Size:      info.Size(),
		Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		ArrivedAt: time.Now(),
	}, nil
}

// Key is the dedup identity: the feed event when known, otherwise the
// name and size.
func (a Artifact) Key() string {
	if a.EventID != "" {
		return "event:" + a.EventID
	}
	return fmt.Sprintf("%s:%d", a.Name, a.Size)
}

// Transition records one state change.
type Transition struct {
	From   State
	To     State
	Reason Reason
	At     time.Time
	// Elapsed is the time spent in From.
	Elapsed time.Duration
}

// Job is one run of the pipeline over one artifact. A job is owned by its
// goroutine until its ticket is done; read it only after that.
type Job struct {
	ID       string
	Artifact Artifact
	State    State
	Reason   Reason
	Err      error

	Workspace      string
	Rejected       int
	Bundle         *sorter.Bundle
	RemoteID       string
	Link           string
	DescriptorPath string
	Warnings       []string
	History        []Transition

	CreatedAt  time.Time
	FinishedAt time.Time

	enteredAt time.Time
	extracted *extract.Result
}

// Ticket tracks a submitted job.
type Ticket struct {
	job  *Job
	done chan struct{}
}

// Done is closed once the job reaches a terminal state.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the job finishes or ctx ends. The job keeps running if
// ctx ends first.
func (t *Ticket) Wait(ctx context.Context) (*Job, error) {
	select {
	case <-t.done:
		return t.job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ID returns the job identifier.
func (t *Ticket) ID() string { return t.job.ID }
