package extract

import (
	"errors"
	"fmt"
)

// Reason classifies an extraction failure.
type Reason string

const (
	ReasonFormatMismatch        Reason = "format_mismatch"
	ReasonCapabilityUnavailable Reason = "capability_unavailable"
	ReasonCorruptArchive        Reason = "corrupt_archive"
	ReasonPathTraversal         Reason = "path_traversal_entry"
	ReasonWriteFailure          Reason = "write_failure"
)

var (
	ErrFormatMismatch        = errors.New("archive format mismatch")
	ErrCapabilityUnavailable = errors.New("archive backend unavailable")
	ErrCorruptArchive        = errors.New("corrupt archive")
	ErrPathTraversal         = errors.New("unsafe archive entry")
	ErrWriteFailure          = errors.New("extraction write failure")
)

// Error describes an extraction failure for an archive or a single entry.
type Error struct {
	Reason  Reason
	Archive string
	Entry   string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Archive != "" {
		msg += ": " + e.Archive
	}
	if e.Entry != "" {
		msg += fmt.Sprintf(" (entry %q)", e.Entry)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's Reason.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Reason.sentinel()
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonFormatMismatch:
		return ErrFormatMismatch
	case ReasonCapabilityUnavailable:
		return ErrCapabilityUnavailable
	case ReasonCorruptArchive:
		return ErrCorruptArchive
	case ReasonPathTraversal:
		return ErrPathTraversal
	case ReasonWriteFailure:
		return ErrWriteFailure
	default:
		return nil
	}
}

func newError(reason Reason, archive string, err error) *Error {
	return &Error{Reason: reason, Archive: archive, Err: err}
}
