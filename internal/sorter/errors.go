package sorter

import "errors"

// Reason classifies a sorting failure.
type Reason string

const ReasonWriteFailure Reason = "write_failure"

// ErrWriteFailure matches any *Error through errors.Is.
var ErrWriteFailure = errors.New("sort write failure")

// Error wraps an I/O failure raised while building the output bundle.
type Error struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrWriteFailure && e.Reason == ReasonWriteFailure
}

func writeFailure(path string, err error) *Error {
	return &Error{Reason: ReasonWriteFailure, Path: path, Err: err}
}
