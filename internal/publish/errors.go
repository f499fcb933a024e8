package publish

import (
	"context"
	"errors"
	"fmt"

	"stlpipe/internal/services"
)

// Kind classifies a publish failure.
type Kind string

const (
	KindTransient        Kind = "transient"
	KindQuota            Kind = "quota"
	KindPermissionDenied Kind = "permission_denied"
)

var (
	ErrQuota            = errors.New("storage quota exceeded")
	ErrPermissionDenied = errors.New("storage permission denied")
)

// Error is returned by Publisher for every failed operation. Transient errors
// match services.ErrTransient.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case services.ErrTransient:
		return e.Kind == KindTransient
	case ErrQuota:
		return e.Kind == KindQuota
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	}
	return false
}

// Transient wraps err as a retryable failure.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Quota wraps err as a quota failure.
func Quota(op string, err error) *Error {
	return &Error{Kind: KindQuota, Op: op, Err: err}
}

// PermissionDenied wraps err as an authorization failure.
func PermissionDenied(op string, err error) *Error {
	return &Error{Kind: KindPermissionDenied, Op: op, Err: err}
}

// classify maps an arbitrary storage error onto an *Error. Caller
// cancellation is returned unchanged; anything unrecognised is transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pubErr *Error
	if errors.As(err, &pubErr) {
		if pubErr.Op == "" {
			pubErr.Op = op
		}
		return pubErr
	}
	switch {
	case errors.Is(err, ErrQuota):
		return Quota(op, err)
	case errors.Is(err, ErrPermissionDenied):
		return PermissionDenied(op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return Transient(op, fmt.Errorf("timed out: %w", err))
	}
	return Transient(op, err)
}
