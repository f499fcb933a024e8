package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"stlpipe/internal/logging"
	"stlpipe/internal/publish"
	"stlpipe/internal/services"
)

// retry runs op up to upload.max_attempts times. Each attempt gets its own
// timeout; an attempt that runs out of time counts as transient. Errors that
// are not retryable stop the loop at once.
func (c *Coordinator) retry(ctx context.Context, operation string, timeout time.Duration, op func(context.Context) error) error {
	attempts := c.cfg.Upload.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(attempts-1)), ctx)
	logger := logging.WithContext(ctx, c.logger)

	attempt := 0
	run := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := op(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() != nil {
			err = publish.Transient(operation, fmt.Errorf("attempt exceeded %s: %w", timeout, err))
		}
		if !services.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.UploadAttempt(operation, "retry")
		logging.WarnWithContext(logger, "remote operation failed; retrying", "upload_retry",
			logging.String("operation", operation),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("retry_in", wait),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient Drive or network error"),
			logging.String(logging.FieldImpact, "job continues after backoff"),
		)
	}

	err := backoff.RetryNotify(run, policy, notify)
	if err != nil {
		c.metrics.UploadAttempt(operation, "failure")
		if services.IsRetryable(err) && ctx.Err() == nil {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, err)
		}
		return err
	}
	c.metrics.UploadAttempt(operation, "success")
	return nil
}
