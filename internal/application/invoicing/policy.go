package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	domain "github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

// RetryPolicy bounds retries of idempotent calls
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// callPolicy applies the per-call deadline and the retry policy
type callPolicy struct {
	timeout time.Duration
	retries RetryPolicy
	logger  *zap.Logger
}

// call runs fn under the per-call deadline. A deadline hit becomes a
// TimeoutError; cancellation of the parent context is returned as is.
func (p callPolicy) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Timeout: p.timeout, Err: err}
	}
	return err
}

// retry runs fn through call until it succeeds, fails permanently, or the
// attempts are used up. Only idempotent calls may be retried.
func (p callPolicy) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.retries.MaxAttempts, 1)

	b := backoff.NewExponentialBackOff()
	if p.retries.InitialInterval > 0 {
		b.InitialInterval = p.retries.InitialInterval
	}
	if p.retries.MaxInterval > 0 {
		b.MaxInterval = p.retries.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		err := p.call(ctx, op, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("Retrying call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx),
		notify,
	)
	if err != nil && lastErr != nil && ctx.Err() != nil {
		// keep the collaborator's error rather than the bare context error
		return lastErr
	}
	return err
}

// retryable reports whether err is a transient collaborator failure.
// NumberTaken is a conflict, not a transient failure.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrNumberTaken) {
		return false
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	return errors.Is(err, domain.ErrLedgerFailed) || errors.Is(err, domain.ErrStorageFailed)
}
