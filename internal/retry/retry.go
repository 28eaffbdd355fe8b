// Package retry re-runs failing operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults used by the search client.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it immediately. Do strips the wrapper
// before returning, so callers still see the original error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Sleep waits for d or until ctx is done. Tests replace it to avoid real waits.
var Sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the delay before the retry that follows attempt index i
// (0-based): base * 2^i.
func Backoff(base time.Duration, i int) time.Duration {
	if i < 0 {
		i = 0
	}
	return base * time.Duration(1<<uint(i))
}

// Do calls op up to maxAttempts times, waiting Backoff(baseDelay, i) between
// attempts. The last error is returned unchanged. A cancelled context stops
// the loop immediately without consuming an attempt.
func Do[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The failure is the cancellation itself, not a retryable fault.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return zero, err
			}
			return zero, ctxErr
		}

		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		delay := Backoff(baseDelay, attempt)
		log.WithError(err).Debugf("[Retry] Attempt %d/%d failed, retrying in %v", attempt+1, maxAttempts, delay)
		if sleepErr := Sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
	}
	return zero, lastErr
}
