package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// WaitFunc sleeps for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// sleep is the default WaitFunc.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff retries provider calls that fail with a rate limit or timeout.
// The wait before retry n is BaseDelay * 2^(n-1), capped at MaxDelay.
// Other errors are returned immediately.
type Backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	wait        WaitFunc
}

// NewBackoff creates a Backoff from settings. Zero values fall back to the
// defaults.
func NewBackoff(s domain.RetrySettings) *Backoff {
	d := domain.DefaultAppSettings().Retry
	b := &Backoff{
		maxAttempts: s.MaxAttempts,
		baseDelay:   s.BaseDelay,
		maxDelay:    s.MaxDelay,
		wait:        sleep,
	}
	if b.maxAttempts <= 0 {
		b.maxAttempts = d.MaxAttempts
	}
	if b.baseDelay <= 0 {
		b.baseDelay = d.BaseDelay
	}
	if b.maxDelay <= 0 {
		b.maxDelay = d.MaxDelay
	}
	return b
}

// WithWait replaces the sleep between attempts. Tests use it to observe
// the delays without waiting.
func (b *Backoff) WithWait(wait WaitFunc) *Backoff {
	cp := *b
	cp.wait = wait
	return &cp
}

// MaxAttempts returns the total number of attempts, including the first.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}

// Delay returns the wait before the given retry, counting from 1.
func (b *Backoff) Delay(retry int) time.Duration {
	d := b.baseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= b.maxDelay {
			return b.maxDelay
		}
	}
	return min(d, b.maxDelay)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned.
func (b *Backoff) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return err
		}
		if attempt >= b.maxAttempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt, err)
		}

		delay := b.Delay(attempt)
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt, b.maxAttempts, delay, err)
		if werr := b.wait(ctx, delay); werr != nil {
			return werr
		}
	}
}
