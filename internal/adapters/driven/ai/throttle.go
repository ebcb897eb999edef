package ai

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// DefaultCooldown is how long calls are held back after a provider
// reports a rate limit.
const DefaultCooldown = 2 * time.Second

// RateLimiter throttles calls to one provider with a token bucket and
// holds every caller back for a cool-down after a rate-limit error.
type RateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	cooldown time.Duration
}

// NewRateLimiter creates a limiter. A non-positive rate disables the
// token bucket but keeps the cool-down.
func NewRateLimiter(settings domain.RateLimitSettings) *RateLimiter {
	limit := rate.Limit(settings.RequestsPerSecond)
	if settings.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(limit, burst),
		cooldown: DefaultCooldown,
	}
}

// WithCooldown sets the cool-down applied after a rate-limit error.
func (r *RateLimiter) WithCooldown(d time.Duration) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldown = d
	return r
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any cool-down set by RecordRateLimit.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimit starts a cool-down. An active longer cool-down is kept.
func (r *RateLimiter) RecordRateLimit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if until := time.Now().Add(r.cooldown); until.After(r.retryAt) {
		r.retryAt = until
	}
}

// RetryAt returns the end of the current cool-down.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

// observe records a cool-down when err is a rate-limit error.
func (r *RateLimiter) observe(provider string, err error) {
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		r.RecordRateLimit()
		logger.Debug("%s rate limited, cooling down until %s", provider, r.RetryAt().Format(time.TimeOnly))
	}
}

// ThrottledEmbedding wraps an embedding service with a RateLimiter.
type ThrottledEmbedding struct {
	driven.EmbeddingService
	limiter *RateLimiter
}

// Ensure ThrottledEmbedding implements the interface.
var _ driven.EmbeddingService = (*ThrottledEmbedding)(nil)

// NewThrottledEmbedding wraps svc.
func NewThrottledEmbedding(svc driven.EmbeddingService, limiter *RateLimiter) *ThrottledEmbedding {
	return &ThrottledEmbedding{EmbeddingService: svc, limiter: limiter}
}

// EmbedBatch waits for the limiter before calling the wrapped service.
func (t *ThrottledEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vecs, err := t.EmbeddingService.EmbedBatch(ctx, texts)
	t.limiter.observe(t.ModelName(), err)
	return vecs, err
}

// ThrottledLLM wraps a completion service with a RateLimiter.
type ThrottledLLM struct {
	driven.LLMService
	limiter *RateLimiter
}

// Ensure ThrottledLLM implements the interface.
var _ driven.LLMService = (*ThrottledLLM)(nil)

// NewThrottledLLM wraps svc.
func NewThrottledLLM(svc driven.LLMService, limiter *RateLimiter) *ThrottledLLM {
	return &ThrottledLLM{LLMService: svc, limiter: limiter}
}

// Complete waits for the limiter before calling the wrapped service.
func (t *ThrottledLLM) Complete(ctx context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := t.LLMService.Complete(ctx, prompt, opts)
	t.limiter.observe(t.ModelName(), err)
	return out, err
}
