// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"time"
)

// LLMService completes prompts.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini)
//   - Gemini (gemini-2.5-flash)
//   - Ollama (local models)
//
// Rate limits, timeouts and truncated output are reported as
// *domain.ProviderError.
type LLMService interface {
	// Complete produces a completion for prompt.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionOptions configures a single completion.
type CompletionOptions struct {
	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// MaxTokens is the maximum number of tokens to generate. Zero uses the
	// provider default.
	MaxTokens int

	// Timeout bounds the call. Zero means no extra deadline.
	Timeout time.Duration
}
