package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Callers match them with errors.Is; components wrap them with context.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input such as an empty name,
	// empty text or a non-positive k. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrExtraction indicates the text extractor failed or returned no text.
	ErrExtraction = errors.New("extraction error")

	// ErrUnsupportedFormat indicates no extractor handles the MIME type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmbedding indicates the embedding provider failed after retries.
	ErrEmbedding = errors.New("embedding error")

	// ErrStorage indicates a store invariant would have been violated.
	ErrStorage = errors.New("storage error")

	// ErrLLM indicates the completion provider failed after retries.
	ErrLLM = errors.New("LLM error")

	// ErrRateLimited indicates a provider rejected the call for rate reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a provider call exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrMalformedResponse indicates a provider answered with unusable output.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrDocumentDeleted indicates a document was deleted while it was
	// being ingested.
	ErrDocumentDeleted = errors.New("document deleted during ingestion")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrDimensionMismatch indicates the store was built with a different
	// embedding dimension than the configured model produces.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// ProviderErrorKind classifies a failed provider call.
type ProviderErrorKind string

// Provider error kinds.
const (
	ProviderErrorRateLimited ProviderErrorKind = "rate_limited"
	ProviderErrorTimeout     ProviderErrorKind = "timeout"
	ProviderErrorUnavailable ProviderErrorKind = "unavailable"
	ProviderErrorMalformed   ProviderErrorKind = "malformed"
	ProviderErrorRejected    ProviderErrorKind = "rejected"
)

// IsRetryable returns true for kinds worth retrying with backoff.
func (k ProviderErrorKind) IsRetryable() bool {
	return k == ProviderErrorRateLimited || k == ProviderErrorTimeout
}

// sentinel maps the kind onto the matching domain error.
func (k ProviderErrorKind) sentinel() error {
	switch k {
	case ProviderErrorRateLimited:
		return ErrRateLimited
	case ProviderErrorTimeout:
		return ErrTimeout
	case ProviderErrorMalformed:
		return ErrMalformedResponse
	default:
		return nil
	}
}

// ProviderError is returned by embedding and completion adapters.
type ProviderError struct {
	// Provider names the backend, e.g. "openai".
	Provider string

	// Kind classifies the failure.
	Kind ProviderErrorKind

	// StatusCode is the HTTP status, when there was one.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRateLimited) match a rate-limited ProviderError.
func (e *ProviderError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, kind ProviderErrorKind, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
