package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Distinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrValidation, ErrExtraction, ErrUnsupportedFormat, ErrEmbedding,
		ErrStorage, ErrLLM, ErrRateLimited, ErrTimeout, ErrMalformedResponse,
		ErrDocumentDeleted, ErrLLMUnavailable, ErrEmbeddingUnavailable,
	}
	for i, a := range all {
		assert.NotEmpty(t, a.Error())
		for j, b := range all {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestErrors_Wrapping(t *testing.T) {
	err := fmt.Errorf("append chunks: %w", ErrStorage)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestProviderError_Is(t *testing.T) {
	tests := []struct {
		kind      ProviderErrorKind
		sentinel  error
		retryable bool
	}{
		{ProviderErrorRateLimited, ErrRateLimited, true},
		{ProviderErrorTimeout, ErrTimeout, true},
		{ProviderErrorMalformed, ErrMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("embed batch: %w", NewProviderError("openai", tt.kind, 429, errors.New("boom")))
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.retryable, tt.kind.IsRetryable())
		})
	}

	rejected := NewProviderError("gemini", ProviderErrorRejected, 400, nil)
	assert.NotErrorIs(t, rejected, ErrRateLimited)
	assert.False(t, IsRetryable(rejected))
}

func TestProviderError_Error(t *testing.T) {
	inner := errors.New("slow down")
	err := NewProviderError("openai", ProviderErrorRateLimited, 429, inner)
	assert.Equal(t, "openai: rate_limited (status 429): slow down", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := NewProviderError("ollama", ProviderErrorUnavailable, 0, nil)
	assert.Equal(t, "ollama: unavailable", bare.Error())
}
