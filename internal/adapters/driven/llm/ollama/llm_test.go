package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultLLMTimeout, svc.client.Timeout)
}

func TestComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.2","response":"Two years.","done":true,"done_reason":"stop"}`))
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "mistral"})
	out, err := svc.Complete(context.Background(), "How long?", driven.CompletionOptions{MaxTokens: 64})

	require.NoError(t, err)
	assert.Equal(t, "Two years.", out)
	assert.Equal(t, "mistral", got["model"])
	assert.Equal(t, "How long?", got["prompt"])
	assert.Equal(t, false, got["stream"])
	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 64, opts["num_predict"], 0)
	assert.Contains(t, opts, "temperature")
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ProviderErrorKind
	}{
		{http.StatusTooManyRequests, domain.ProviderErrorRateLimited},
		{http.StatusServiceUnavailable, domain.ProviderErrorUnavailable},
		{http.StatusNotFound, domain.ProviderErrorRejected},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"model not available"}`))
			}))
			defer server.Close()

			_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Complete(context.Background(), "q", driven.CompletionOptions{})

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.want, pe.Kind)
			assert.Equal(t, tc.status, pe.StatusCode)
		})
	}
}

func TestComplete_DeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Complete(ctx, "q", driven.CompletionOptions{})

	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestComplete_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Complete(context.Background(), "q", driven.CompletionOptions{})

	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}

func TestComplete_TruncatedAtMaxTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"The programme funds cooperation between","done":true,"done_reason":"length"}`))
	}))
	defer server.Close()

	out, err := NewLLMService(LLMConfig{BaseURL: server.URL}).Complete(
		context.Background(), "q", driven.CompletionOptions{MaxTokens: 8},
	)

	assert.Empty(t, out)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.ErrorContains(t, err, "truncated")
	assert.False(t, domain.IsRetryable(err))
}
