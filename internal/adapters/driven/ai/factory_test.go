package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// ollamaServer answers the Ollama tag listing used by Ping.
func ollamaServer(t *testing.T, status int) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	// Should not panic
	result.Close()

	result = &InitResult{EmbeddingService: &stubEmbedding{}, LLMService: &stubLLM{}}
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantDims    int
		errContains string
	}{
		{
			name:        "nil settings",
			settings:    nil,
			errContains: "unsupported embedding provider",
		},
		{
			name:        "unknown provider",
			settings:    &domain.EmbeddingSettings{Provider: "anthropic"},
			errContains: "unsupported embedding provider",
		},
		{
			name:     "ollama known model",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm"},
			wantDims: 384,
		},
		{
			name:     "ollama unknown model falls back",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "custom"},
			wantDims: 768,
		},
		{
			name:     "ollama explicit dimensions",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "custom", Dimensions: 512},
			wantDims: 512,
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI, APIKey: "sk-test", Model: "text-embedding-3-large",
			},
			wantDims: 3072,
		},
		{
			name:        "openai without key",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			errContains: "API key is required",
		},
		{
			name: "gemini",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderGemini, APIKey: "key", Model: "text-embedding-004",
			},
			wantDims: 768,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(context.Background(), tc.settings)
			if tc.errContains != "" {
				assert.ErrorContains(t, err, tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantDims, svc.Dimensions())
			assert.Equal(t, tc.settings.Model, svc.ModelName())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.LLMSettings
		errContains string
	}{
		{"nil settings", nil, "unsupported LLM provider"},
		{"unknown provider", &domain.LLMSettings{Provider: "anthropic"}, "unsupported LLM provider"},
		{"ollama", &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, ""},
		{"openai", &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk", Model: "gpt-4o-mini"}, ""},
		{"openai without key", &domain.LLMSettings{Provider: domain.AIProviderOpenAI}, "API key is required"},
		{"gemini", &domain.LLMSettings{Provider: domain.AIProviderGemini, APIKey: "k", Model: "gemini-2.5-flash"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := CreateLLMService(context.Background(), tc.settings)
			if tc.errContains != "" {
				assert.ErrorContains(t, err, tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.settings.Model, svc.ModelName())
		})
	}
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{})
	assert.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: ollamaServer(t, http.StatusOK), Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", svc.ModelName())

	_, err = CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: ollamaServer(t, http.StatusInternalServerError),
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorContains(t, err, "grantkb settings")
}

func TestCreateAndValidateLLMService(t *testing.T) {
	svc, err := CreateAndValidateLLMService(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: ollamaServer(t, http.StatusOK), Model: "llama3.2",
	})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", svc.ModelName())

	_, err = CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: ollamaServer(t, http.StatusBadGateway),
	})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestInit(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding.BaseURL = ollamaServer(t, http.StatusOK)
	settings.LLM.BaseURL = ollamaServer(t, http.StatusServiceUnavailable)

	result := Init(context.Background(), &settings)
	defer result.Close()

	require.NotNil(t, result.EmbeddingService)
	assert.IsType(t, &ThrottledEmbedding{}, result.EmbeddingService)
	assert.Nil(t, result.LLMService)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "LLM service unavailable")
}

// blockingServer holds every request until release is closed.
func blockingServer(t *testing.T, release <-chan struct{}) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server.URL
}
