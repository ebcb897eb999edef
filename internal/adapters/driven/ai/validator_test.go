package ai

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func TestConfigValidator_NothingToCheck(t *testing.T) {
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Model: "nomic-embed-text"}))
	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Model: "llama3.2"}))
}

func TestConfigValidator_Ollama(t *testing.T) {
	v := NewConfigValidator()
	up := ollamaServer(t, http.StatusOK)
	down := ollamaServer(t, http.StatusInternalServerError)

	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: up}))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: up}))

	err := v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down})
	assert.ErrorContains(t, err, "LLM provider ollama")
	err = v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: down})
	assert.ErrorContains(t, err, "embedding provider ollama")
}

func TestConfigValidator_MissingAPIKey(t *testing.T) {
	v := NewConfigValidator()

	err := v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	err = v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderGemini})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestConfigValidator_UnknownProvider(t *testing.T) {
	err := NewConfigValidator().ValidateLLM(&domain.LLMSettings{Provider: "anthropic"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConfigValidator_Timeout(t *testing.T) {
	v := &ConfigValidator{timeout: 50 * time.Millisecond}
	slow := make(chan struct{})
	t.Cleanup(func() { close(slow) })
	url := blockingServer(t, slow)

	start := time.Now()
	err := v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: url})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
