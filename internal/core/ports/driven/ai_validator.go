package driven

import "github.com/custodia-labs/grantkb/internal/core/domain"

// AIConfigValidator checks provider settings by contacting the provider.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	ValidateEmbedding(settings *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured completion provider.
	ValidateLLM(settings *domain.LLMSettings) error
}
