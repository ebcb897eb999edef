// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Gemini (text-embedding-004)
//   - Ollama (nomic-embed-text, all-minilm)
//
// Transient failures are reported as *domain.ProviderError so callers can
// match domain.ErrRateLimited and domain.ErrTimeout.
type EmbeddingService interface {
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// It must match the ChunkStore dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
