// Package gemini provides an embedding service adapter using the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/providererr"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 768
)

const providerName = "gemini"

// taskType marks stored chunks and queries alike, so both live in the
// same vector space.
const taskType = "SEMANTIC_SIMILARITY"

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions requests a reduced output dimensionality when positive.
	Dimensions int
}

// EmbeddingService generates embeddings using Gemini.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
	config     *genai.EmbedContentConfig
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: taskType}
	dimensions := DefaultDimensions
	if cfg.Dimensions > 0 {
		dimensions = cfg.Dimensions
		embedCfg.OutputDimensionality = genai.Ptr(int32(cfg.Dimensions))
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: dimensions,
		config:     embedCfg,
	}, nil
}

// EmbedBatch embeds all texts in one batch request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := s.client.Models.EmbedContent(ctx, s.model, contents, s.config)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, providererr.Malformed(providerName, "got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, providererr.Malformed(providerName, "embedding %d is empty", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping fetches the model's metadata, which checks the key and the model name.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.model, nil); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", mapError(err))
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// mapError converts genai API errors into provider errors.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return providererr.FromStatus(providerName, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return providererr.FromStatus(providerName, apiErrPtr.Code, apiErrPtr.Message)
	}
	return providererr.FromTransport(providerName, err)
}
