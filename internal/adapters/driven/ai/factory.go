// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/custodia-labs/grantkb/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/grantkb/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/grantkb/internal/adapters/driven/embedding/openai"
	geminillm "github.com/custodia-labs/grantkb/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/grantkb/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/grantkb/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	Warnings         []string // Non-fatal issues; the affected service is nil.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates, validates and throttles both services. A service that
// cannot be reached is left nil and reported in Warnings, so commands that
// only read the store still work.
func Init(ctx context.Context, settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embedding, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else if embedding != nil {
		result.EmbeddingService = NewThrottledEmbedding(embedding, NewRateLimiter(settings.RateLimit))
	}

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else if llm != nil {
		result.LLMService = NewThrottledLLM(llm, NewRateLimiter(settings.RateLimit))
	}

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'grantkb settings' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'grantkb settings' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'grantkb settings' to fix",
			domain.ErrLLMUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'grantkb settings' to fix",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service for settings.Provider.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("unsupported embedding provider: %q", "")
	}
	dimensions := settings.ResolvedDimensions()

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})
	}
	return nil, fmt.Errorf("unsupported embedding provider: %q", settings.Provider)
}

// CreateLLMService creates the completion service for settings.Provider.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil {
		return nil, fmt.Errorf("unsupported LLM provider: %q", "")
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	}
	return nil, fmt.Errorf("unsupported LLM provider: %q", settings.Provider)
}
