package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved by
// building a throwaway service and pinging it.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator returns a validator that waits up to five seconds for
// each provider.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// ValidateEmbedding pings the embedding provider. An empty provider has
// nothing to check.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if settings == nil || settings.Provider == "" {
		return nil
	}
	if err := checkProvider(settings.Provider, settings.APIKey); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("embedding provider %s: %w", settings.Provider, err)
	}
	return nil
}

// ValidateLLM pings the completion provider. An empty provider has nothing
// to check.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	if settings == nil || settings.Provider == "" {
		return nil
	}
	if err := checkProvider(settings.Provider, settings.APIKey); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("LLM provider %s: %w", settings.Provider, err)
	}
	return nil
}

// checkProvider rejects settings that cannot work without contacting anyone.
func checkProvider(p domain.AIProvider, apiKey string) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, p)
	}
	if p.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: %s needs an API key (set it or export %s)", domain.ErrValidation, p, p.APIKeyEnv())
	}
	return nil
}
