package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyChunkWindow     = "chunker.window"
	keyChunkOverlap    = "chunker.overlap"
	keyChunkTolerance  = "chunker.tolerance"
	keyEmbedBatchSize  = "ingestion.embed_batch_size"
	keySummaryMaxChars = "ingestion.summary_max_chars"
	keyRetryAttempts   = "retry.max_attempts"
	keyRetryBaseDelay  = "retry.base_delay_ms"
	keyRetryMaxDelay   = "retry.max_delay_ms"
	keyRAGTopK         = "rag.top_k"
	keyRAGTemperature  = "rag.temperature"
	keyRAGMaxTokens    = "rag.max_tokens"
	keyRAGTimeout      = "rag.timeout_seconds"
	keyStoreDataDir    = "store.data_dir"
	keyStoreMaxChars   = "store.max_chunk_chars"
	keyStoreMaxChunks  = "store.max_chunks_per_document"
	keyRateLimitRPS    = "ratelimit.requests_per_second"
	keyRateLimitBurst  = "ratelimit.burst"
)

// SettingsService reads typed settings from a ConfigStore.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// API keys missing from the config are read from the environment.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, d.Embedding.Provider)
	llmProvider := s.getProvider(keyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[embedProvider]),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.apiKey(keyEmbedAPIKey, embedProvider),
			Dimensions: s.configStore.GetInt(keyEmbedDims),
		},
		LLM: domain.LLMSettings{
			Provider: llmProvider,
			Model:    s.getString(keyLLMModel, domain.DefaultLLMModels()[llmProvider]),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.apiKey(keyLLMAPIKey, llmProvider),
		},
		Chunker: domain.ChunkerSettings{
			Window:    s.getInt(keyChunkWindow, d.Chunker.Window),
			Overlap:   s.getInt(keyChunkOverlap, d.Chunker.Overlap),
			Tolerance: s.getInt(keyChunkTolerance, d.Chunker.Tolerance),
		},
		Ingestion: domain.IngestionSettings{
			EmbedBatchSize:  s.getInt(keyEmbedBatchSize, d.Ingestion.EmbedBatchSize),
			SummaryMaxChars: s.getInt(keySummaryMaxChars, d.Ingestion.SummaryMaxChars),
		},
		Retry: domain.RetrySettings{
			MaxAttempts: s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			BaseDelay:   s.getMillis(keyRetryBaseDelay, d.Retry.BaseDelay),
			MaxDelay:    s.getMillis(keyRetryMaxDelay, d.Retry.MaxDelay),
		},
		RAG: domain.RAGSettings{
			TopK:        s.getInt(keyRAGTopK, d.RAG.TopK),
			Temperature: s.getFloat(keyRAGTemperature, d.RAG.Temperature),
			MaxTokens:   s.getInt(keyRAGMaxTokens, d.RAG.MaxTokens),
			Timeout:     s.getSeconds(keyRAGTimeout, d.RAG.Timeout),
		},
		Store: domain.StoreSettings{
			DataDir:              s.configStore.GetString(keyStoreDataDir),
			MaxChunkChars:        s.getInt(keyStoreMaxChars, d.Store.MaxChunkChars),
			MaxChunksPerDocument: s.getInt(keyStoreMaxChunks, d.Store.MaxChunksPerDocument),
		},
		RateLimit: domain.RateLimitSettings{
			RequestsPerSecond: s.getFloat(keyRateLimitRPS, d.RateLimit.RequestsPerSecond),
			Burst:             s.getInt(keyRateLimitBurst, d.RateLimit.Burst),
		},
	}

	if settings.Chunker.Overlap >= settings.Chunker.Window {
		return nil, fmt.Errorf("%w: chunker.overlap (%d) must be smaller than chunker.window (%d)",
			domain.ErrValidation, settings.Chunker.Overlap, settings.Chunker.Window)
	}
	// A nudged chunk may run past the window by up to the tolerance.
	if limit := settings.Chunker.Window + settings.Chunker.Tolerance; limit > settings.Store.MaxChunkChars {
		return nil, fmt.Errorf("%w: chunker.window + chunker.tolerance (%d) exceeds store.max_chunk_chars (%d)",
			domain.ErrValidation, limit, settings.Store.MaxChunkChars)
	}

	return settings, nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrValidation, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(provider.APIKeyEnv()) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrValidation, provider)
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.getString(keyEmbedBaseURL, "http://localhost:11434")
	}

	return s.setAll(map[string]any{
		keyEmbedProvider: provider.String(),
		keyEmbedModel:    model,
		keyEmbedBaseURL:  baseURL,
		keyEmbedAPIKey:   apiKey,
	})
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrValidation, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(provider.APIKeyEnv()) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrValidation, provider)
	}

	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}

	baseURL := ""
	if provider.IsLocal() {
		baseURL = s.getString(keyLLMBaseURL, "http://localhost:11434")
	}

	return s.setAll(map[string]any{
		keyLLMProvider: provider.String(),
		keyLLMModel:    model,
		keyLLMBaseURL:  baseURL,
		keyLLMAPIKey:   apiKey,
	})
}

// Set stores a single key.
func (s *SettingsService) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty settings key", domain.ErrValidation)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

func (s *SettingsService) setAll(values map[string]any) error {
	for key, value := range values {
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	ms := s.configStore.GetInt(key)
	if ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *SettingsService) getSeconds(key string, defaultVal time.Duration) time.Duration {
	secs := s.configStore.GetInt(key)
	if secs <= 0 {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// apiKey prefers the config file and falls back to the provider's env var.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	if env := provider.APIKeyEnv(); env != "" {
		return s.getenv(env)
	}
	return ""
}
