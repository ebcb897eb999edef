package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or completions.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// APIKeyEnv names the environment variable consulted when no key is configured.
func (p AIProvider) APIKeyEnv() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string

	// Dimensions overrides the known dimension of Model when positive.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ResolvedDimensions returns the vector size for the configured model.
func (e EmbeddingSettings) ResolvedDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// LLMSettings holds completion provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ChunkerSettings sizes the chunk windows, in characters.
type ChunkerSettings struct {
	Window    int
	Overlap   int
	Tolerance int
}

// IngestionSettings tune the ingestion pipeline.
type IngestionSettings struct {
	// EmbedBatchSize is the number of chunk texts sent per embedding call.
	EmbedBatchSize int

	// SummaryMaxChars caps the text handed to the summarizer.
	SummaryMaxChars int
}

// RetrySettings bound the exponential backoff used around provider calls.
type RetrySettings struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. It doubles each time.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration
}

// RAGSettings control answer generation.
type RAGSettings struct {
	TopK        int
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// StoreSettings locate and bound the chunk store.
type StoreSettings struct {
	// DataDir holds the SQLite database. Empty means ~/.grantkb/data.
	DataDir string

	// MaxChunkChars bounds the length of a single chunk text.
	MaxChunkChars int

	// MaxChunksPerDocument bounds how many chunks a document may own.
	MaxChunksPerDocument int
}

// RateLimitSettings throttle calls to cloud providers.
type RateLimitSettings struct {
	// RequestsPerSecond is the sustained rate. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the bucket size.
	Burst int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Chunker   ChunkerSettings
	Ingestion IngestionSettings
	Retry     RetrySettings
	RAG       RAGSettings
	Store     StoreSettings
	RateLimit RateLimitSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Providers default to a local Ollama instance.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
		},
		Chunker: ChunkerSettings{
			Window:    1000,
			Overlap:   150,
			Tolerance: 60,
		},
		Ingestion: IngestionSettings{
			EmbedBatchSize:  16,
			SummaryMaxChars: 12000,
		},
		Retry: RetrySettings{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
		},
		RAG: RAGSettings{
			TopK:        DefaultTopK,
			Temperature: 0.2,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Store: StoreSettings{
			MaxChunkChars:        8000,
			MaxChunksPerDocument: 20000,
		},
		RateLimit: RateLimitSettings{
			RequestsPerSecond: 5,
			Burst:             5,
		},
	}
}

// AllProviders returns every supported provider.
func AllProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
		AIProviderGemini: "gemini-2.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004":   768,
		"gemini-embedding-001": 3072,
	}
}
