// Package gemini provides an LLM service adapter using the Gemini API.
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

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel   = "gemini-2.5-flash"
	DefaultLLMTimeout = 120 * time.Second
)

const providerName = "gemini"

// LLMConfig holds configuration for the Gemini LLM service.
type LLMConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model is the LLM model to use (default: gemini-2.5-flash).
	Model string

	// Timeout is the transport timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides completions using Gemini.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(ctx context.Context, cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
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
	return &LLMService{client: client, model: cfg.Model}, nil
}

// Complete produces a completion for prompt.
func (s *LLMService) Complete(ctx context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens) //nolint:gosec // bounded by settings
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Candidates) == 0 {
		reason := "no candidates in response"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = fmt.Sprintf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", providererr.Malformed(providerName, "%s", reason)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return "", providererr.Malformed(providerName, "completion truncated at max tokens")
	}
	return resp.Text(), nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches the model's metadata, which checks the key and the model name.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.Get(ctx, s.model, nil); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", mapError(err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
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
