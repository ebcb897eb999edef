// Package openai provides an LLM service adapter using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/providererr"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

const providerName = "openai"

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the transport timeout (default: 120s).
	Timeout time.Duration
}

// LLMService provides completions using the OpenAI chat API.
type LLMService struct {
	client *openai.Client
	model  string
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &LLMService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Complete sends prompt as a single user message.
func (s *LLMService) Complete(ctx context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: temperature(opts.Temperature),
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", providererr.Malformed(providerName, "no choices in response")
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		return "", providererr.Malformed(providerName, "completion truncated at max tokens")
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature converts to the request field. The field is omitted when
// zero, so an explicit zero is sent as the smallest positive value.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists the available models. This validates the API key without
// running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", mapError(err))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

// mapError converts go-openai errors into provider errors.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return providererr.FromStatus(providerName, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return providererr.FromStatus(providerName, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return providererr.FromTransport(providerName, err)
}
