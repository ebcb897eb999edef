package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// Summaries are short; a low temperature keeps the YAML well formed.
const (
	summaryTemperature = 0.1
	summaryMaxTokens   = 600
)

// Summarizer asks the completion provider for a structured synopsis of a
// document. The result is display metadata only.
type Summarizer struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	backoff  *Backoff
	maxChars int
	timeout  time.Duration
	now      func() time.Time
}

// NewSummarizer creates a summarizer. maxChars caps the text placed in the
// prompt; timeout bounds each completion attempt.
func NewSummarizer(
	llm driven.LLMService, prompts driven.PromptStore, backoff *Backoff, maxChars int, timeout time.Duration,
) *Summarizer {
	if maxChars <= 0 {
		maxChars = domain.DefaultAppSettings().Ingestion.SummaryMaxChars
	}
	return &Summarizer{
		llm:      llm,
		prompts:  prompts,
		backoff:  backoff,
		maxChars: maxChars,
		timeout:  timeout,
		now:      time.Now,
	}
}

type summaryPromptData struct {
	Name     string
	Type     string
	Language string
	Text     string
}

// summaryYAML is the shape requested by the summarise prompt. JSON output
// parses as well since it is valid YAML.
type summaryYAML struct {
	Synopsis  string   `yaml:"synopsis"`
	KeyPoints []string `yaml:"key_points"`
	Topics    []string `yaml:"topics"`
	Relevance string   `yaml:"relevance"`
	Language  string   `yaml:"language"`
}

// Summarize returns a synopsis of text. Errors wrap domain.ErrLLM.
func (s *Summarizer) Summarize(
	ctx context.Context, text, name string, docType domain.DocumentType, language string,
) (*domain.Summary, error) {
	prompt, err := renderPrompt(s.prompts, driven.PromptSummarise, summaryPromptData{
		Name:     name,
		Type:     docType.Description(),
		Language: language,
		Text:     truncateRunes(text, s.maxChars),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLM, err)
	}

	out, err := complete(ctx, s.llm, s.backoff, prompt, driven.CompletionOptions{
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
		Timeout:     s.timeout,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseSummary(out)
	if err != nil {
		logger.Debug("Unparseable summary for %s: %q", name, out)
		return nil, fmt.Errorf("%w: %w", domain.ErrLLM, err)
	}

	summary := &domain.Summary{
		Synopsis:    parsed.Synopsis,
		KeyPoints:   compact(parsed.KeyPoints),
		Topics:      compact(parsed.Topics),
		Relevance:   strings.TrimSpace(parsed.Relevance),
		Language:    strings.ToLower(strings.TrimSpace(parsed.Language)),
		Model:       s.llm.ModelName(),
		GeneratedAt: s.now().UTC(),
	}
	if summary.Language == "" {
		summary.Language = language
	}
	return summary, nil
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\n?```\\s*$")

// parseSummary reads the YAML or JSON reply, with or without a code fence.
func parseSummary(out string) (*summaryYAML, error) {
	out = strings.TrimSpace(out)
	if m := codeFence.FindStringSubmatch(out); m != nil {
		out = m[1]
	}

	var parsed summaryYAML
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		return nil, fmt.Errorf("%w: summary is not YAML: %w", domain.ErrMalformedResponse, err)
	}
	parsed.Synopsis = strings.TrimSpace(parsed.Synopsis)
	if parsed.Synopsis == "" {
		return nil, fmt.Errorf("%w: summary has no synopsis", domain.ErrMalformedResponse)
	}
	return &parsed, nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// compact trims entries and drops empty ones.
func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
