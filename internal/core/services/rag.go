package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// RAGOrchestrator answers questions from retrieved chunks.
type RAGOrchestrator struct {
	retriever *Retriever
	llm       driven.LLMService
	prompts   driven.PromptStore
	backoff   *Backoff
	settings  domain.RAGSettings
}

// NewRAGOrchestrator creates an orchestrator. Zero settings fall back to
// the defaults.
func NewRAGOrchestrator(
	retriever *Retriever,
	llm driven.LLMService,
	prompts driven.PromptStore,
	backoff *Backoff,
	settings domain.RAGSettings,
) *RAGOrchestrator {
	d := domain.DefaultAppSettings().RAG
	if settings.TopK <= 0 {
		settings.TopK = d.TopK
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = d.MaxTokens
	}
	if settings.Timeout <= 0 {
		settings.Timeout = d.Timeout
	}
	return &RAGOrchestrator{
		retriever: retriever,
		llm:       llm,
		prompts:   prompts,
		backoff:   backoff,
		settings:  settings,
	}
}

type ragSource struct {
	Index    int
	Document string
	Page     int
	Text     string
}

type ragPromptData struct {
	Question string
	Language string
	Sources  []ragSource
}

// Answer retrieves context for query and asks the completion provider for
// a cited answer. When nothing is retrieved the provider is still asked,
// with the no-context prompt, and the result has no sources.
func (o *RAGOrchestrator) Answer(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error) {
	logger.Section("RAG Query")
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrValidation)
	}

	k := opts.TopK
	if k <= 0 {
		k = o.settings.TopK
	}

	chunks, err := o.retriever.Retrieve(ctx, query, k, opts.Filter())
	if err != nil {
		return nil, err
	}
	logger.Debug("Retrieved %d chunks (k=%d)", len(chunks), k)

	data := ragPromptData{Question: query, Language: LanguageName(opts.Language)}
	name := driven.PromptRAGAnswer
	if len(chunks) == 0 {
		name = driven.PromptRAGNoContext
	}
	for i, c := range chunks {
		src := ragSource{Index: i + 1, Document: c.DocumentName, Text: c.Chunk.Text}
		if c.Chunk.PageNumber != nil {
			src.Page = *c.Chunk.PageNumber
		}
		data.Sources = append(data.Sources, src)
	}

	prompt, err := renderPrompt(o.prompts, name, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLM, err)
	}

	answer, err := complete(ctx, o.llm, o.backoff, prompt, driven.CompletionOptions{
		Temperature: o.settings.Temperature,
		MaxTokens:   o.settings.MaxTokens,
		Timeout:     o.settings.Timeout,
	})
	if err != nil {
		logger.Warn("Answer generation failed: %v", err)
		return nil, err
	}

	return &domain.QueryResult{
		Answer:        answer,
		Sources:       citations(chunks),
		Model:         o.llm.ModelName(),
		ContextChunks: len(chunks),
	}, nil
}

// citations keeps the first chunk of each (document, page) pair, in rank
// order.
func citations(chunks []domain.ScoredChunk) []domain.SourceCitation {
	type key struct {
		doc     string
		page    int
		hasPage bool
	}
	seen := make(map[key]bool, len(chunks))
	out := make([]domain.SourceCitation, 0, len(chunks))
	for _, c := range chunks {
		k := key{doc: c.DocumentName}
		if c.Chunk.PageNumber != nil {
			k.page, k.hasPage = *c.Chunk.PageNumber, true
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, domain.SourceCitation{
			DocumentName: c.DocumentName,
			PageNumber:   c.Chunk.PageNumber,
			ChunkID:      c.Chunk.ID,
			Score:        c.Score,
		})
	}
	return out
}

var languageNames = map[string]string{
	"bg": "Bulgarian", "cs": "Czech", "da": "Danish", "de": "German",
	"el": "Greek", "en": "English", "es": "Spanish", "et": "Estonian",
	"fi": "Finnish", "fr": "French", "ga": "Irish", "hr": "Croatian",
	"hu": "Hungarian", "it": "Italian", "lt": "Lithuanian", "lv": "Latvian",
	"mt": "Maltese", "nl": "Dutch", "pl": "Polish", "pt": "Portuguese",
	"ro": "Romanian", "sk": "Slovak", "sl": "Slovenian", "sv": "Swedish",
	"tr": "Turkish", "uk": "Ukrainian", "no": "Norwegian", "is": "Icelandic",
}

// LanguageName returns the English name of an ISO 639-1 code, or the code
// itself when unknown.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
