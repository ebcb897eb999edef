package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

func newTestRAG(store driven.ChunkStore, llm *fakeLLM, settings domain.RAGSettings) *RAGOrchestrator {
	backoff := testBackoff(&recordingWait{})
	embedder := &fakeEmbedder{vectors: map[string][]float32{"Who coordinates?": queryVec}}
	return NewRAGOrchestrator(NewRetriever(store, embedder, backoff), llm, builtinPrompts{}, backoff, settings)
}

func TestRAG_AnswerWithSources(t *testing.T) {
	store := newMemoryStore(t)
	seedDocument(t, store, "partners.pdf", domain.DocumentTypePartnerInfo, "", ranked(0), ranked(1))
	llm := &fakeLLM{answer: "  Youth Centre Graz coordinates [Source 1].  "}

	result, err := newTestRAG(store, llm, domain.RAGSettings{}).Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Youth Centre Graz coordinates [Source 1].", result.Answer)
	assert.Equal(t, "fake-llm", result.Model)
	assert.Equal(t, 2, result.ContextChunks)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "partners.pdf", result.Sources[0].DocumentName)
	assert.Equal(t, 1, *result.Sources[0].PageNumber)
	assert.Equal(t, 2, *result.Sources[1].PageNumber)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "[Source 1: partners.pdf, page 1]\npartners.pdf chunk 0")
	assert.Contains(t, prompt, "[Source 2: partners.pdf, page 2]\npartners.pdf chunk 1")
	assert.Contains(t, prompt, "Question: Who coordinates?")
	assert.NotContains(t, prompt, "Write the answer in")
}

func TestRAG_NoContext(t *testing.T) {
	llm := &fakeLLM{answer: "Nothing relevant is stored."}

	result, err := newTestRAG(newMemoryStore(t), llm, domain.RAGSettings{}).
		Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Nothing relevant is stored.", result.Answer)
	assert.Empty(t, result.Sources)
	assert.Zero(t, result.ContextChunks)
	assert.Contains(t, llm.lastPrompt(), "No context is available")
}

func TestRAG_GuideExcludedByDefault(t *testing.T) {
	store := newMemoryStore(t)
	seedDocument(t, store, "guide.pdf", domain.DocumentTypeProgrammeGuide, "", ranked(0))
	llm := &fakeLLM{answer: "ok"}
	rag := newTestRAG(store, llm, domain.RAGSettings{})

	result, err := rag.Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Sources)

	result, err = rag.Answer(context.Background(), "Who coordinates?", domain.QueryOptions{IncludeGuide: true})
	require.NoError(t, err)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "guide.pdf", result.Sources[0].DocumentName)
}

func TestRAG_LanguageInstruction(t *testing.T) {
	store := newMemoryStore(t)
	seedDocument(t, store, "partner", domain.DocumentTypePartnerInfo, "de", ranked(0))
	llm := &fakeLLM{answer: "Das Jugendzentrum."}

	result, err := newTestRAG(store, llm, domain.RAGSettings{}).
		Answer(context.Background(), "Who coordinates?", domain.QueryOptions{Language: "de"})

	require.NoError(t, err)
	assert.Len(t, result.Sources, 1)
	assert.Contains(t, llm.lastPrompt(), "Write the answer in German.")
}

func TestRAG_DefaultAndOverriddenTopK(t *testing.T) {
	store := newMemoryStore(t)
	vecs := make([][]float32, 10)
	for i := range vecs {
		vecs[i] = ranked(i)
	}
	seedDocument(t, store, "refs", domain.DocumentTypeReference, "", vecs...)
	llm := &fakeLLM{answer: "ok"}
	rag := newTestRAG(store, llm, domain.RAGSettings{})

	result, err := rag.Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTopK, result.ContextChunks)

	result, err = rag.Answer(context.Background(), "Who coordinates?", domain.QueryOptions{TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ContextChunks)
}

func TestRAG_PassesCompletionSettings(t *testing.T) {
	llm := &fakeLLM{answer: "ok"}
	settings := domain.RAGSettings{Temperature: 0.4, MaxTokens: 300, Timeout: 5 * time.Second}

	_, err := newTestRAG(newMemoryStore(t), llm, settings).Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	require.NoError(t, err)
	require.Len(t, llm.opts, 1)
	assert.Equal(t, driven.CompletionOptions{Temperature: 0.4, MaxTokens: 300, Timeout: 5 * time.Second}, llm.opts[0])
}

func TestRAG_BlankQuery(t *testing.T) {
	llm := &fakeLLM{answer: "ok"}

	_, err := newTestRAG(newMemoryStore(t), llm, domain.RAGSettings{}).Answer(context.Background(), " \n", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, llm.callCount())
}

func TestRAG_RetriesRateLimit(t *testing.T) {
	llm := &fakeLLM{answer: "ok", errs: []error{errRateLimited, errRateLimited}}

	result, err := newTestRAG(newMemoryStore(t), llm, domain.RAGSettings{}).
		Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Answer)
	assert.Equal(t, 3, llm.callCount())
}

func TestRAG_TimeoutIsRetriedThenReported(t *testing.T) {
	llm := &fakeLLM{block: true}
	settings := domain.RAGSettings{Timeout: 10 * time.Millisecond}

	_, err := newTestRAG(newMemoryStore(t), llm, settings).Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrLLM)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, 3, llm.callCount())
}

func TestRAG_EmptyCompletion(t *testing.T) {
	llm := &fakeLLM{answer: "   "}

	_, err := newTestRAG(newMemoryStore(t), llm, domain.RAGSettings{}).
		Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrLLM)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, 1, llm.callCount())
}

func TestRAG_TruncatedCompletion(t *testing.T) {
	truncated := domain.NewProviderError("fake", domain.ProviderErrorMalformed, 0, errors.New("completion truncated at max tokens"))
	llm := &fakeLLM{answer: "Youth Centre Graz coordinates", errs: []error{truncated}}

	result, err := newTestRAG(newMemoryStore(t), llm, domain.RAGSettings{}).
		Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrLLM)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, 1, llm.callCount())
}

func TestRAG_NoLLM(t *testing.T) {
	backoff := testBackoff(&recordingWait{})
	rag := NewRAGOrchestrator(NewRetriever(newMemoryStore(t), &fakeEmbedder{}, backoff), nil, builtinPrompts{}, backoff, domain.RAGSettings{})

	_, err := rag.Answer(context.Background(), "Who coordinates?", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestCitations_DeduplicatesPages(t *testing.T) {
	chunks := []domain.ScoredChunk{
		{DocumentName: "a", Score: 0.9, Chunk: domain.Chunk{ID: "1", PageNumber: domain.IntPtr(3)}},
		{DocumentName: "a", Score: 0.8, Chunk: domain.Chunk{ID: "2", PageNumber: domain.IntPtr(3)}},
		{DocumentName: "a", Score: 0.7, Chunk: domain.Chunk{ID: "3", PageNumber: domain.IntPtr(4)}},
		{DocumentName: "b", Score: 0.6, Chunk: domain.Chunk{ID: "4"}},
		{DocumentName: "b", Score: 0.5, Chunk: domain.Chunk{ID: "5"}},
	}

	got := citations(chunks)

	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ChunkID
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)
	assert.Nil(t, got[2].PageNumber)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "German", LanguageName("de"))
	assert.Equal(t, "French", LanguageName(" FR "))
	assert.Equal(t, "xx", LanguageName("xx"))
	assert.Empty(t, LanguageName(""))
}
