package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

func newTestKnowledge(t *testing.T) (*KnowledgeService, *pipelineFixture) {
	t.Helper()
	f := newPipelineFixture(t, nil)
	backoff := testBackoff(f.waits)
	rag := NewRAGOrchestrator(NewRetriever(f.store, f.embedder, backoff), f.llm, builtinPrompts{}, backoff, domain.RAGSettings{})
	return NewKnowledgeService(f.store, f.pipeline, rag), f
}

func uploadRequest(name string) driving.UploadRequest {
	return driving.UploadRequest{
		Name:     name,
		MIMEType: textPlain,
		Type:     domain.DocumentTypeReference,
		Data:     []byte(sampleText(1000)),
	}
}

func TestKnowledge_UploadReportsProgressInOrder(t *testing.T) {
	svc, _ := newTestKnowledge(t)

	var events []domain.ProgressEvent
	doc, err := svc.UploadDocument(context.Background(), uploadRequest("refs.txt"), func(ev domain.ProgressEvent) {
		events = append(events, ev)
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, doc.Status)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.StatusUploading, events[0].Stage)
	assert.Equal(t, domain.StatusReady, events[len(events)-1].Stage)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
	}
}

func TestKnowledge_UploadWithoutCallback(t *testing.T) {
	svc, _ := newTestKnowledge(t)

	doc, err := svc.UploadDocument(context.Background(), uploadRequest("refs.txt"), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, doc.TotalChunks)
}

func TestKnowledge_DocumentsAndChunks(t *testing.T) {
	svc, _ := newTestKnowledge(t)
	ctx := context.Background()
	first, err := svc.UploadDocument(ctx, uploadRequest("one.txt"), nil)
	require.NoError(t, err)
	second, err := svc.UploadDocument(ctx, uploadRequest("two.txt"), nil)
	require.NoError(t, err)

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first.ID, docs[0].ID)

	got, err := svc.GetDocument(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "two.txt", got.Name)

	chunks, err := svc.GetChunks(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	_, err = svc.GetChunks(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledge_DeleteAndClear(t *testing.T) {
	svc, f := newTestKnowledge(t)
	ctx := context.Background()
	doc, err := svc.UploadDocument(ctx, uploadRequest("one.txt"), nil)
	require.NoError(t, err)
	_, err = svc.UploadDocument(ctx, uploadRequest("two.txt"), nil)
	require.NoError(t, err)

	deleted, err := svc.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, svc.Clear(ctx))
	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assertNoChunks(t, f.store)
}

func TestKnowledge_RetryDocument(t *testing.T) {
	svc, f := newTestKnowledge(t)
	f.embedder.failFirst, f.embedder.failErr = 3, errRateLimited
	ctx := context.Background()

	failed, err := svc.UploadDocument(ctx, uploadRequest("refs.txt"), nil)
	require.Error(t, err)
	require.Equal(t, domain.StatusError, failed.Status)

	var last domain.ProgressEvent
	doc, err := svc.RetryDocument(ctx, failed.ID, driving.UploadRequest{Data: []byte(sampleText(1000))},
		func(ev domain.ProgressEvent) { last = ev })

	require.NoError(t, err)
	assert.Equal(t, failed.ID, doc.ID)
	assert.Equal(t, domain.StatusReady, doc.Status)
	assert.Equal(t, domain.StatusReady, last.Stage)
}

func TestKnowledge_QueryWithRAG(t *testing.T) {
	svc, f := newTestKnowledge(t)
	ctx := context.Background()
	_, err := svc.UploadDocument(ctx, uploadRequest("refs.txt"), nil)
	require.NoError(t, err)
	f.llm.answer = "Two year projects [Source 1]."

	result, err := svc.QueryWithRAG(ctx, "How long do projects run?", domain.QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Two year projects [Source 1].", result.Answer)
	assert.Equal(t, 3, result.ContextChunks)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "refs.txt", result.Sources[0].DocumentName)
}

func TestKnowledge_QueryWithoutLLM(t *testing.T) {
	f := newPipelineFixture(t, nil)
	svc := NewKnowledgeService(f.store, f.pipeline, nil)

	_, err := svc.QueryWithRAG(context.Background(), "anything", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrLLM)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
