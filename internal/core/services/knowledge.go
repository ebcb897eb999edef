package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// Ensure KnowledgeService implements the interface.
var _ driving.KnowledgeService = (*KnowledgeService)(nil)

// KnowledgeService is the entry point used by the CLI, MCP and HTTP
// adapters. It forwards to the pipeline, the store and the RAG
// orchestrator.
type KnowledgeService struct {
	store    driven.ChunkStore
	pipeline *IngestionPipeline
	rag      *RAGOrchestrator
}

// NewKnowledgeService creates a knowledge service.
func NewKnowledgeService(store driven.ChunkStore, pipeline *IngestionPipeline, rag *RAGOrchestrator) *KnowledgeService {
	return &KnowledgeService{store: store, pipeline: pipeline, rag: rag}
}

// UploadDocument ingests a file. It returns once the document is ready or
// has failed; onProgress is called from another goroutine, in order, and
// never after UploadDocument returns.
func (s *KnowledgeService) UploadDocument(
	ctx context.Context, req driving.UploadRequest, onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	return withProgress(onProgress, func(progress chan<- domain.ProgressEvent) (*domain.Document, error) {
		return s.pipeline.Ingest(ctx, ingestRequest(req), progress)
	})
}

// RetryDocument re-ingests a failed document under the same id.
func (s *KnowledgeService) RetryDocument(
	ctx context.Context, id string, req driving.UploadRequest, onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	return withProgress(onProgress, func(progress chan<- domain.ProgressEvent) (*domain.Document, error) {
		return s.pipeline.Reingest(ctx, id, ingestRequest(req), progress)
	})
}

// ListDocuments returns document metadata ordered by upload time.
func (s *KnowledgeService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx)
}

// GetDocument returns a document or domain.ErrNotFound.
func (s *KnowledgeService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// GetChunks returns the chunks of an existing document.
func (s *KnowledgeService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetChunks(ctx, id)
}

// DeleteDocument removes a document and its chunks. An ingestion still
// running for it stops at its next stage.
func (s *KnowledgeService) DeleteDocument(ctx context.Context, id string) (bool, error) {
	return s.store.DeleteDocument(ctx, id)
}

// Clear removes every document.
func (s *KnowledgeService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// QueryWithRAG answers a question from the stored documents.
func (s *KnowledgeService) QueryWithRAG(
	ctx context.Context, query string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	if s.rag == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLM, domain.ErrLLMUnavailable)
	}
	return s.rag.Answer(ctx, query, opts)
}

func ingestRequest(req driving.UploadRequest) IngestRequest {
	return IngestRequest{
		Name:     req.Name,
		MIMEType: req.MIMEType,
		Type:     req.Type,
		Language: req.Language,
		Data:     req.Data,
	}
}

// withProgress runs fn with a progress channel drained into onProgress.
func withProgress(
	onProgress driving.ProgressFunc, fn func(chan<- domain.ProgressEvent) (*domain.Document, error),
) (*domain.Document, error) {
	if onProgress == nil {
		return fn(nil)
	}

	ch := make(chan domain.ProgressEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			onProgress(ev)
		}
	}()

	doc, err := fn(ch)
	close(ch)
	<-done
	return doc, err
}
