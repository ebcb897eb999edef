package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// Progress percentages reported at the start of each stage. Embedding
// advances from embedPercent to appendPercent as batches complete.
const (
	uploadPercent  = 0
	extractPercent = 10
	chunkPercent   = 25
	embedPercent   = 40
	appendPercent  = 80
	analyzePercent = 85
	readyPercent   = 100
)

// IngestRequest carries one uploaded file into the pipeline.
type IngestRequest struct {
	Name     string
	MIMEType string
	Type     domain.DocumentType
	Language string
	Data     []byte
}

// IngestionPipeline runs a document through extraction, chunking,
// embedding, storage and summarisation. Different documents ingest
// concurrently; runs for the same document are serialised.
type IngestionPipeline struct {
	store      driven.ChunkStore
	extractors driven.ExtractorRegistry
	chunker    driven.TextChunker
	embedder   driven.EmbeddingService
	summarizer *Summarizer
	backoff    *Backoff
	batchSize  int
	locks      *keyedMutex
}

// NewIngestionPipeline creates a pipeline. summarizer may be nil, in which
// case documents skip straight from analyzing to ready.
func NewIngestionPipeline(
	store driven.ChunkStore,
	extractors driven.ExtractorRegistry,
	chunker driven.TextChunker,
	embedder driven.EmbeddingService,
	summarizer *Summarizer,
	backoff *Backoff,
	batchSize int,
) *IngestionPipeline {
	if batchSize <= 0 {
		batchSize = domain.DefaultAppSettings().Ingestion.EmbedBatchSize
	}
	return &IngestionPipeline{
		store:      store,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		summarizer: summarizer,
		backoff:    backoff,
		batchSize:  batchSize,
		locks:      newKeyedMutex(),
	}
}

// Ingest creates a document and runs it to a terminal state. Progress
// events are sent on progress, which may be nil; the channel is not closed.
//
// On failure after the document was created, the stored document is
// returned alongside the error, in status error unless it was deleted.
func (p *IngestionPipeline) Ingest(
	ctx context.Context, req IngestRequest, progress chan<- domain.ProgressEvent,
) (*domain.Document, error) {
	doc, err := p.store.CreateDocument(ctx, domain.DocumentSpec{
		Name:      req.Name,
		Type:      req.Type,
		Language:  req.Language,
		MIMEType:  req.MIMEType,
		SizeBytes: int64(len(req.Data)),
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	logger.Info("Ingesting %s as %s (%s)", doc.Name, doc.ID, doc.Type)

	unlock := p.locks.Lock(doc.ID)
	defer unlock()
	return p.run(ctx, doc.ID, req, progress)
}

// Reingest retries a document in status error under the same id. Any
// chunks left from the failed run are removed first.
func (p *IngestionPipeline) Reingest(
	ctx context.Context, documentID string, req IngestRequest, progress chan<- domain.ProgressEvent,
) (*domain.Document, error) {
	unlock := p.locks.Lock(documentID)
	defer unlock()

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.StatusError {
		return nil, fmt.Errorf("%w: document %s is %s; only failed documents can be retried",
			domain.ErrValidation, documentID, doc.Status)
	}

	if _, err := p.store.DeleteChunks(ctx, documentID); err != nil {
		return nil, fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := p.store.UpdateStatus(ctx, documentID, domain.StatusUploading, ""); err != nil {
		return nil, fmt.Errorf("restart ingestion: %w", err)
	}
	logger.Info("Retrying %s (%s)", doc.Name, documentID)

	if req.Name == "" {
		req.Name = doc.Name
	}
	if req.MIMEType == "" {
		req.MIMEType = doc.MIMEType
	}
	if req.Type == "" {
		req.Type = doc.Type
	}
	if req.Language == "" {
		req.Language = doc.Language
	}
	return p.run(ctx, documentID, req, progress)
}

// ingestRun tracks one pass through the state machine.
type ingestRun struct {
	p        *IngestionPipeline
	id       string
	progress chan<- domain.ProgressEvent
	percent  int
	stage    domain.DocumentStatus
}

func (p *IngestionPipeline) run(
	ctx context.Context, id string, req IngestRequest, progress chan<- domain.ProgressEvent,
) (*domain.Document, error) {
	r := &ingestRun{p: p, id: id, progress: progress, stage: domain.StatusUploading}
	r.emit(ctx, domain.StatusUploading, uploadPercent, "")

	if err := r.execute(ctx, req); err != nil {
		return r.fail(ctx, err)
	}

	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("Ingested %s: %d chunks", doc.Name, doc.TotalChunks)
	return doc, nil
}

func (r *ingestRun) execute(ctx context.Context, req IngestRequest) error {
	p := r.p

	// extracting
	if err := r.advance(ctx, domain.StatusExtracting, extractPercent); err != nil {
		return err
	}
	extracted, err := r.extract(ctx, req)
	if err != nil {
		return err
	}
	if extracted.PageCount > 0 {
		if err := p.store.SetTotalPages(ctx, r.id, extracted.PageCount); err != nil {
			return deletedOr(err)
		}
	}

	// chunking
	if err := r.advance(ctx, domain.StatusChunking, chunkPercent); err != nil {
		return err
	}
	chunks, err := p.chunker.Chunk(extracted.Text, extracted.PageStarts)
	if err != nil {
		return fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: chunking produced no chunks", domain.ErrValidation)
	}
	logger.Debug("%s: %d chunks", r.id, len(chunks))

	// embedding
	if err := r.advance(ctx, domain.StatusEmbedding, embedPercent); err != nil {
		return err
	}
	if err := r.embed(ctx, chunks); err != nil {
		return err
	}
	if err := r.ensureActive(ctx); err != nil {
		return err
	}
	if err := p.store.AppendChunks(ctx, r.id, chunks); err != nil {
		return deletedOr(fmt.Errorf("store chunks: %w", err))
	}
	r.emit(ctx, domain.StatusEmbedding, appendPercent, "")

	// analyzing
	if err := r.advance(ctx, domain.StatusAnalyzing, analyzePercent); err != nil {
		return err
	}
	r.summarise(ctx, req, extracted.Text)

	// ready
	if err := r.advance(ctx, domain.StatusReady, readyPercent); err != nil {
		return err
	}
	return nil
}

func (r *ingestRun) extract(ctx context.Context, req IngestRequest) (*domain.ExtractedText, error) {
	if r.p.extractors == nil {
		return nil, fmt.Errorf("%w: no extractors registered", domain.ErrUnsupportedFormat)
	}
	extractor, err := r.p.extractors.Get(req.MIMEType)
	if err != nil {
		return nil, err
	}
	extracted, err := extractor.Extract(ctx, req.Data, req.MIMEType)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	if extracted == nil || strings.TrimSpace(extracted.Text) == "" {
		return nil, fmt.Errorf("%w: document contains no text", domain.ErrExtraction)
	}
	return extracted, nil
}

// embed fills in the embeddings batch by batch.
func (r *ingestRun) embed(ctx context.Context, chunks []domain.ChunkInput) error {
	p := r.p
	if p.embedder == nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, domain.ErrEmbeddingUnavailable)
	}

	dim := p.store.Dimension()
	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		var vecs [][]float32
		err := p.backoff.Do(ctx, "embedding batch", func(ctx context.Context) error {
			var err error
			vecs, err = p.embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: chunks %d-%d: %w", domain.ErrEmbedding, start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("%w: %w: got %d vectors for %d texts",
				domain.ErrEmbedding, domain.ErrMalformedResponse, len(vecs), len(texts))
		}
		for i, v := range vecs {
			if len(v) != dim {
				return fmt.Errorf("%w: %w: vector has dimension %d, store expects %d",
					domain.ErrEmbedding, domain.ErrMalformedResponse, len(v), dim)
			}
			chunks[start+i].Embedding = v
		}

		percent := embedPercent + (appendPercent-embedPercent)*end/len(chunks)
		if end < len(chunks) {
			r.emit(ctx, domain.StatusEmbedding, min(percent, appendPercent-1), "")
		}
	}
	return nil
}

// summarise attaches a summary. Failures only produce a warning event.
func (r *ingestRun) summarise(ctx context.Context, req IngestRequest, text string) {
	if r.p.summarizer == nil {
		return
	}
	summary, err := r.p.summarizer.Summarize(ctx, text, req.Name, req.Type, req.Language)
	if err == nil {
		err = r.p.store.SetSummary(ctx, r.id, *summary)
	}
	if err != nil {
		logger.Warn("Summary for %s skipped: %v", r.id, err)
		r.emit(ctx, domain.StatusAnalyzing, analyzePercent, fmt.Sprintf("summary unavailable: %v", err))
	}
}

// advance checks the document still exists, moves it to status and
// reports the stage.
func (r *ingestRun) advance(ctx context.Context, status domain.DocumentStatus, percent int) error {
	if err := r.ensureActive(ctx); err != nil {
		return err
	}
	if err := r.p.store.UpdateStatus(ctx, r.id, status, ""); err != nil {
		return deletedOr(err)
	}
	r.stage = status
	r.emit(ctx, status, percent, "")
	return nil
}

// ensureActive stops the run when the context is done or the document
// has been deleted.
func (r *ingestRun) ensureActive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.p.store.GetDocument(ctx, r.id); err != nil {
		return deletedOr(err)
	}
	return nil
}

// fail rolls back partial chunks and records the error. A deleted
// document is left alone.
func (r *ingestRun) fail(ctx context.Context, cause error) (*domain.Document, error) {
	if errors.Is(cause, domain.ErrDocumentDeleted) {
		logger.Info("Ingestion of %s stopped: document deleted", r.id)
		return nil, cause
	}
	logger.Error("Ingestion of %s failed while %s: %v", r.id, r.stage, cause)

	// Cleanup must run even when the caller's context was cancelled.
	cleanupCtx := context.WithoutCancel(ctx)
	if n, err := r.p.store.DeleteChunks(cleanupCtx, r.id); err != nil {
		logger.Warn("Rollback of %s failed: %v", r.id, err)
	} else if n > 0 {
		logger.Debug("Rolled back %d chunks of %s", n, r.id)
	}
	if err := r.p.store.UpdateStatus(cleanupCtx, r.id, domain.StatusError, cause.Error()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrDocumentDeleted, cause)
		}
		logger.Warn("Recording failure of %s: %v", r.id, err)
	}

	r.emitFinal(ctx, domain.ProgressEvent{
		DocumentID: r.id,
		Stage:      domain.StatusError,
		Percent:    r.percent,
		Label:      domain.StatusError.Label(),
		Warning:    cause.Error(),
	})

	doc, err := r.p.store.GetDocument(cleanupCtx, r.id)
	if err != nil {
		return nil, cause
	}
	return doc, cause
}

func (r *ingestRun) emit(ctx context.Context, stage domain.DocumentStatus, percent int, warning string) {
	r.percent = max(r.percent, percent)
	r.emitFinal(ctx, domain.ProgressEvent{
		DocumentID: r.id,
		Stage:      stage,
		Percent:    r.percent,
		Label:      stage.Label(),
		Warning:    warning,
	})
}

func (r *ingestRun) emitFinal(ctx context.Context, ev domain.ProgressEvent) {
	if r.progress == nil {
		return
	}
	select {
	case r.progress <- ev:
	case <-ctx.Done():
	}
}

// deletedOr maps a missing document onto ErrDocumentDeleted.
func deletedOr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrDocumentDeleted, err)
	}
	return err
}
