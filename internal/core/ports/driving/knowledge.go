package driving

import (
	"context"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// UploadRequest describes a file handed to the knowledge base.
type UploadRequest struct {
	// Name is the display name, usually the original filename.
	Name string

	// MIMEType selects the text extractor.
	MIMEType string

	// Type classifies the document.
	Type domain.DocumentType

	// Language is the ISO 639-1 code of the document, if known.
	Language string

	// Data holds the raw file bytes.
	Data []byte
}

// ProgressFunc receives ingestion progress events in order.
type ProgressFunc func(domain.ProgressEvent)

// KnowledgeService is the public surface of the knowledge base.
type KnowledgeService interface {
	// UploadDocument ingests a file and returns once the document reaches
	// a terminal state. onProgress may be nil.
	UploadDocument(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*domain.Document, error)

	// RetryDocument re-ingests a document in status error under the same id.
	RetryDocument(ctx context.Context, id string, req UploadRequest, onProgress ProgressFunc) (*domain.Document, error)

	// ListDocuments returns document metadata.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// GetDocument returns a document or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks returns a document's chunks in order.
	GetChunks(ctx context.Context, id string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks. Returns false if
	// the document did not exist.
	DeleteDocument(ctx context.Context, id string) (bool, error)

	// Clear removes every document.
	Clear(ctx context.Context) error

	// QueryWithRAG answers a question from the stored documents.
	QueryWithRAG(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error)
}
