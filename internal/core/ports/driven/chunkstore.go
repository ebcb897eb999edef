package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// ChunkStore persists documents and the chunks they own.
// It is a pure data layer and enforces only structural invariants:
// chunk counts, embedding dimension, status monotonicity and cascade delete.
type ChunkStore interface {
	// Dimension returns the store-wide embedding dimension.
	Dimension() int

	// CreateDocument inserts a document in status uploading.
	// Returns domain.ErrValidation if the name is blank or the type unknown.
	CreateDocument(ctx context.Context, spec domain.DocumentSpec) (*domain.Document, error)

	// AppendChunks atomically appends chunks after the document's existing
	// ones and increments TotalChunks. Nothing is written on failure.
	// Returns domain.ErrStorage for a missing document, a wrong embedding
	// dimension or an exceeded limit.
	AppendChunks(ctx context.Context, documentID string, chunks []domain.ChunkInput) error

	// UpdateStatus moves a document through the ingestion state machine.
	// errorMessage is kept only for domain.StatusError.
	// Returns domain.ErrStorage for a backward transition.
	UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errorMessage string) error

	// SetSummary attaches a summary to a document.
	SetSummary(ctx context.Context, documentID string, summary domain.Summary) error

	// SetTotalPages records the page count reported by the extractor.
	SetTotalPages(ctx context.Context, documentID string, pages int) error

	// GetDocument returns a document or domain.ErrNotFound.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents ordered by upload time.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// GetChunks returns a document's chunks ordered by sequence index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk returns a single chunk or domain.ErrNotFound.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// AllChunks yields every chunk in the store. Each call starts a fresh
	// pass over the current contents.
	AllChunks(ctx context.Context) iter.Seq2[domain.Chunk, error]

	// DeleteChunks removes all chunks of a document and resets TotalChunks.
	// It returns how many chunks were removed.
	DeleteChunks(ctx context.Context, documentID string) (int, error)

	// DeleteDocument removes a document and its chunks in one step.
	// Returns false, without error, if the document did not exist.
	DeleteDocument(ctx context.Context, id string) (bool, error)

	// Clear removes all documents and chunks.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}
