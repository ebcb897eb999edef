package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// Options configure a new in-memory store.
type Options struct {
	Dimension            int
	MaxChunkChars        int
	MaxChunksPerDocument int
}

// docRecord is a document plus the ids of the chunks it owns, in sequence order.
type docRecord struct {
	doc      domain.Document
	seq      uint64
	chunkIDs []string
}

// ChunkStore is an in-memory implementation of driven.ChunkStore.
// Chunks live in a map keyed by id; each document record indexes its
// chunk ids, so cascade delete never scans unrelated chunks.
type ChunkStore struct {
	mu      sync.RWMutex
	limits  storage.Limits
	docs    map[string]*docRecord
	chunks  map[string]domain.Chunk
	nextSeq uint64
	now     func() time.Time
}

// NewChunkStore creates an empty store with a fixed embedding dimension.
func NewChunkStore(opts Options) (*ChunkStore, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", domain.ErrStorage)
	}
	return &ChunkStore{
		limits: storage.Limits{
			Dimension:            opts.Dimension,
			MaxChunkChars:        opts.MaxChunkChars,
			MaxChunksPerDocument: opts.MaxChunksPerDocument,
		},
		docs:   make(map[string]*docRecord),
		chunks: make(map[string]domain.Chunk),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Dimension returns the store-wide embedding dimension.
func (s *ChunkStore) Dimension() int {
	return s.limits.Dimension
}

// CreateDocument inserts a document in status uploading.
func (s *ChunkStore) CreateDocument(_ context.Context, spec domain.DocumentSpec) (*domain.Document, error) {
	if err := storage.ValidateSpec(spec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &docRecord{
		doc: domain.Document{
			ID:         uuid.New().String(),
			Name:       spec.Name,
			Type:       spec.Type,
			Status:     domain.StatusUploading,
			Language:   spec.Language,
			MIMEType:   spec.MIMEType,
			SizeBytes:  spec.SizeBytes,
			UploadedAt: now,
			UpdatedAt:  now,
		},
		seq: s.nextSeq,
	}
	s.nextSeq++
	s.docs[rec.doc.ID] = rec

	return cloneDocument(&rec.doc), nil
}

// AppendChunks atomically appends chunks to a document.
func (s *ChunkStore) AppendChunks(_ context.Context, documentID string, chunks []domain.ChunkInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[documentID]
	if !ok {
		return storage.MissingDocument(documentID)
	}
	existing := len(rec.chunkIDs)
	if err := s.limits.ValidateChunks(existing, chunks); err != nil {
		return err
	}

	for i, in := range chunks {
		c := domain.Chunk{
			ID:            uuid.New().String(),
			DocumentID:    documentID,
			SequenceIndex: existing + i,
			Text:          in.Text,
			Embedding:     slices.Clone(in.Embedding),
		}
		if in.PageNumber != nil {
			c.PageNumber = domain.IntPtr(*in.PageNumber)
		}
		s.chunks[c.ID] = c
		rec.chunkIDs = append(rec.chunkIDs, c.ID)
	}
	rec.doc.TotalChunks = len(rec.chunkIDs)
	rec.doc.UpdatedAt = s.now()
	return nil
}

// UpdateStatus moves a document through the state machine.
func (s *ChunkStore) UpdateStatus(
	_ context.Context,
	documentID string,
	status domain.DocumentStatus,
	errorMessage string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[documentID]
	if !ok {
		return storage.MissingDocument(documentID)
	}
	if err := storage.CheckTransition(documentID, rec.doc.Status, status); err != nil {
		return err
	}

	rec.doc.Status = status
	rec.doc.ErrorMessage = ""
	if status == domain.StatusError {
		rec.doc.ErrorMessage = errorMessage
	}
	rec.doc.UpdatedAt = s.now()
	return nil
}

// SetSummary attaches a summary to a document.
func (s *ChunkStore) SetSummary(_ context.Context, documentID string, summary domain.Summary) error {
	return s.update(documentID, func(doc *domain.Document) {
		summary.KeyPoints = slices.Clone(summary.KeyPoints)
		summary.Topics = slices.Clone(summary.Topics)
		doc.Summary = &summary
	})
}

// SetTotalPages records the page count of a document.
func (s *ChunkStore) SetTotalPages(_ context.Context, documentID string, pages int) error {
	return s.update(documentID, func(doc *domain.Document) {
		doc.TotalPages = domain.IntPtr(pages)
	})
}

func (s *ChunkStore) update(documentID string, fn func(*domain.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[documentID]
	if !ok {
		return storage.MissingDocument(documentID)
	}
	fn(&rec.doc)
	rec.doc.UpdatedAt = s.now()
	return nil
}

// GetDocument retrieves a document by ID.
func (s *ChunkStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDocument(&rec.doc), nil
}

// ListDocuments returns all documents in creation order.
func (s *ChunkStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.docs))
	for _, rec := range s.sortedRecords() {
		docs = append(docs, *cloneDocument(&rec.doc))
	}
	return docs, nil
}

// GetChunks retrieves all chunks for a document in sequence order.
func (s *ChunkStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[documentID]
	if !ok {
		return nil, nil
	}
	chunks := make([]domain.Chunk, 0, len(rec.chunkIDs))
	for _, id := range rec.chunkIDs {
		chunks = append(chunks, s.chunks[id])
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *ChunkStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// AllChunks yields a snapshot of every chunk taken when iteration starts.
func (s *ChunkStore) AllChunks(ctx context.Context) iter.Seq2[domain.Chunk, error] {
	return func(yield func(domain.Chunk, error) bool) {
		s.mu.RLock()
		snapshot := make([]domain.Chunk, 0, len(s.chunks))
		for _, rec := range s.sortedRecords() {
			for _, id := range rec.chunkIDs {
				snapshot = append(snapshot, s.chunks[id])
			}
		}
		s.mu.RUnlock()

		for _, c := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(domain.Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// DeleteChunks removes every chunk of a document and resets its count.
func (s *ChunkStore) DeleteChunks(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[documentID]
	if !ok {
		return 0, storage.MissingDocument(documentID)
	}
	removed := len(rec.chunkIDs)
	for _, id := range rec.chunkIDs {
		delete(s.chunks, id)
	}
	rec.chunkIDs = nil
	rec.doc.TotalChunks = 0
	rec.doc.UpdatedAt = s.now()
	return removed, nil
}

// DeleteDocument removes a document and its chunks.
func (s *ChunkStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok {
		return false, nil
	}
	for _, cid := range rec.chunkIDs {
		delete(s.chunks, cid)
	}
	delete(s.docs, id)
	return true, nil
}

// Clear removes all documents and chunks.
func (s *ChunkStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs = make(map[string]*docRecord)
	s.chunks = make(map[string]domain.Chunk)
	return nil
}

// Close is a no-op.
func (s *ChunkStore) Close() error {
	return nil
}

// sortedRecords returns records in creation order. Callers hold the lock.
func (s *ChunkStore) sortedRecords() []*docRecord {
	recs := make([]*docRecord, 0, len(s.docs))
	for _, rec := range s.docs {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *docRecord) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return recs
}

func cloneDocument(doc *domain.Document) *domain.Document {
	out := *doc
	if doc.TotalPages != nil {
		out.TotalPages = domain.IntPtr(*doc.TotalPages)
	}
	if doc.Summary != nil {
		summary := *doc.Summary
		summary.KeyPoints = slices.Clone(summary.KeyPoints)
		summary.Topics = slices.Clone(summary.Topics)
		out.Summary = &summary
	}
	return &out
}
