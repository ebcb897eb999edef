package services

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
)

// Retriever embeds a query and returns the most similar stored chunks.
// It reads the store without locking so queries run alongside ingestion;
// each call sees the documents that existed when it started.
type Retriever struct {
	store    driven.ChunkStore
	embedder driven.EmbeddingService
	backoff  *Backoff
}

// NewRetriever creates a retriever.
func NewRetriever(store driven.ChunkStore, embedder driven.EmbeddingService, backoff *Backoff) *Retriever {
	return &Retriever{store: store, embedder: embedder, backoff: backoff}
}

// Retrieve returns up to k chunks ordered by descending cosine similarity.
// Ties are broken by ascending document id, then sequence index.
// Only chunks whose document passes filter are scored.
func (r *Retriever) Retrieve(
	ctx context.Context, query string, k int, filter *domain.RetrievalFilter,
) ([]domain.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrValidation)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrValidation, k)
	}

	docs, err := r.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	names := make(map[string]string, len(docs))
	for i := range docs {
		if docs[i].TotalChunks > 0 && filter.Matches(&docs[i]) {
			names[docs[i].ID] = docs[i].Name
		}
	}
	logger.Debug("Retrieve: %d of %d documents match the filter", len(names), len(docs))
	if len(names) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	queryVec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	top := &scoredHeap{items: make([]domain.ScoredChunk, 0, min(k, 64))}
	for chunk, err := range r.store.AllChunks(ctx) {
		if err != nil {
			return nil, fmt.Errorf("scan chunks: %w", err)
		}
		name, ok := names[chunk.DocumentID]
		if !ok {
			continue
		}
		sc := domain.ScoredChunk{Chunk: chunk, DocumentName: name, Score: cosine(queryVec, chunk.Embedding)}
		if top.Len() < k {
			heap.Push(top, sc)
		} else if worse(top.items[0], sc) {
			top.items[0] = sc
			heap.Fix(top, 0)
		}
	}

	results := top.items
	sort.Slice(results, func(i, j int) bool { return worse(results[j], results[i]) })
	logger.Debug("Retrieve: returning %d chunks", len(results))
	return results, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, domain.ErrEmbeddingUnavailable)
	}

	var vecs [][]float32
	err := r.backoff.Do(ctx, "query embedding", func(ctx context.Context) error {
		var err error
		vecs, err = r.embedder.EmbedBatch(ctx, []string{query})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", domain.ErrEmbedding, err)
	}
	if len(vecs) != 1 || len(vecs[0]) != r.store.Dimension() {
		return nil, fmt.Errorf("%w: %w: query embedding has the wrong shape", domain.ErrEmbedding, domain.ErrMalformedResponse)
	}
	return vecs[0], nil
}

// worse reports whether a ranks below b.
func worse(a, b domain.ScoredChunk) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Chunk.DocumentID != b.Chunk.DocumentID {
		return a.Chunk.DocumentID > b.Chunk.DocumentID
	}
	return a.Chunk.SequenceIndex > b.Chunk.SequenceIndex
}

// scoredHeap is a min-heap with the worst kept chunk at the root.
type scoredHeap struct {
	items []domain.ScoredChunk
}

func (h *scoredHeap) Len() int           { return len(h.items) }
func (h *scoredHeap) Less(i, j int) bool { return worse(h.items[i], h.items[j]) }
func (h *scoredHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *scoredHeap) Push(x any)         { h.items = append(h.items, x.(domain.ScoredChunk)) }
func (h *scoredHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	return x
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
