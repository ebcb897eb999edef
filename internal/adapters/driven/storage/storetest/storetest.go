// Package storetest provides a behavioural suite every ChunkStore must pass.
package storetest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Dimension is the embedding dimension stores under test must be created with.
const Dimension = 4

// MaxChunkChars is the chunk text limit stores under test must be created with.
const MaxChunkChars = 64

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) driven.ChunkStore

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.ChunkStore)
	}{
		{"CreateDocument", testCreateDocument},
		{"CreateDocumentValidation", testCreateDocumentValidation},
		{"AppendChunksAssignsSequence", testAppendChunksAssignsSequence},
		{"AppendChunksDimensionMismatch", testAppendChunksDimensionMismatch},
		{"AppendChunksTooLong", testAppendChunksTooLong},
		{"AppendChunksMissingDocument", testAppendChunksMissingDocument},
		{"StatusTransitions", testStatusTransitions},
		{"ErrorMessageOnlyInError", testErrorMessageOnlyInError},
		{"DeleteDocumentCascades", testDeleteDocumentCascades},
		{"DeleteChunks", testDeleteChunks},
		{"SummaryAndPages", testSummaryAndPages},
		{"ListDocumentsOrder", testListDocumentsOrder},
		{"AllChunks", testAllChunks},
		{"Clear", testClear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

// Vec returns a vector of the suite dimension with v in the first slot.
func Vec(v float32) []float32 {
	out := make([]float32, Dimension)
	out[0] = v
	return out
}

// Inputs builds n chunk inputs.
func Inputs(n int) []domain.ChunkInput {
	chunks := make([]domain.ChunkInput, n)
	for i := range chunks {
		chunks[i] = domain.ChunkInput{
			Text:       "chunk text " + string(rune('a'+i%26)),
			PageNumber: domain.IntPtr(i/2 + 1),
			Embedding:  Vec(float32(i + 1)),
		}
	}
	return chunks
}

func newDoc(t *testing.T, s driven.ChunkStore, name string) *domain.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), domain.DocumentSpec{
		Name:     name,
		Type:     domain.DocumentTypeStudy,
		Language: "en",
		MIMEType: "text/plain",
	})
	require.NoError(t, err)
	return doc
}

func testCreateDocument(t *testing.T, s driven.ChunkStore) {
	doc := newDoc(t, s, "guide.pdf")

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "guide.pdf", doc.Name)
	assert.Equal(t, domain.StatusUploading, doc.Status)
	assert.Equal(t, 0, doc.TotalChunks)
	assert.Empty(t, doc.ErrorMessage)
	assert.Equal(t, Dimension, s.Dimension())

	got, err := s.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, domain.DocumentTypeStudy, got.Type)
	assert.Equal(t, "en", got.Language)

	_, err = s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testCreateDocumentValidation(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()

	_, err := s.CreateDocument(ctx, domain.DocumentSpec{Name: "  ", Type: domain.DocumentTypeOther})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.CreateDocument(ctx, domain.DocumentSpec{Name: "x", Type: "bogus"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func testAppendChunksAssignsSequence(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(3)))
	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(2)))

	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	for i, c := range chunks {
		assert.Equal(t, i, c.SequenceIndex)
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Len(t, c.Embedding, Dimension)
		assert.NotEmpty(t, c.ID)
	}
	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 1, *chunks[0].PageNumber)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalChunks)

	one, err := s.GetChunk(ctx, chunks[2].ID)
	require.NoError(t, err)
	assert.Equal(t, chunks[2].Text, one.Text)
	assert.Equal(t, chunks[2].Embedding, one.Embedding)

	_, err = s.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testAppendChunksDimensionMismatch(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	chunks := Inputs(3)
	chunks[2].Embedding = make([]float32, Dimension+1)

	err := s.AppendChunks(ctx, doc.ID, chunks)
	require.ErrorIs(t, err, domain.ErrStorage)

	// The batch is all or nothing.
	got, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	after, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.TotalChunks)
}

func testAppendChunksTooLong(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	chunks := Inputs(1)
	chunks[0].Text = strings.Repeat("x", MaxChunkChars+1)

	err := s.AppendChunks(ctx, doc.ID, chunks)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func testAppendChunksMissingDocument(t *testing.T, s driven.ChunkStore) {
	err := s.AppendChunks(context.Background(), "missing", Inputs(1))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := s.GetChunks(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func testStatusTransitions(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	for _, st := range []domain.DocumentStatus{
		domain.StatusExtracting,
		domain.StatusChunking,
		domain.StatusEmbedding,
	} {
		require.NoError(t, s.UpdateStatus(ctx, doc.ID, st, ""))
	}

	err := s.UpdateStatus(ctx, doc.ID, domain.StatusExtracting, "")
	require.ErrorIs(t, err, domain.ErrStorage)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmbedding, got.Status)

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""))
	assert.ErrorIs(t, s.UpdateStatus(ctx, doc.ID, domain.StatusError, "late"), domain.ErrStorage)

	err = s.UpdateStatus(ctx, "missing", domain.StatusExtracting, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testErrorMessageOnlyInError(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, domain.StatusExtracting, "ignored"))
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage)

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, domain.StatusError, "extraction failed"))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "extraction failed", got.ErrorMessage)

	require.NoError(t, s.UpdateStatus(ctx, doc.ID, domain.StatusUploading, ""))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploading, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func testDeleteDocumentCascades(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")
	keep := newDoc(t, s, "b")
	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(5)))
	require.NoError(t, s.AppendChunks(ctx, keep.ID, Inputs(2)))

	deleted, err := s.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	var remaining int
	for c, err := range s.AllChunks(ctx) {
		require.NoError(t, err)
		assert.Equal(t, keep.ID, c.DocumentID)
		remaining++
	}
	assert.Equal(t, 2, remaining)

	deleted, err = s.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testDeleteChunks(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")
	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(4)))

	n, err := s.DeleteChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalChunks)

	// Sequence restarts from zero after a rollback.
	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(1)))
	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].SequenceIndex)

	_, err = s.DeleteChunks(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSummaryAndPages(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")

	summary := domain.Summary{
		Synopsis:  "A study on youth mobility.",
		KeyPoints: []string{"one", "two"},
		Topics:    []string{"mobility"},
		Relevance: "high",
		Language:  "en",
		Model:     "test-model",
	}
	require.NoError(t, s.SetSummary(ctx, doc.ID, summary))
	require.NoError(t, s.SetTotalPages(ctx, doc.ID, 12))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, summary.Synopsis, got.Summary.Synopsis)
	assert.Equal(t, summary.KeyPoints, got.Summary.KeyPoints)
	assert.Equal(t, summary.Topics, got.Summary.Topics)
	require.NotNil(t, got.TotalPages)
	assert.Equal(t, 12, *got.TotalPages)

	assert.ErrorIs(t, s.SetSummary(ctx, "missing", summary), domain.ErrNotFound)
	assert.ErrorIs(t, s.SetTotalPages(ctx, "missing", 1), domain.ErrNotFound)
}

func testListDocumentsOrder(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	names := []string{"first", "second", "third"}
	for _, n := range names {
		newDoc(t, s, n)
	}

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, names[i], d.Name)
	}
}

func testAllChunks(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	a := newDoc(t, s, "a")
	b := newDoc(t, s, "b")
	require.NoError(t, s.AppendChunks(ctx, a.ID, Inputs(3)))
	require.NoError(t, s.AppendChunks(ctx, b.ID, Inputs(2)))

	counts := map[string]int{}
	for c, err := range s.AllChunks(ctx) {
		require.NoError(t, err)
		counts[c.DocumentID]++
	}
	assert.Equal(t, map[string]int{a.ID: 3, b.ID: 2}, counts)

	// Stopping early is allowed.
	seen := 0
	for _, err := range s.AllChunks(ctx) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	var gotErr error
	for _, err := range s.AllChunks(cancelled) {
		if err != nil {
			gotErr = err
			break
		}
	}
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func testClear(t *testing.T, s driven.ChunkStore) {
	ctx := context.Background()
	doc := newDoc(t, s, "a")
	require.NoError(t, s.AppendChunks(ctx, doc.ID, Inputs(2)))

	require.NoError(t, s.Clear(ctx))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	for range s.AllChunks(ctx) {
		t.Fatal("expected no chunks after clear")
	}
	assert.Equal(t, Dimension, s.Dimension())
}
