package driven

import "github.com/custodia-labs/grantkb/internal/core/domain"

// TextChunker splits extracted text into chunk inputs without embeddings.
type TextChunker interface {
	// Chunk returns the windows of text. pageStarts holds the rune offsets
	// at which pages begin and may be empty. Blank text returns
	// domain.ErrValidation.
	Chunk(text string, pageStarts []int) ([]domain.ChunkInput, error)
}
