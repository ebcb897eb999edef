// Package storage holds checks shared by the ChunkStore implementations.
package storage

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// Limits bound what a store accepts.
type Limits struct {
	// Dimension is the embedding dimension every chunk must have.
	Dimension int

	// MaxChunkChars bounds the rune length of a chunk text. Zero disables the check.
	MaxChunkChars int

	// MaxChunksPerDocument bounds a document's chunk count. Zero disables the check.
	MaxChunksPerDocument int
}

// ValidateSpec checks the caller supplied fields of a new document.
func ValidateSpec(spec domain.DocumentSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: document name is required", domain.ErrValidation)
	}
	if !spec.Type.IsValid() {
		return fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, spec.Type)
	}
	return nil
}

// ValidateChunks checks a batch about to be appended to a document that
// already owns existing chunks.
func (l Limits) ValidateChunks(existing int, chunks []domain.ChunkInput) error {
	if l.MaxChunksPerDocument > 0 && existing+len(chunks) > l.MaxChunksPerDocument {
		return fmt.Errorf("%w: document would own %d chunks, limit is %d",
			domain.ErrStorage, existing+len(chunks), l.MaxChunksPerDocument)
	}
	for i, c := range chunks {
		if len(c.Embedding) != l.Dimension {
			return fmt.Errorf("%w: chunk %d has embedding dimension %d, store dimension is %d",
				domain.ErrStorage, i, len(c.Embedding), l.Dimension)
		}
		if l.MaxChunkChars > 0 && utf8.RuneCountInString(c.Text) > l.MaxChunkChars {
			return fmt.Errorf("%w: chunk %d exceeds %d characters", domain.ErrStorage, i, l.MaxChunkChars)
		}
	}
	return nil
}

// CheckTransition returns domain.ErrStorage if from cannot move to to.
func CheckTransition(id string, from, to domain.DocumentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: document %s cannot move from %s to %s", domain.ErrStorage, id, from, to)
	}
	return nil
}

// MissingDocument builds the error returned when a write targets an unknown id.
func MissingDocument(id string) error {
	return fmt.Errorf("%w: document %s: %w", domain.ErrStorage, id, domain.ErrNotFound)
}
