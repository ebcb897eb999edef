// Package plaintext extracts text from plain text uploads.
// Form feeds mark page breaks.
package plaintext

import (
	"context"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{
		normalisers.MIMEPlain,
		"text/csv",
		"text/tab-separated-values",
	}
}

// Extract returns the bytes as text.
func (e *Extractor) Extract(_ context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	return normalisers.Result(string(data), "", false)
}
