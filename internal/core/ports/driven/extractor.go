package driven

import (
	"context"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// TextExtractor turns uploaded bytes into plain text.
type TextExtractor interface {
	// Extract returns the text of data. Failures wrap domain.ErrExtraction.
	Extract(ctx context.Context, data []byte, mimeType string) (*domain.ExtractedText, error)

	// MIMETypes returns the MIME types this extractor handles.
	MIMETypes() []string
}

// ExtractorRegistry selects a TextExtractor by MIME type.
type ExtractorRegistry interface {
	// Register adds an extractor for all of its MIME types.
	Register(e TextExtractor)

	// Get returns the extractor for mimeType, or domain.ErrUnsupportedFormat.
	Get(mimeType string) (TextExtractor, error)

	// SupportedTypes returns every registered MIME type.
	SupportedTypes() []string
}
