package services

import (
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure ExtractorRegistry implements the interface.
var _ driven.ExtractorRegistry = (*ExtractorRegistry)(nil)

// ExtractorRegistry maps MIME types to text extractors.
// A later registration for the same MIME type replaces the earlier one.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[string]driven.TextExtractor
}

// NewExtractorRegistry creates a registry holding the given extractors.
func NewExtractorRegistry(extractors ...driven.TextExtractor) *ExtractorRegistry {
	r := &ExtractorRegistry{extractors: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for all of its MIME types.
func (r *ExtractorRegistry) Register(e driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range e.MIMETypes() {
		r.extractors[normaliseMIME(t)] = e
	}
}

// Get returns the extractor for mimeType. Parameters such as charset and
// letter case are ignored.
func (r *ExtractorRegistry) Get(mimeType string) (driven.TextExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[normaliseMIME(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, mimeType)
	}
	return e, nil
}

// SupportedTypes returns every registered MIME type, sorted.
func (r *ExtractorRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func normaliseMIME(t string) string {
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
