// Package chunker splits extracted text into overlapping, page-aware windows.
//
// Text is measured in runes. With window W and overlap O the nominal chunk i
// covers [i*(W-O), i*(W-O)+W), the last chunk is cut at the end of the text,
// and a text of N runes yields ceil(max(N-O, 0) / (W-O)) chunks. Interior
// boundaries move back to the nearest preceding paragraph or sentence break
// when one lies within the tolerance.
package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.TextChunker = (*Chunker)(nil)

// Defaults, in characters.
const (
	DefaultWindow    = 1000
	DefaultOverlap   = 150
	DefaultTolerance = 60
)

// Chunker splits text into windows. It is safe for concurrent use.
type Chunker struct {
	window    int
	overlap   int
	tolerance int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithWindow sets the window size.
func WithWindow(w int) Option {
	return func(c *Chunker) {
		c.window = w
	}
}

// WithOverlap sets the overlap between consecutive windows.
func WithOverlap(o int) Option {
	return func(c *Chunker) {
		c.overlap = o
	}
}

// WithTolerance sets how far a boundary may move back to reach a break.
// Zero disables boundary nudging.
func WithTolerance(t int) Option {
	return func(c *Chunker) {
		c.tolerance = t
	}
}

// FromSettings builds the options for a ChunkerSettings value.
func FromSettings(s domain.ChunkerSettings) []Option {
	return []Option{WithWindow(s.Window), WithOverlap(s.Overlap), WithTolerance(s.Tolerance)}
}

// New creates a chunker. It requires 0 <= overlap < window.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		window:    DefaultWindow,
		overlap:   DefaultOverlap,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.window <= 0 {
		return nil, fmt.Errorf("%w: chunk window must be positive, got %d", domain.ErrValidation, c.window)
	}
	if c.overlap < 0 || c.overlap >= c.window {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d",
			domain.ErrValidation, c.window, c.overlap)
	}
	if c.tolerance < 0 {
		c.tolerance = 0
	}
	// Bounded by the overlap and the step so chunks stay ordered and gap-free.
	c.tolerance = min(c.tolerance, c.overlap, c.window-c.overlap)
	return c, nil
}

// Window returns the window size.
func (c *Chunker) Window() int { return c.window }

// Overlap returns the overlap size.
func (c *Chunker) Overlap() int { return c.overlap }

// Count returns how many chunks a text of n runes produces.
func (c *Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	step := c.window - c.overlap
	rest := n - c.overlap
	if rest <= 0 {
		// Shorter than the overlap: the whole text is one chunk.
		return 1
	}
	return (rest + step - 1) / step
}

// Chunk splits text into chunk inputs without embeddings.
// pageStarts holds ascending rune offsets at which pages begin; when it is
// empty no page numbers are assigned. Blank text is a validation error.
func (c *Chunker) Chunk(text string, pageStarts []int) ([]domain.ChunkInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text to chunk", domain.ErrValidation)
	}

	runes := []rune(text)
	n := len(runes)
	count := c.Count(n)
	step := c.window - c.overlap

	chunks := make([]domain.ChunkInput, 0, count)
	for i := range count {
		start := i * step
		end := min(start+c.window, n)

		if i > 0 {
			start = c.nudge(runes, start)
		}
		if i < count-1 {
			end = c.nudge(runes, end)
		}

		in := domain.ChunkInput{Text: string(runes[start:end])}
		if len(pageStarts) > 0 {
			in.PageNumber = domain.IntPtr(PageOf(pageStarts, start))
		}
		chunks = append(chunks, in)
	}
	return chunks, nil
}

// nudge moves a boundary back to the nearest paragraph break within the
// tolerance, or failing that the nearest sentence break.
func (c *Chunker) nudge(runes []rune, pos int) int {
	if c.tolerance == 0 {
		return pos
	}
	lo := max(pos-c.tolerance, 1)

	for p := pos; p >= lo; p-- {
		if isParagraphBreak(runes, p) {
			return p
		}
	}
	for p := pos; p >= lo; p-- {
		if isSentenceBreak(runes, p) {
			return p
		}
	}
	return pos
}

// isParagraphBreak reports whether a cut before runes[p] follows a blank line.
func isParagraphBreak(runes []rune, p int) bool {
	return p >= 2 && runes[p-1] == '\n' && runes[p-2] == '\n'
}

// isSentenceBreak reports whether a cut before runes[p] follows a line end
// or sentence punctuation and a space.
func isSentenceBreak(runes []rune, p int) bool {
	if runes[p-1] == '\n' {
		return true
	}
	if p < 2 || !unicode.IsSpace(runes[p-1]) {
		return false
	}
	switch runes[p-2] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}

// PageOf returns the 1-based page containing rune offset pos.
// Offsets before the first page start map to page 1.
func PageOf(pageStarts []int, pos int) int {
	// Number of pages starting at or before pos.
	idx := sort.SearchInts(pageStarts, pos+1)
	return max(idx, 1)
}
