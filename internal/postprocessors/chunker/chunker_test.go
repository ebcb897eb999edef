package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func mustNew(t *testing.T, opts ...Option) *Chunker {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

func texts(chunks []domain.ChunkInput) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := mustNew(t)
		assert.Equal(t, DefaultWindow, c.Window())
		assert.Equal(t, DefaultOverlap, c.Overlap())
		assert.Equal(t, DefaultTolerance, c.tolerance)
	})

	t.Run("from settings", func(t *testing.T) {
		c := mustNew(t, FromSettings(domain.ChunkerSettings{Window: 500, Overlap: 100, Tolerance: 40})...)
		assert.Equal(t, 500, c.Window())
		assert.Equal(t, 100, c.Overlap())
		assert.Equal(t, 40, c.tolerance)
	})

	t.Run("tolerance bounded by overlap", func(t *testing.T) {
		c := mustNew(t, WithWindow(10), WithOverlap(2), WithTolerance(50))
		assert.Equal(t, 2, c.tolerance)
	})

	t.Run("tolerance bounded by step", func(t *testing.T) {
		c := mustNew(t, WithWindow(10), WithOverlap(8), WithTolerance(50))
		assert.Equal(t, 2, c.tolerance)
	})

	invalid := []struct {
		name string
		opts []Option
	}{
		{"zero window", []Option{WithWindow(0)}},
		{"negative overlap", []Option{WithOverlap(-1)}},
		{"overlap equals window", []Option{WithWindow(100), WithOverlap(100)}},
		{"overlap exceeds window", []Option{WithWindow(100), WithOverlap(150)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCount(t *testing.T) {
	c := mustNew(t, WithWindow(400), WithOverlap(50))

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{50, 1},
		{51, 1},
		{400, 1},
		{401, 2},
		{750, 2},
		{751, 3},
		{1000, 3},
		{1050, 3},
		{1051, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Count(tt.n), "n=%d", tt.n)
	}
}

func TestChunk_FormulaFixture(t *testing.T) {
	// 1000 characters without any break, W=400, O=50: ceil(950/350) = 3.
	fixture := strings.Repeat("abcdefghij", 100)
	c := mustNew(t, WithWindow(400), WithOverlap(50))

	chunks, err := c.Chunk(fixture, nil)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, fixture[0:400], chunks[0].Text)
	assert.Equal(t, fixture[350:750], chunks[1].Text)
	assert.Equal(t, fixture[700:1000], chunks[2].Text)
	for _, ch := range chunks {
		assert.Nil(t, ch.PageNumber)
		assert.Nil(t, ch.Embedding)
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("Grant applications need evidence. ", 80)
	c := mustNew(t, WithWindow(200), WithOverlap(40), WithTolerance(30))

	first, err := c.Chunk(text, []int{0, 1000, 2000})
	require.NoError(t, err)
	second, err := c.Chunk(text, []int{0, 1000, 2000})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, c.Count(len([]rune(text))))
}

func TestChunk_NudgesToSentenceBreak(t *testing.T) {
	// ". " ends at rune 15, within tolerance of the nominal boundary at 20.
	text := strings.Repeat("a", 13) + ". " + strings.Repeat("b", 31)
	c := mustNew(t, WithWindow(20), WithOverlap(5), WithTolerance(5))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		strings.Repeat("a", 13) + ". ",
		strings.Repeat("b", 20),
		strings.Repeat("b", 16),
	}, texts(chunks))
}

func TestChunk_PrefersParagraphBreak(t *testing.T) {
	// A sentence break sits at rune 19 and a paragraph break at rune 13.
	text := strings.Repeat("a", 11) + "\n\n" + "bbbb. " + strings.Repeat("c", 30)
	c := mustNew(t, WithWindow(20), WithOverlap(8), WithTolerance(8))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	assert.Equal(t, strings.Repeat("a", 11)+"\n\n", chunks[0].Text)
}

func TestChunk_HardBoundaryOutsideTolerance(t *testing.T) {
	// The only break is 10 runes before the boundary; tolerance is 3.
	text := strings.Repeat("a", 8) + ". " + strings.Repeat("b", 30)
	c := mustNew(t, WithWindow(20), WithOverlap(5), WithTolerance(3))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	assert.Equal(t, text[:20], chunks[0].Text)
}

func TestChunk_NoToleranceNoNudge(t *testing.T) {
	text := strings.Repeat("a", 13) + ". " + strings.Repeat("b", 31)
	c := mustNew(t, WithWindow(20), WithOverlap(5), WithTolerance(0))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	assert.Equal(t, text[:20], chunks[0].Text)
	assert.Equal(t, text[15:35], chunks[1].Text)
}

func TestChunk_ShortText(t *testing.T) {
	c := mustNew(t, WithWindow(400), WithOverlap(50))

	chunks, err := c.Chunk("Erasmus+ KA2", nil)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Erasmus+ KA2", chunks[0].Text)
}

func TestChunk_BlankText(t *testing.T) {
	c := mustNew(t)

	for _, text := range []string{"", "   ", "\n\t\n"} {
		chunks, err := c.Chunk(text, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, chunks)
	}
}

func TestChunk_Pages(t *testing.T) {
	text := strings.Repeat("x", 30)
	c := mustNew(t, WithWindow(10), WithOverlap(0), WithTolerance(0))

	chunks, err := c.Chunk(text, []int{0, 12, 25})
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	var pages []int
	for _, ch := range chunks {
		require.NotNil(t, ch.PageNumber)
		pages = append(pages, *ch.PageNumber)
	}
	assert.Equal(t, []int{1, 1, 2}, pages)
}

func TestChunk_CountsRunes(t *testing.T) {
	text := strings.Repeat("é", 30)
	c := mustNew(t, WithWindow(10), WithOverlap(0))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	for _, ch := range chunks {
		assert.Equal(t, strings.Repeat("é", 10), ch.Text)
	}
}

func TestChunk_OverlapCoversText(t *testing.T) {
	var sb strings.Builder
	for i := range 40 {
		fmt.Fprintf(&sb, "Partner %d brings expertise.\n", i)
	}
	text := sb.String()
	c := mustNew(t, WithWindow(120), WithOverlap(30), WithTolerance(20))

	chunks, err := c.Chunk(text, nil)
	require.NoError(t, err)

	// Every chunk is found in order and the next one starts no later than
	// the previous one ends.
	offset := 0
	prevEnd := 0
	for i, ch := range chunks {
		idx := strings.Index(text[offset:], ch.Text)
		require.GreaterOrEqual(t, idx, 0, "chunk %d not found in order", i)
		start := offset + idx
		if i > 0 {
			assert.LessOrEqual(t, start, prevEnd)
		}
		prevEnd = start + len(ch.Text)
		offset = start + 1
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestPageOf(t *testing.T) {
	starts := []int{0, 100, 200}

	assert.Equal(t, 1, PageOf(starts, 0))
	assert.Equal(t, 1, PageOf(starts, 99))
	assert.Equal(t, 2, PageOf(starts, 100))
	assert.Equal(t, 3, PageOf(starts, 250))
	assert.Equal(t, 1, PageOf([]int{5}, 0))
}
