package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func TestExtractorRegistry_Get(t *testing.T) {
	plain := &mockExtractor{types: []string{"text/plain"}}
	html := &mockExtractor{types: []string{"text/html", "application/xhtml+xml"}}
	r := NewExtractorRegistry(plain, html)

	tests := []struct {
		mimeType string
		want     *mockExtractor
	}{
		{"text/plain", plain},
		{"text/plain; charset=utf-8", plain},
		{"TEXT/HTML", html},
		{"application/xhtml+xml", html},
	}
	for _, tc := range tests {
		t.Run(tc.mimeType, func(t *testing.T) {
			got, err := r.Get(tc.mimeType)
			require.NoError(t, err)
			assert.Same(t, tc.want, got)
		})
	}
}

func TestExtractorRegistry_Unsupported(t *testing.T) {
	r := NewExtractorRegistry()

	_, err := r.Get("image/png")

	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "image/png")
}

func TestExtractorRegistry_ReplacesExisting(t *testing.T) {
	first := &mockExtractor{types: []string{"text/plain"}}
	second := &mockExtractor{types: []string{"text/plain"}}
	r := NewExtractorRegistry(first)
	r.Register(second)

	got, err := r.Get("text/plain")

	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestExtractorRegistry_SupportedTypes(t *testing.T) {
	r := NewExtractorRegistry(
		&mockExtractor{types: []string{"text/plain"}},
		&mockExtractor{types: []string{"application/pdf", "Text/Markdown"}},
	)

	assert.Equal(t, []string{"application/pdf", "text/markdown", "text/plain"}, r.SupportedTypes())
}

func TestExtractorRegistry_ExtractThroughRegistry(t *testing.T) {
	r := NewExtractorRegistry(&mockExtractor{types: []string{"text/plain"}, text: "hello"})

	e, err := r.Get("text/plain")
	require.NoError(t, err)
	out, err := e.Extract(context.Background(), []byte("ignored"), "text/plain")

	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
}
