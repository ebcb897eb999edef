package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func TestMIMETypes(t *testing.T) {
	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, New().MIMETypes())
}

func TestExtract(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head>
  <title>Call for Proposals &amp; Annexes</title>
  <style>body { font-family: Arial; }</style>
</head>
<body>
  <h1>Call 2025</h1>
  <p>Deadline: 5&nbsp;March.</p>
  <ul><li>Eligible: NGOs</li><li>Eligible: schools</li></ul>
  <script>track();</script>
</body>
</html>`

	out, err := New().Extract(context.Background(), []byte(page), "text/html")

	require.NoError(t, err)
	assert.Equal(t, "Call for Proposals & Annexes", out.Title)
	assert.Equal(t, "Call 2025\n\nDeadline: 5 March.\n\nEligible: NGOs\nEligible: schools", out.Text)
	assert.NotContains(t, out.Text, "track")
	assert.NotContains(t, out.Text, "font-family")
}

func TestExtract_OnlyMarkup(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("<html><body><script>x()</script></body></html>"), "text/html")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestExtractTitle(t *testing.T) {
	assert.Equal(t, "My Page", extractTitle("<TITLE> My Page </TITLE>"))
	assert.Empty(t, extractTitle("<p>no title</p>"))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple paragraph", "<p>Hello World</p>", "Hello World"},
		{"nested tags", "<div><p><strong>Bold</strong> text</p></div>", "Bold text"},
		{"script removed", "<p>Before</p><script>alert('x');</script><p>After</p>", "Before\n\nAfter"},
		{"style removed", "<style>.foo { color: red; }</style><p>Content</p>", "Content"},
		{"noscript removed", "<p>Content</p><noscript>No JS fallback</noscript>", "Content"},
		{"head removed", "<head><meta charset='utf-8'><title>Title</title></head><body>Content</body>", "Content"},
		{"br to newline", "Line 1<br>Line 2<br/>Line 3", "Line 1\nLine 2\nLine 3"},
		{"blocks become paragraphs", "<div>Block 1</div><div>Block 2</div>", "Block 1\n\nBlock 2"},
		{"entities decoded", "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>", "<tag> & \"quotes\""},
		{"comments removed", "<p>Before</p><!-- comment --><p>After</p>", "Before\n\nAfter"},
		{"list items", "<ul><li>Item 1</li><li>Item 2</li></ul>", "Item 1\nItem 2"},
		{"headings", "<h1>Title</h1><h2>Subtitle</h2><p>Content</p>", "Title\n\nSubtitle\n\nContent"},
		{"links keep text", `<a href="https://example.com">Click here</a>`, "Click here"},
		{"images removed", `<p>See <img src="image.png" alt="Image"> here</p>`, "See here"},
		{"table cells separated", "<table><tr><td>Cell 1</td><td>Cell 2</td></tr></table>", "Cell 1 Cell 2"},
		{"pre is a block", "<pre>code</pre>tail", "code\n\ntail"},
		{"svg removed", `<p>Before</p><svg width="100"><circle cx="50"/></svg><p>After</p>`, "Before\n\nAfter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stripHTML(tc.input))
		})
	}
}
