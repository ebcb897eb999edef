// Package markdown extracts readable text from Markdown uploads.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{normalisers.MIMEMarkdown, "text/x-markdown"}
}

// Extract strips Markdown syntax. The first level one heading becomes the title.
func (e *Extractor) Extract(_ context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	content := string(data)
	return normalisers.Result(stripMarkdown(content), extractTitle(content), false)
}

var (
	fencedCode   = regexp.MustCompile("(?m)^[ \\t]*(```|~~~).*$")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	emphasis     = regexp.MustCompile(`(\*\*|__|\*|_)([^\s*_][^*_]*?)(\*\*|__|\*|_)`)
	blockquote   = regexp.MustCompile(`(?m)^>[ \t]?`)
	rule         = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	tableDivider = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}.*$`)
	tablePipes   = regexp.MustCompile(`[ \t]*\|[ \t]*`)
	bullets      = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numbered     = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// extractTitle returns the text of the first "# " heading, if any.
func extractTitle(content string) string {
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// stripMarkdown removes formatting but keeps the words, including the
// contents of code spans and blocks.
func stripMarkdown(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = fencedCode.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = rule.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = tableDivider.ReplaceAllString(content, "")
	content = bullets.ReplaceAllString(content, "")
	content = numbered.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, "|") {
			line = strings.Trim(tablePipes.ReplaceAllString(line, " | "), " |")
		}
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")

	content = blankRuns.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
