package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{normalisers.MIMEHTML, "application/xhtml+xml"}
}

// Extract converts HTML to plain text. The <title> element becomes the title.
func (e *Extractor) Extract(_ context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	content := string(data)
	return normalisers.Result(stripHTML(content), extractTitle(content), false)
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag        = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedElements = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
	paragraphTags = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|blockquote|pre|table|section|article|header|footer|ul|ol)(\s[^>]*)?>`)
	lineEndTags   = regexp.MustCompile(`(?i)</(li|tr|dt|dd)>`)
	cellEndTags   = regexp.MustCompile(`(?i)</t[dh]>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags        = regexp.MustCompile(`(?i)<hr[^>]*>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// extractTitle returns the decoded <title> text, if any.
func extractTitle(content string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(matches[1]))
}

// stripHTML removes markup and returns readable text.
func stripHTML(content string) string {
	for _, re := range droppedElements {
		content = re.ReplaceAllString(content, "")
	}

	content = cellEndTags.ReplaceAllString(content, " ")
	content = lineEndTags.ReplaceAllString(content, "\n")
	content = paragraphTags.ReplaceAllString(content, "\n\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n\n")
	content = allTags.ReplaceAllString(content, "")

	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
