package normalisers

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// MIME types handled by the built-in extractors.
const (
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

const pageSeparator = "\n\n"

// Paginate replaces form feeds with paragraph breaks and returns the rune
// offset at which each page starts. A trailing empty page is dropped.
func Paginate(text string) (string, []int) {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(pages)*len(pageSeparator))
	starts := make([]int, 0, len(pages))
	offset := 0
	for i, page := range pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
			offset += len(pageSeparator)
		}
		starts = append(starts, offset)
		sb.WriteString(page)
		offset += utf8.RuneCountInString(page)
	}
	return sb.String(), starts
}

// Result builds an ExtractedText. When paginated is false and the text holds
// no form feed, no page information is reported. Blank text is an
// extraction error.
func Result(text, title string, paginated bool) (*domain.ExtractedText, error) {
	text = strings.ToValidUTF8(strings.TrimPrefix(text, "\ufeff"), "\uFFFD")

	out := &domain.ExtractedText{Title: strings.TrimSpace(title)}
	if paginated || strings.ContainsRune(text, '\f') {
		out.Text, out.PageStarts = Paginate(text)
		out.PageCount = len(out.PageStarts)
	} else {
		out.Text = text
	}

	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: document contains no text", domain.ErrExtraction)
	}
	return out, nil
}

// TitleFromFilename derives a readable title from a file name.
func TitleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}

var extensionTypes = map[string]string{
	".txt":      MIMEPlain,
	".text":     MIMEPlain,
	".csv":      "text/csv",
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".html":     MIMEHTML,
	".htm":      MIMEHTML,
	".xhtml":    "application/xhtml+xml",
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
}

// DetectMIME guesses the MIME type of an upload from its file name, then
// from its content. The result carries no parameters.
func DetectMIME(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return NormaliseMIME(t)
	}
	return NormaliseMIME(http.DetectContentType(data))
}

// NormaliseMIME lowercases a MIME type and drops parameters such as charset.
func NormaliseMIME(t string) string {
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// IsSupportedExtension reports whether a file name has an extension the
// built-in extractors understand.
func IsSupportedExtension(filename string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}
