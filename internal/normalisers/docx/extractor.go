// Package docx extracts text from Word (.docx) documents.
//
// Explicit page breaks become form feeds, so paginated output is reported
// when the author inserted them.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{normalisers.MIMEDOCX}
}

// Extract reads word/document.xml. The title comes from docProps/core.xml.
func (e *Extractor) Extract(ctx context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrExtraction, err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	text, err := parseDocumentXML(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrExtraction, documentPart, err)
	}

	return normalisers.Result(text, extractTitle(reader), false)
}

var errMissingPart = errors.New("missing part")

// readPart returns the contents of a named archive member.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: %s", errMissingPart, name)
}

// parseDocumentXML walks the WordprocessingML tokens. Runs of text are
// joined and paragraphs end with a newline. Table cells are separated by a
// space. Explicit page breaks become form feeds. Tab stop definitions in
// paragraph properties are not tabs.
func parseDocumentXML(ctx context.Context, content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var sb strings.Builder
	inText := false
	inTabStops := false
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tabs":
				inTabStops = true
			case "tab":
				if !inTabStops {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if attr(t, "type") == "page" {
					sb.WriteByte('\f')
				} else {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tabs":
				inTabStops = false
			case "p":
				sb.WriteByte('\n')
			case "tc":
				sb.WriteByte(' ')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// attr returns the value of an attribute by local name.
func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle reads dc:title from the core properties, if present.
func extractTitle(reader *zip.Reader) string {
	content, err := readPart(reader, corePart)
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
