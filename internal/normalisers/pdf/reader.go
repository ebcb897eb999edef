package pdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// readPages returns the plain text of every page in order. A page without
// a readable text layer is kept as an empty string so page numbers stay
// aligned with the document.
func readPages(data []byte) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
