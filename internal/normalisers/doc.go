// Package normalisers holds helpers shared by the text extractors in its
// subpackages. Each subpackage implements driven.TextExtractor for one family
// of formats; extractors are registered with the ExtractorRegistry at startup.
//
// Page boundaries travel through extracted text as form feeds ('\f'), the
// convention pdftotext uses. Paginate turns them into rune offsets.
package normalisers
