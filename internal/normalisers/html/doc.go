// Package html extracts readable text from HTML uploads. Scripts, styles
// and markup are dropped, entities are decoded, and block elements become
// line or paragraph breaks so the chunker can find natural boundaries.
package html
