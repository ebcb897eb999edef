// Package domain defines the core business entities for grantkb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded reference document and its ingestion state
//   - Chunk: A bounded slice of document text plus its embedding
//   - QueryResult: A generated answer with cited sources
//   - ProgressEvent: A single step reported by the ingestion pipeline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
