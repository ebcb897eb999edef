// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ChunkStore: Document and chunk persistence (SQLite or in-memory)
//   - TextExtractor: Turns uploaded bytes into plain text
//   - TextChunker: Splits text into overlapping windows
//   - EmbeddingService: Generates vector embeddings for chunks and queries
//   - LLMService: Completes prompts for answers and summaries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - PromptStore: Customised prompt templates. Defaults are built in.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
