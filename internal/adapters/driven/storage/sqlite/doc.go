// Package sqlite provides the SQLite-backed ChunkStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Chunks reference their document with ON DELETE CASCADE, so deleting a
// document removes its chunks in the same statement.
//
// The embedding dimension is recorded in store_meta when the database is
// created. Opening it later with a different dimension fails.
//
// # Data Location
//
// By default, the database is stored at ~/.grantkb/data/knowledge.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. Writes that touch more than
// one row run in a transaction.
package sqlite
