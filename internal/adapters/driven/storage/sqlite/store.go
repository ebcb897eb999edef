package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage"
	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ChunkStore = (*Store)(nil)

const metaDimension = "dimension"

// Options configure a new store.
type Options struct {
	// Dimension is the embedding dimension. Zero adopts the dimension already
	// recorded in an existing database.
	Dimension int

	// MaxChunkChars bounds a chunk's text length. Zero disables the check.
	MaxChunkChars int

	// MaxChunksPerDocument bounds a document's chunk count. Zero disables the check.
	MaxChunksPerDocument int
}

// Store is a SQLite-backed ChunkStore.
type Store struct {
	db     *sql.DB
	path   string
	limits storage.Limits
}

// NewStore opens (or creates) the store in dataDir.
// If dataDir is empty, defaults to ~/.grantkb/data/knowledge.db.
func NewStore(dataDir string, opts Options) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".grantkb", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knowledge.db")

	db, err := sql.Open("sqlite",
		dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers so append and delete never
	// race on SQLITE_BUSY. Reads are short and paginated.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
		limits: storage.Limits{
			MaxChunkChars:        opts.MaxChunkChars,
			MaxChunksPerDocument: opts.MaxChunksPerDocument,
		},
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	dim, err := s.initDimension(opts.Dimension)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.limits.Dimension = dim

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimension returns the store-wide embedding dimension.
func (s *Store) Dimension() int {
	return s.limits.Dimension
}

// initDimension records the dimension on first use and rejects a mismatch later.
func (s *Store) initDimension(want int) (int, error) {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", metaDimension).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if want <= 0 {
			return 0, fmt.Errorf("%w: embedding dimension is required for a new store", domain.ErrStorage)
		}
		if _, err := s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			metaDimension, strconv.Itoa(want)); err != nil {
			return 0, fmt.Errorf("recording dimension: %w", err)
		}
		return want, nil
	case err != nil:
		return 0, fmt.Errorf("reading dimension: %w", err)
	}

	have, err := strconv.Atoi(stored)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt dimension %q", domain.ErrStorage, stored)
	}
	if want > 0 && want != have {
		return 0, fmt.Errorf("%w: %w: store was created with dimension %d, embedding model produces %d; "+
			"run 'grantkb clear --reset' or use another data directory",
			domain.ErrStorage, domain.ErrDimensionMismatch, have, want)
	}
	return have, nil
}

// ResetDimension clears all data and records a new dimension.
// It is used when the embedding model changes.
func (s *Store) ResetDimension(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrValidation)
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaDimension, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}
	s.limits.Dimension = dim
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}
