package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// allChunksPageSize is how many chunks AllChunks reads per query.
const allChunksPageSize = 256

const documentColumns = `id, name, type, status, language, mime_type, size_bytes,
	uploaded_at, updated_at, total_pages, total_chunks, summary, error_message`

const chunkColumns = `id, document_id, sequence_index, page_number, text, embedding`

// CreateDocument inserts a document in status uploading.
func (s *Store) CreateDocument(ctx context.Context, spec domain.DocumentSpec) (*domain.Document, error) {
	if err := storage.ValidateSpec(spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         uuid.New().String(),
		Name:       spec.Name,
		Type:       spec.Type,
		Status:     domain.StatusUploading,
		Language:   spec.Language,
		MIMEType:   spec.MIMEType,
		SizeBytes:  spec.SizeBytes,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, type, status, language, mime_type, size_bytes, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, string(doc.Type), string(doc.Status), doc.Language, doc.MIMEType,
		doc.SizeBytes, doc.UploadedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting document: %w", domain.ErrStorage, err)
	}
	return doc, nil
}

// AppendChunks atomically appends chunks to a document.
func (s *Store) AppendChunks(ctx context.Context, documentID string, chunks []domain.ChunkInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	err = tx.QueryRowContext(ctx, "SELECT total_chunks FROM documents WHERE id = ?", documentID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MissingDocument(documentID)
	}
	if err != nil {
		return fmt.Errorf("%w: reading document: %w", domain.ErrStorage, err)
	}

	if err := s.limits.ValidateChunks(existing, chunks); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, sequence_index, page_number, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %w", domain.ErrStorage, err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), documentID, existing+i,
			nullInt(c.PageNumber), c.Text, float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("%w: inserting chunk %d: %w", domain.ErrStorage, i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET total_chunks = total_chunks + ?, updated_at = ? WHERE id = ?
	`, len(chunks), time.Now().UTC(), documentID); err != nil {
		return fmt.Errorf("%w: updating chunk count: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrStorage, err)
	}
	return nil
}

// UpdateStatus moves a document through the state machine.
func (s *Store) UpdateStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errorMessage string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", documentID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.MissingDocument(documentID)
	}
	if err != nil {
		return fmt.Errorf("%w: reading status: %w", domain.ErrStorage, err)
	}

	if err := storage.CheckTransition(documentID, domain.DocumentStatus(current), status); err != nil {
		return err
	}

	if status != domain.StatusError {
		errorMessage = ""
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?
	`, string(status), errorMessage, time.Now().UTC(), documentID); err != nil {
		return fmt.Errorf("%w: updating status: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrStorage, err)
	}
	return nil
}

// SetSummary attaches a summary to a document.
func (s *Store) SetSummary(ctx context.Context, documentID string, summary domain.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	return s.updateDocument(ctx, documentID, "summary = ?", string(summaryJSON))
}

// SetTotalPages records the page count of a document.
func (s *Store) SetTotalPages(ctx context.Context, documentID string, pages int) error {
	return s.updateDocument(ctx, documentID, "total_pages = ?", pages)
}

func (s *Store) updateDocument(ctx context.Context, documentID, set string, value any) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET "+set+", updated_at = ? WHERE id = ?",
		value, time.Now().UTC(), documentID)
	if err != nil {
		return fmt.Errorf("%w: updating document: %w", domain.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.MissingDocument(documentID)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by upload time.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY uploaded_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// GetChunks retrieves all chunks for a document in sequence order.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+chunkColumns+`
		FROM chunks WHERE document_id = ?
		ORDER BY sequence_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	return scanChunk(row)
}

// AllChunks yields every chunk. Rows are read in pages keyed by rowid so
// no query stays open while the caller consumes the sequence.
func (s *Store) AllChunks(ctx context.Context) iter.Seq2[domain.Chunk, error] {
	return func(yield func(domain.Chunk, error) bool) {
		var after int64
		for {
			if err := ctx.Err(); err != nil {
				yield(domain.Chunk{}, err)
				return
			}
			page, last, err := s.chunkPage(ctx, after)
			if err != nil {
				yield(domain.Chunk{}, err)
				return
			}
			for _, c := range page {
				if !yield(c, nil) {
					return
				}
			}
			if len(page) < allChunksPageSize {
				return
			}
			after = last
		}
	}
}

func (s *Store) chunkPage(ctx context.Context, after int64) ([]domain.Chunk, int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT rowid, "+chunkColumns+`
		FROM chunks WHERE rowid > ?
		ORDER BY rowid LIMIT ?
	`, after, allChunksPageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	page := make([]domain.Chunk, 0, allChunksPageSize)
	last := after
	for rows.Next() {
		var (
			rowid     int64
			c         domain.Chunk
			pageNum   sql.NullInt64
			embedding []byte
		)
		if err := rows.Scan(&rowid, &c.ID, &c.DocumentID, &c.SequenceIndex, &pageNum, &c.Text, &embedding); err != nil {
			return nil, 0, fmt.Errorf("scanning chunk: %w", err)
		}
		c.PageNumber = intPtr(pageNum)
		c.Embedding = bytesToFloat32Slice(embedding)
		page = append(page, c)
		last = rowid
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating chunks: %w", err)
	}
	return page, last, nil
}

// DeleteChunks removes every chunk of a document and resets its count.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting chunks: %w", domain.ErrStorage, err)
	}
	removed, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		"UPDATE documents SET total_chunks = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC(), documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: resetting chunk count: %w", domain.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, storage.MissingDocument(documentID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing transaction: %w", domain.ErrStorage, err)
	}
	return int(removed), nil
}

// DeleteDocument removes a document; its chunks go with it via ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("%w: deleting document: %w", domain.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: deleting document: %w", domain.ErrStorage, err)
	}
	return n > 0, nil
}

// Clear removes all documents and chunks.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("%w: clearing chunks: %w", domain.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("%w: clearing documents: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrStorage, err)
	}
	return nil
}
