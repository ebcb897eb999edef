package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// scanDocument scans a row selected with documentColumns.
func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc         domain.Document
		docType     string
		status      string
		totalPages  sql.NullInt64
		summaryJSON sql.NullString
	)

	if err := row.Scan(&doc.ID, &doc.Name, &docType, &status, &doc.Language, &doc.MIMEType,
		&doc.SizeBytes, &doc.UploadedAt, &doc.UpdatedAt, &totalPages, &doc.TotalChunks,
		&summaryJSON, &doc.ErrorMessage); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	doc.TotalPages = intPtr(totalPages)

	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary domain.Summary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("unmarshalling summary: %w", err)
		}
		doc.Summary = &summary
	}

	return &doc, nil
}

// scanChunk scans a row selected with chunkColumns.
func scanChunk(row scanner) (*domain.Chunk, error) {
	var (
		chunk     domain.Chunk
		pageNum   sql.NullInt64
		embedding []byte
	)

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.SequenceIndex, &pageNum,
		&chunk.Text, &embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.PageNumber = intPtr(pageNum)
	chunk.Embedding = bytesToFloat32Slice(embedding)
	return &chunk, nil
}
