package api

import (
	"time"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	StatusLabel  string           `json:"status_label"`
	Language     string           `json:"language,omitempty"`
	MIMEType     string           `json:"mime_type"`
	SizeBytes    int64            `json:"size_bytes"`
	TotalPages   *int             `json:"total_pages,omitempty"`
	TotalChunks  int              `json:"total_chunks"`
	UploadedAt   time.Time        `json:"uploaded_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Summary      *SummaryResponse `json:"summary,omitempty"`
}

// SummaryResponse is the stored synopsis of a document.
type SummaryResponse struct {
	Synopsis    string    `json:"synopsis"`
	KeyPoints   []string  `json:"key_points,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
	Relevance   string    `json:"relevance,omitempty"`
	Language    string    `json:"language,omitempty"`
	Model       string    `json:"model,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ListDocumentsResponse wraps the document list.
type ListDocumentsResponse struct {
	Data  []DocumentResponse `json:"data"`
	Total int                `json:"total"`
}

// ChunkResponse is one chunk of a document. Embeddings are not exposed.
type ChunkResponse struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	PageNumber    *int   `json:"page_number,omitempty"`
	Text          string `json:"text"`
}

// UploadResponse reports the outcome of an upload or retry.
type UploadResponse struct {
	Document DocumentResponse `json:"document"`
	Warnings []string         `json:"warnings,omitempty"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question          string `json:"question" binding:"required"`
	IncludeGuide      bool   `json:"include_guide"`
	IncludeStudies    bool   `json:"include_studies"`
	IncludeStatistics bool   `json:"include_statistics"`
	IncludeOther      bool   `json:"include_other"`
	Language          string `json:"language"`
	TopK              int    `json:"top_k" binding:"gte=0"`
}

// Options converts the request into query options.
func (r QueryRequest) Options() domain.QueryOptions {
	return domain.QueryOptions{
		IncludeGuide:      r.IncludeGuide,
		IncludeStudies:    r.IncludeStudies,
		IncludeStatistics: r.IncludeStatistics,
		IncludeOther:      r.IncludeOther,
		Language:          r.Language,
		TopK:              r.TopK,
	}
}

// SourceResponse cites one retrieved chunk.
type SourceResponse struct {
	DocumentName string  `json:"document_name"`
	PageNumber   *int    `json:"page_number,omitempty"`
	ChunkID      string  `json:"chunk_id"`
	Score        float64 `json:"score"`
}

// QueryResponse is the answer to a query.
type QueryResponse struct {
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Sources       []SourceResponse `json:"sources"`
	Model         string           `json:"model,omitempty"`
	ContextChunks int              `json:"context_chunks"`
}

// ErrorResponse is returned with every non-2xx status. Document is set
// when an upload failed after the document was created.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Document *DocumentResponse `json:"document,omitempty"`
}

func documentResponse(doc *domain.Document) DocumentResponse {
	out := DocumentResponse{
		ID:           doc.ID,
		Name:         doc.Name,
		Type:         string(doc.Type),
		Status:       string(doc.Status),
		StatusLabel:  doc.Status.Label(),
		Language:     doc.Language,
		MIMEType:     doc.MIMEType,
		SizeBytes:    doc.SizeBytes,
		TotalPages:   doc.TotalPages,
		TotalChunks:  doc.TotalChunks,
		UploadedAt:   doc.UploadedAt,
		UpdatedAt:    doc.UpdatedAt,
		ErrorMessage: doc.ErrorMessage,
	}
	if s := doc.Summary; s != nil {
		out.Summary = &SummaryResponse{
			Synopsis:    s.Synopsis,
			KeyPoints:   s.KeyPoints,
			Topics:      s.Topics,
			Relevance:   s.Relevance,
			Language:    s.Language,
			Model:       s.Model,
			GeneratedAt: s.GeneratedAt,
		}
	}
	return out
}

func queryResponse(question string, result *domain.QueryResult) QueryResponse {
	out := QueryResponse{
		Question:      question,
		Answer:        result.Answer,
		Sources:       make([]SourceResponse, 0, len(result.Sources)),
		Model:         result.Model,
		ContextChunks: result.ContextChunks,
	}
	for _, src := range result.Sources {
		out.Sources = append(out.Sources, SourceResponse{
			DocumentName: src.DocumentName,
			PageNumber:   src.PageNumber,
			ChunkID:      src.ChunkID,
			Score:        src.Score,
		})
	}
	return out
}
