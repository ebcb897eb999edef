package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// QueryInput is the input schema for the query_knowledge tool.
type QueryInput struct {
	Question          string `json:"question" jsonschema:"the question to answer from the uploaded documents"`
	IncludeGuide      bool   `json:"include_guide,omitempty" jsonschema:"also search programme guides"`
	IncludeStudies    bool   `json:"include_studies,omitempty" jsonschema:"also search studies"`
	IncludeStatistics bool   `json:"include_statistics,omitempty" jsonschema:"also search statistics"`
	IncludeOther      bool   `json:"include_other,omitempty" jsonschema:"also search documents typed other"`
	Language          string `json:"language,omitempty" jsonschema:"ISO 639-1 code of the answer language"`
	TopK              int    `json:"top_k,omitempty" jsonschema:"number of chunks placed in the prompt (default 6)"`
}

// QueryOutput is the output schema for the query_knowledge tool.
type QueryOutput struct {
	Answer  string         `json:"answer"`
	Model   string         `json:"model,omitempty"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one citation of a query answer.
type SourceOutput struct {
	DocumentName string  `json:"document_name"`
	PageNumber   *int    `json:"page_number,omitempty"`
	ChunkID      string  `json:"chunk_id"`
	Score        float64 `json:"score"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Type   string `json:"type,omitempty" jsonschema:"only documents of this type, e.g. partner_info"`
	Status string `json:"status,omitempty" jsonschema:"only documents in this status, e.g. ready"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput describes a stored document.
type DocumentOutput struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Language     string         `json:"language,omitempty"`
	TotalPages   *int           `json:"total_pages,omitempty"`
	TotalChunks  int            `json:"total_chunks"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Summary      *SummaryOutput `json:"summary,omitempty"`
}

// SummaryOutput is the stored synopsis of a document.
type SummaryOutput struct {
	Synopsis  string   `json:"synopsis"`
	KeyPoints []string `json:"key_points,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Relevance string   `json:"relevance,omitempty"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	ID            string `json:"id" jsonschema:"the document id"`
	IncludeChunks bool   `json:"include_chunks,omitempty" jsonschema:"also return the chunk texts"`
}

// GetDocumentOutput is the output schema for the get_document tool.
type GetDocumentOutput struct {
	Document DocumentOutput `json:"document"`
	Chunks   []ChunkOutput  `json:"chunks,omitempty"`
}

// ChunkOutput is one chunk of a document.
type ChunkOutput struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	PageNumber    *int   `json:"page_number,omitempty"`
	Text          string `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "query_knowledge",
		Description: "Answer a question from the uploaded grant documents. Partner information, " +
			"previous projects and references are always searched; other types are opt-in.",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents with their type and ingestion status",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Show one document, its summary and optionally its chunks",
	}, s.handleGetDocument)
}

// handleQuery handles the query_knowledge tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts := domain.QueryOptions{
		IncludeGuide:      input.IncludeGuide,
		IncludeStudies:    input.IncludeStudies,
		IncludeStatistics: input.IncludeStatistics,
		IncludeOther:      input.IncludeOther,
		Language:          input.Language,
		TopK:              input.TopK,
	}

	result, err := s.ports.Knowledge.QueryWithRAG(ctx, input.Question, opts)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Answer:  result.Answer,
		Model:   result.Model,
		Sources: make([]SourceOutput, len(result.Sources)),
	}
	for i, src := range result.Sources {
		output.Sources[i] = SourceOutput{
			DocumentName: src.DocumentName,
			PageNumber:   src.PageNumber,
			ChunkID:      src.ChunkID,
			Score:        src.Score,
		}
	}

	return nil, output, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	if input.Type != "" {
		if _, ok := domain.ParseDocumentType(input.Type); !ok {
			return nil, ListDocumentsOutput{}, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, input.Type)
		}
	}

	docs, err := s.ports.Knowledge.ListDocuments(ctx)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for i := range docs {
		if input.Type != "" && string(docs[i].Type) != input.Type {
			continue
		}
		if input.Status != "" && string(docs[i].Status) != input.Status {
			continue
		}
		output.Documents = append(output.Documents, documentOutput(&docs[i]))
	}
	output.Count = len(output.Documents)

	return nil, output, nil
}

// handleGetDocument handles the get_document tool invocation.
func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, GetDocumentOutput, error) {
	doc, err := s.ports.Knowledge.GetDocument(ctx, input.ID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}

	output := GetDocumentOutput{Document: documentOutput(doc)}
	if !input.IncludeChunks {
		return nil, output, nil
	}

	chunks, err := s.ports.Knowledge.GetChunks(ctx, input.ID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}
	output.Chunks = make([]ChunkOutput, len(chunks))
	for i := range chunks {
		output.Chunks[i] = ChunkOutput{
			ID:            chunks[i].ID,
			SequenceIndex: chunks[i].SequenceIndex,
			PageNumber:    chunks[i].PageNumber,
			Text:          chunks[i].Text,
		}
	}

	return nil, output, nil
}

func documentOutput(doc *domain.Document) DocumentOutput {
	out := DocumentOutput{
		ID:           doc.ID,
		Name:         doc.Name,
		Type:         string(doc.Type),
		Status:       string(doc.Status),
		Language:     doc.Language,
		TotalPages:   doc.TotalPages,
		TotalChunks:  doc.TotalChunks,
		UploadedAt:   doc.UploadedAt,
		ErrorMessage: doc.ErrorMessage,
	}
	if doc.Summary != nil {
		out.Summary = &SummaryOutput{
			Synopsis:  doc.Summary.Synopsis,
			KeyPoints: doc.Summary.KeyPoints,
			Topics:    doc.Summary.Topics,
			Relevance: doc.Summary.Relevance,
		}
	}
	return out
}
