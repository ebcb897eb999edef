// Package tuitest provides a configurable KnowledgeService for view tests.
package tuitest

import (
	"context"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

var _ driving.KnowledgeService = (*MockKnowledgeService)(nil)

// MockKnowledgeService implements driving.KnowledgeService. Unset funcs
// return zero values.
type MockKnowledgeService struct {
	UploadDocumentFunc func(ctx context.Context, req driving.UploadRequest, onProgress driving.ProgressFunc) (*domain.Document, error)
	RetryDocumentFunc  func(ctx context.Context, id string, req driving.UploadRequest, onProgress driving.ProgressFunc) (*domain.Document, error)
	ListDocumentsFunc  func(ctx context.Context) ([]domain.Document, error)
	GetDocumentFunc    func(ctx context.Context, id string) (*domain.Document, error)
	GetChunksFunc      func(ctx context.Context, id string) ([]domain.Chunk, error)
	DeleteDocumentFunc func(ctx context.Context, id string) (bool, error)
	ClearFunc          func(ctx context.Context) error
	QueryWithRAGFunc   func(ctx context.Context, query string, opts domain.QueryOptions) (*domain.QueryResult, error)
}

func (m *MockKnowledgeService) UploadDocument(
	ctx context.Context,
	req driving.UploadRequest,
	onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	if m.UploadDocumentFunc != nil {
		return m.UploadDocumentFunc(ctx, req, onProgress)
	}
	return &domain.Document{Name: req.Name, Type: req.Type, Status: domain.StatusReady}, nil
}

func (m *MockKnowledgeService) RetryDocument(
	ctx context.Context,
	id string,
	req driving.UploadRequest,
	onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	if m.RetryDocumentFunc != nil {
		return m.RetryDocumentFunc(ctx, id, req, onProgress)
	}
	return &domain.Document{ID: id, Name: req.Name, Status: domain.StatusReady}, nil
}

func (m *MockKnowledgeService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	if m.ListDocumentsFunc != nil {
		return m.ListDocumentsFunc(ctx)
	}
	return nil, nil
}

func (m *MockKnowledgeService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if m.GetDocumentFunc != nil {
		return m.GetDocumentFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *MockKnowledgeService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if m.GetChunksFunc != nil {
		return m.GetChunksFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockKnowledgeService) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if m.DeleteDocumentFunc != nil {
		return m.DeleteDocumentFunc(ctx, id)
	}
	return true, nil
}

func (m *MockKnowledgeService) Clear(ctx context.Context) error {
	if m.ClearFunc != nil {
		return m.ClearFunc(ctx)
	}
	return nil
}

func (m *MockKnowledgeService) QueryWithRAG(
	ctx context.Context,
	query string,
	opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	if m.QueryWithRAGFunc != nil {
		return m.QueryWithRAGFunc(ctx, query, opts)
	}
	return &domain.QueryResult{}, nil
}

// Documents returns a small fixed document set.
func Documents() []domain.Document {
	return []domain.Document{
		{
			ID:          "doc-1",
			Name:        "erasmus-guide.pdf",
			Type:        domain.DocumentTypeProgrammeGuide,
			Status:      domain.StatusReady,
			Language:    "en",
			MIMEType:    "application/pdf",
			SizeBytes:   2048,
			TotalPages:  domain.IntPtr(320),
			TotalChunks: 2,
			Summary: &domain.Summary{
				Synopsis:  "Rules for Erasmus+ applications.",
				KeyPoints: []string{"KA2 partnerships", "Lump sum funding"},
				Topics:    []string{"eligibility", "budget"},
				Relevance: "Core reference for eligibility rules.",
				Model:     "llama3.2",
			},
		},
		{
			ID:           "doc-2",
			Name:         "partners.docx",
			Type:         domain.DocumentTypePartnerInfo,
			Status:       domain.StatusError,
			MIMEType:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			ErrorMessage: "embedding service unavailable",
		},
	}
}

// Chunks returns two chunks belonging to doc-1.
func Chunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c-1", DocumentID: "doc-1", SequenceIndex: 0, PageNumber: domain.IntPtr(1), Text: "Erasmus+ supports education."},
		{ID: "c-2", DocumentID: "doc-1", SequenceIndex: 1, Text: "Partnerships need three countries."},
	}
}
