package api

import (
	"context"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// mockKnowledgeService is a mock implementation of driving.KnowledgeService.
type mockKnowledgeService struct {
	documents []domain.Document
	chunks    map[string][]domain.Chunk
	result    *domain.QueryResult
	uploaded  *domain.Document
	warning   string
	err       error

	lastUpload  driving.UploadRequest
	lastRetryID string
	lastQuery   string
	lastOptions domain.QueryOptions
	cleared     bool
}

func (m *mockKnowledgeService) UploadDocument(
	_ context.Context, req driving.UploadRequest, onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	m.lastUpload = req
	return m.finishUpload(onProgress)
}

func (m *mockKnowledgeService) RetryDocument(
	_ context.Context, id string, req driving.UploadRequest, onProgress driving.ProgressFunc,
) (*domain.Document, error) {
	m.lastRetryID = id
	m.lastUpload = req
	return m.finishUpload(onProgress)
}

func (m *mockKnowledgeService) finishUpload(onProgress driving.ProgressFunc) (*domain.Document, error) {
	if onProgress != nil {
		onProgress(domain.ProgressEvent{Stage: domain.StatusExtracting, Percent: 5})
		if m.warning != "" {
			onProgress(domain.ProgressEvent{Stage: domain.StatusAnalyzing, Percent: 85, Warning: m.warning})
		}
	}
	return m.uploaded, m.err
}

func (m *mockKnowledgeService) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockKnowledgeService) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.documents {
		if m.documents[i].ID == id {
			doc := m.documents[i]
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeService) GetChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if _, err := m.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return m.chunks[id], nil
}

func (m *mockKnowledgeService) DeleteDocument(_ context.Context, id string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for i := range m.documents {
		if m.documents[i].ID == id {
			m.documents = append(m.documents[:i], m.documents[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockKnowledgeService) Clear(_ context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	m.documents = nil
	return nil
}

func (m *mockKnowledgeService) QueryWithRAG(
	_ context.Context, query string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	m.lastQuery = query
	m.lastOptions = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.QueryResult{}, nil
	}
	return m.result, nil
}

func testDocuments() []domain.Document {
	return []domain.Document{
		{
			ID:          "doc-1",
			Name:        "erasmus-guide.pdf",
			Type:        domain.DocumentTypeProgrammeGuide,
			Status:      domain.StatusReady,
			Language:    "en",
			MIMEType:    "application/pdf",
			TotalPages:  domain.IntPtr(320),
			TotalChunks: 2,
			Summary:     &domain.Summary{Synopsis: "Rules for Erasmus+ applications.", Topics: []string{"eligibility"}},
		},
		{
			ID:           "doc-2",
			Name:         "partners.docx",
			Type:         domain.DocumentTypePartnerInfo,
			Status:       domain.StatusError,
			ErrorMessage: "embedding service unavailable",
		},
	}
}
