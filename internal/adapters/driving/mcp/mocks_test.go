package mcp

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
	err       error

	lastQuery   string
	lastOptions domain.QueryOptions
}

func (m *mockKnowledgeService) UploadDocument(
	_ context.Context, _ driving.UploadRequest, _ driving.ProgressFunc,
) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockKnowledgeService) RetryDocument(
	_ context.Context, _ string, _ driving.UploadRequest, _ driving.ProgressFunc,
) (*domain.Document, error) {
	return nil, m.err
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

func (m *mockKnowledgeService) DeleteDocument(_ context.Context, _ string) (bool, error) {
	return false, m.err
}

func (m *mockKnowledgeService) Clear(_ context.Context) error {
	return m.err
}

func (m *mockKnowledgeService) QueryWithRAG(
	_ context.Context, query string, opts domain.QueryOptions,
) (*domain.QueryResult, error) {
	m.lastQuery = query
	m.lastOptions = opts
	return m.result, m.err
}

func sampleKnowledge() *mockKnowledgeService {
	return &mockKnowledgeService{
		documents: []domain.Document{
			{
				ID:          "doc-1",
				Name:        "partners.pdf",
				Type:        domain.DocumentTypePartnerInfo,
				Status:      domain.StatusReady,
				Language:    "en",
				TotalPages:  domain.IntPtr(2),
				TotalChunks: 2,
				Summary:     &domain.Summary{Synopsis: "Consortium profiles", Topics: []string{"partners"}},
			},
			{
				ID:           "doc-2",
				Name:         "guide.pdf",
				Type:         domain.DocumentTypeProgrammeGuide,
				Status:       domain.StatusError,
				ErrorMessage: "extraction failed",
			},
		},
		chunks: map[string][]domain.Chunk{
			"doc-1": {
				{ID: "c-1", DocumentID: "doc-1", SequenceIndex: 0, PageNumber: domain.IntPtr(1), Text: "Partner A coordinates."},
				{ID: "c-2", DocumentID: "doc-1", SequenceIndex: 1, Text: "Partner B hosts training."},
			},
		},
	}
}
