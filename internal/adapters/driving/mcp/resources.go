package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for grantkb resources.
	uriScheme = "grantkb://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "All uploaded documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document",
		Description: "Metadata and summary of a document",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/chunks",
		Name:        "document-chunks",
		Description: "Chunk texts of a document in order",
		MIMEType:    "text/plain",
	}, s.handleChunksResource)
}

// handleDocumentsResource returns every stored document.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Knowledge.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]DocumentOutput, len(docs))
	for i := range docs {
		infos[i] = documentOutput(&docs[i])
	}

	return jsonResource(req.Params.URI, infos)
}

// handleDocumentResource returns one document's metadata.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Knowledge.GetDocument(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return jsonResource(req.Params.URI, documentOutput(doc))
}

// handleChunksResource returns the chunk texts of a document.
func (s *Server) handleChunksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docID := extractChunksDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chunks, err := s.ports.Knowledge.GetChunks(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting chunks: %w", err)
	}

	var b strings.Builder
	for i := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- chunk %d", chunks[i].SequenceIndex)
		if chunks[i].PageNumber != nil {
			fmt.Fprintf(&b, " (page %d)", *chunks[i].PageNumber)
		}
		b.WriteString(" ---\n")
		b.WriteString(chunks[i].Text)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     b.String(),
		}},
	}, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like grantkb://documents/{documentId}.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// extractChunksDocumentID extracts the document ID from a URI like
// grantkb://documents/{documentId}/chunks.
func extractChunksDocumentID(uri string) string {
	const prefix = uriScheme + "documents/"
	const suffix = "/chunks"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}

	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
