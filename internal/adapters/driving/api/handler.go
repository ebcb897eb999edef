package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/logger"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// multipartOverhead is the room left for form fields and part headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

// DocumentHandler serves the document and query endpoints.
type DocumentHandler struct {
	knowledge driving.KnowledgeService
	maxUpload int64
}

// NewDocumentHandler creates a handler. maxUpload caps the size of an
// uploaded file in bytes.
func NewDocumentHandler(knowledge driving.KnowledgeService, maxUpload int64) *DocumentHandler {
	return &DocumentHandler{knowledge: knowledge, maxUpload: maxUpload}
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.knowledge.ListDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err, nil)
		return
	}

	resp := ListDocumentsResponse{Data: make([]DocumentResponse, 0, len(docs)), Total: len(docs)}
	for i := range docs {
		resp.Data = append(resp.Data, documentResponse(&docs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.knowledge.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, documentResponse(doc))
}

// Chunks handles GET /documents/:id/chunks.
func (h *DocumentHandler) Chunks(c *gin.Context) {
	chunks, err := h.knowledge.GetChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}

	resp := make([]ChunkResponse, 0, len(chunks))
	for i := range chunks {
		resp = append(resp, ChunkResponse{
			ID:            chunks[i].ID,
			SequenceIndex: chunks[i].SequenceIndex,
			PageNumber:    chunks[i].PageNumber,
			Text:          chunks[i].Text,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Upload handles POST /documents. The multipart form carries the file in
// "file" plus optional "type", "language" and "name" fields. The response
// is sent once ingestion has finished.
func (h *DocumentHandler) Upload(c *gin.Context) {
	req, ok := h.uploadRequest(c)
	if !ok {
		return
	}
	if req.Type == "" {
		req.Type = domain.DocumentTypeOther
	}

	var warnings []string
	doc, err := h.knowledge.UploadDocument(c.Request.Context(), req, func(ev domain.ProgressEvent) {
		if ev.Warning != "" {
			warnings = append(warnings, ev.Warning)
		}
	})
	if err != nil {
		writeError(c, err, doc)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{Document: documentResponse(doc), Warnings: warnings})
}

// Retry handles POST /documents/:id/retry with the same form as Upload.
// Type and language default to the stored document's.
func (h *DocumentHandler) Retry(c *gin.Context) {
	req, ok := h.uploadRequest(c)
	if !ok {
		return
	}

	var warnings []string
	doc, err := h.knowledge.RetryDocument(c.Request.Context(), c.Param("id"), req, func(ev domain.ProgressEvent) {
		if ev.Warning != "" {
			warnings = append(warnings, ev.Warning)
		}
	})
	if err != nil {
		writeError(c, err, doc)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{Document: documentResponse(doc), Warnings: warnings})
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	deleted, err := h.knowledge.DeleteDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if !deleted {
		writeError(c, domain.ErrNotFound, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /documents.
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.knowledge.Clear(c.Request.Context()); err != nil {
		writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Query handles POST /query.
func (h *DocumentHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.knowledge.QueryWithRAG(c.Request.Context(), req.Question, req.Options())
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, queryResponse(req.Question, result))
}

// uploadRequest reads the multipart form. It writes the error response
// itself and reports false on failure.
func (h *DocumentHandler) uploadRequest(c *gin.Context) (driving.UploadRequest, bool) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("file exceeds %d bytes", h.maxUpload),
			})
			return driving.UploadRequest{}, false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing file field"})
		return driving.UploadRequest{}, false
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("file exceeds %d bytes", h.maxUpload),
		})
		return driving.UploadRequest{}, false
	}

	var docType domain.DocumentType
	if raw := c.PostForm("type"); raw != "" {
		t, ok := domain.ParseDocumentType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown document type %q", raw)})
			return driving.UploadRequest{}, false
		}
		docType = t
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to open file"})
		return driving.UploadRequest{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read file"})
		return driving.UploadRequest{}, false
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Filename
	}

	// Extension beats the client's Content-Type, which browsers often
	// send as application/octet-stream.
	mimeType := normalisers.DetectMIME(file.Filename, data)
	if !normalisers.IsSupportedExtension(file.Filename) {
		if ct := file.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
			mimeType = normalisers.NormaliseMIME(ct)
		}
	}

	return driving.UploadRequest{
		Name:     name,
		MIMEType: mimeType,
		Type:     docType,
		Language: c.PostForm("language"),
		Data:     data,
	}, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrLLMUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrLLM):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDocumentDeleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error, doc *domain.Document) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	resp := ErrorResponse{Error: err.Error()}
	if doc != nil {
		d := documentResponse(doc)
		resp.Document = &d
	}
	c.JSON(status, resp)
}
