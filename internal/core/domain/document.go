package domain

import (
	"strings"
	"time"
)

// DocumentType classifies an uploaded document by its role in grant writing.
type DocumentType string

// Available document types.
const (
	DocumentTypeProgrammeGuide  DocumentType = "programme_guide"
	DocumentTypeStudy           DocumentType = "study"
	DocumentTypeStatistics      DocumentType = "statistics"
	DocumentTypePartnerInfo     DocumentType = "partner_info"
	DocumentTypePreviousProject DocumentType = "previous_project"
	DocumentTypeReference       DocumentType = "reference"
	DocumentTypeOther           DocumentType = "other"
)

// AllDocumentTypes returns every document type in display order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeProgrammeGuide,
		DocumentTypeStudy,
		DocumentTypeStatistics,
		DocumentTypePartnerInfo,
		DocumentTypePreviousProject,
		DocumentTypeReference,
		DocumentTypeOther,
	}
}

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeProgrammeGuide, DocumentTypeStudy, DocumentTypeStatistics,
		DocumentTypePartnerInfo, DocumentTypePreviousProject, DocumentTypeReference,
		DocumentTypeOther:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// Description returns a human-readable label for the type.
func (t DocumentType) Description() string {
	switch t {
	case DocumentTypeProgrammeGuide:
		return "Programme guide"
	case DocumentTypeStudy:
		return "Study"
	case DocumentTypeStatistics:
		return "Statistics"
	case DocumentTypePartnerInfo:
		return "Partner information"
	case DocumentTypePreviousProject:
		return "Previous project"
	case DocumentTypeReference:
		return "Reference"
	case DocumentTypeOther:
		return "Other"
	default:
		return unknownDescription
	}
}

// ParseDocumentType parses a user supplied type name.
// Hyphens and case are ignored so "Programme-Guide" works as well.
func ParseDocumentType(s string) (DocumentType, bool) {
	t := DocumentType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return t, t.IsValid()
}

// DocumentStatus is a stage in the ingestion state machine.
//
//	uploading -> extracting -> chunking -> embedding -> analyzing -> ready
//
// error is reachable from any non-terminal stage.
type DocumentStatus string

// Ingestion stages.
const (
	StatusUploading  DocumentStatus = "uploading"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusAnalyzing  DocumentStatus = "analyzing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// rank orders the forward stages. error has no rank.
func (s DocumentStatus) rank() int {
	switch s {
	case StatusUploading:
		return 1
	case StatusExtracting:
		return 2
	case StatusChunking:
		return 3
	case StatusEmbedding:
		return 4
	case StatusAnalyzing:
		return 5
	case StatusReady:
		return 6
	default:
		return 0
	}
}

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	return s == StatusError || s.rank() > 0
}

// IsTerminal returns true for ready and error.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

// CanTransitionTo reports whether moving from s to next keeps the state
// machine monotonic. Forward moves may skip stages. error is reachable from
// any non-terminal stage and only leaves via a retry back to uploading.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	switch s {
	case StatusReady:
		return false
	case StatusError:
		return next == StatusUploading
	}
	if next == StatusError {
		return true
	}
	return next.rank() > s.rank()
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Label returns the progress label shown while a document is in this stage.
func (s DocumentStatus) Label() string {
	switch s {
	case StatusUploading:
		return "Uploading"
	case StatusExtracting:
		return "Extracting text"
	case StatusChunking:
		return "Splitting into chunks"
	case StatusEmbedding:
		return "Generating embeddings"
	case StatusAnalyzing:
		return "Summarising"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Failed"
	default:
		return unknownDescription
	}
}

// Document is an uploaded reference document. It owns its chunks.
type Document struct {
	// ID is the opaque identifier generated on upload.
	ID string

	// Name is the display name, usually the original filename.
	Name string

	// Type classifies the document.
	Type DocumentType

	// Status is the current ingestion stage.
	Status DocumentStatus

	// Language is the ISO 639-1 code declared at upload. Empty when unknown.
	Language string

	// MIMEType is the declared content type of the uploaded bytes.
	MIMEType string

	// SizeBytes is the size of the uploaded file.
	SizeBytes int64

	// UploadedAt is when the document was created.
	UploadedAt time.Time

	// UpdatedAt is when the document last changed.
	UpdatedAt time.Time

	// TotalPages is set for paginated sources.
	TotalPages *int

	// TotalChunks always equals the number of chunks owned by the document.
	TotalChunks int

	// Summary is display metadata. It is never used for retrieval.
	Summary *Summary

	// ErrorMessage is set only when Status is StatusError.
	ErrorMessage string
}

// DocumentSpec holds the caller supplied fields for a new document.
type DocumentSpec struct {
	Name      string
	Type      DocumentType
	Language  string
	MIMEType  string
	SizeBytes int64
}

// Chunk is a bounded slice of a document's text plus its embedding.
type Chunk struct {
	// ID is the opaque chunk identifier.
	ID string

	// DocumentID is a lookup key for the owning document.
	DocumentID string

	// SequenceIndex is the 0-based position within the document.
	SequenceIndex int

	// PageNumber is the 1-based page containing the chunk start, if known.
	PageNumber *int

	// Text is the raw chunk text.
	Text string

	// Embedding has the store-wide dimension.
	Embedding []float32
}

// ChunkInput is a chunk before the store assigns its identity.
type ChunkInput struct {
	Text       string
	PageNumber *int
	Embedding  []float32
}

// Summary is a short structured synopsis of a document.
type Summary struct {
	Synopsis    string
	KeyPoints   []string
	Topics      []string
	Relevance   string
	Language    string
	Model       string
	GeneratedAt time.Time
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// ExtractedText is the output of a text extractor.
type ExtractedText struct {
	// Text is the plain text of the document.
	Text string

	// Title is a title found in the document itself, if any.
	Title string

	// PageCount is zero for non-paginated sources.
	PageCount int

	// PageStarts holds the rune offset at which each page begins.
	PageStarts []int
}
