package domain

// DefaultTopK is the number of chunks placed in a RAG prompt by default.
const DefaultTopK = 6

// QueryOptions control which documents a RAG query draws on.
// Partner information, previous projects and references are always
// searched; the remaining types are opt-in.
type QueryOptions struct {
	IncludeGuide      bool
	IncludeStudies    bool
	IncludeStatistics bool
	IncludeOther      bool

	// Language is the ISO 639-1 code the answer is written in.
	// It also restricts retrieval to documents in that language or with
	// no declared language.
	Language string

	// TopK overrides DefaultTopK when positive.
	TopK int
}

// Filter builds the retrieval filter for these options.
func (o QueryOptions) Filter() *RetrievalFilter {
	types := []DocumentType{
		DocumentTypePartnerInfo,
		DocumentTypePreviousProject,
		DocumentTypeReference,
	}
	if o.IncludeGuide {
		types = append(types, DocumentTypeProgrammeGuide)
	}
	if o.IncludeStudies {
		types = append(types, DocumentTypeStudy)
	}
	if o.IncludeStatistics {
		types = append(types, DocumentTypeStatistics)
	}
	if o.IncludeOther {
		types = append(types, DocumentTypeOther)
	}
	return &RetrievalFilter{Types: types, Language: o.Language}
}

// RetrievalFilter restricts which chunks the retriever scores.
// A nil filter or empty field means no restriction.
type RetrievalFilter struct {
	Types    []DocumentType
	Language string
}

// Matches reports whether a document passes the filter.
func (f *RetrievalFilter) Matches(doc *Document) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == doc.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Language != "" && doc.Language != "" && doc.Language != f.Language {
		return false
	}
	return true
}

// ScoredChunk is a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk        Chunk
	DocumentName string
	Score        float64
}

// SourceCitation maps part of an answer back to a document page.
type SourceCitation struct {
	DocumentName string
	PageNumber   *int
	ChunkID      string
	Score        float64
}

// QueryResult is the answer to a RAG query.
type QueryResult struct {
	Answer  string
	Sources []SourceCitation

	// Model is the completion model that produced the answer.
	Model string

	// ContextChunks is how many chunks were placed in the prompt.
	ContextChunks int
}

// ProgressEvent is one step reported by the ingestion pipeline.
type ProgressEvent struct {
	DocumentID string
	Stage      DocumentStatus
	Percent    int
	Label      string

	// Warning is set for non-fatal problems, e.g. a failed summary.
	Warning string
}
