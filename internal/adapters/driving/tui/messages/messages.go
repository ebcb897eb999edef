// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// QueryCompleted carries a RAG answer back to the model.
type QueryCompleted struct {
	Question string
	Result   *domain.QueryResult
	Err      error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewAsk is the question input and answer view.
	ViewAsk
	// ViewDocuments lists uploaded documents.
	ViewDocuments
	// ViewDocDetails shows document metadata and summary.
	ViewDocDetails
	// ViewChunks shows a document's chunk texts.
	ViewChunks
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewAsk:
		return "ask"
	case ViewDocuments:
		return "documents"
	case ViewDocDetails:
		return "doc_details"
	case ViewChunks:
		return "chunks"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries the list of documents.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected signals a document was chosen for its chunks.
type DocumentSelected struct {
	Document domain.Document
}

// DocumentDetailsRequested signals a document was chosen for its details.
type DocumentDetailsRequested struct {
	Document domain.Document
}

// ChunksLoaded carries the chunks of a document.
type ChunksLoaded struct {
	DocumentID string
	Chunks     []domain.Chunk
	Err        error
}

// DocumentDeleted signals a document was deleted.
type DocumentDeleted struct {
	DocumentID string
	Existed    bool
	Err        error
}
