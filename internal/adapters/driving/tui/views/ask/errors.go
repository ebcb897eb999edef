package ask

import "errors"

// Error definitions for the ask view.
var (
	// ErrNoKnowledgeService indicates that no knowledge service was provided.
	ErrNoKnowledgeService = errors.New("knowledge service is required")
)
