package tui

import "errors"

// ErrMissingKnowledgeService is returned when the knowledge service is not provided.
var ErrMissingKnowledgeService = errors.New("tui: knowledge service is required")
