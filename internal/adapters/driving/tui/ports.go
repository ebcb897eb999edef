// Package tui provides an interactive terminal user interface for grantkb.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Knowledge answers questions and manages documents.
	Knowledge driving.KnowledgeService
}

// NewPorts creates a new Ports aggregate.
func NewPorts(knowledge driving.KnowledgeService) *Ports {
	return &Ports{Knowledge: knowledge}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Knowledge == nil {
		return ErrMissingKnowledgeService
	}
	return nil
}
