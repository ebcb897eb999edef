package mcp

import (
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server needs.
type Ports struct {
	// Knowledge answers queries and exposes stored documents.
	Knowledge driving.KnowledgeService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Knowledge == nil {
		return ErrMissingKnowledgeService
	}
	return nil
}
