package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/tuitest"
)

func TestPorts_Validate(t *testing.T) {
	assert.NoError(t, NewPorts(&tuitest.MockKnowledgeService{}).Validate())
	assert.ErrorIs(t, NewPorts(nil).Validate(), ErrMissingKnowledgeService)

	var p *Ports
	assert.ErrorIs(t, p.Validate(), ErrMissingKnowledgeService)
}
