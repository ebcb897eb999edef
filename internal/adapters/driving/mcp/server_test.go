package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil knowledge service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingKnowledgeService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Knowledge: &mockKnowledgeService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingKnowledgeService)
	assert.NoError(t, (&Ports{Knowledge: &mockKnowledgeService{}}).Validate())
}
