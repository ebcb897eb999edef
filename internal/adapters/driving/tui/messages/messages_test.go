package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewType_String(t *testing.T) {
	tests := []struct {
		view     ViewType
		expected string
	}{
		{ViewMenu, "menu"},
		{ViewAsk, "ask"},
		{ViewDocuments, "documents"},
		{ViewDocDetails, "doc_details"},
		{ViewChunks, "chunks"},
		{ViewHelp, "help"},
		{ViewType(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.view.String())
		})
	}
}

func TestViewType_Distinct(t *testing.T) {
	views := []ViewType{ViewMenu, ViewAsk, ViewDocuments, ViewDocDetails, ViewChunks, ViewHelp}

	seen := make(map[ViewType]bool)
	for _, v := range views {
		assert.False(t, seen[v], "duplicate view: %s", v)
		seen[v] = true
	}
}
