package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTUICmd_Exists(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "tui" {
			found = true
			break
		}
	}
	assert.True(t, found, "tui command should be registered")
}

func TestTUICmd_ShortDescription(t *testing.T) {
	assert.Equal(t, "Launch the interactive terminal UI", tuiCmd.Short)
}

func TestTUICmd_LongDescription(t *testing.T) {
	assert.Contains(t, tuiCmd.Long, "Controls:")
	assert.Contains(t, tuiCmd.Long, "g/s/t/o")
}

func TestTUICmd_ScopeFlags(t *testing.T) {
	for _, name := range []string{"guide", "studies", "statistics", "other", "lang"} {
		assert.NotNil(t, tuiCmd.Flags().Lookup(name), name)
	}
}

func TestTUICmd_RejectsArgs(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, _, err := execute(t, "", "tui", "extra")

	assert.ErrorContains(t, err, "unknown command")
}

func TestTUICmd_WithoutService(t *testing.T) {
	cleanup := setupServices(nil, nil)
	defer cleanup()

	_, _, err := execute(t, "", "tui")

	assert.ErrorContains(t, err, "knowledge service not configured")
}
