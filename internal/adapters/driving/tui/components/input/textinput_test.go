package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
)

func TestNewQuestionInput(t *testing.T) {
	s := styles.DefaultStyles()
	input := NewQuestionInput(s)

	require.NotNil(t, input)
	assert.Equal(t, "", input.Value())
	assert.True(t, input.Focused())
}

func TestNewQuestionInput_NilStyles(t *testing.T) {
	input := NewQuestionInput(nil)

	require.NotNil(t, input)
	assert.NotNil(t, input.styles)
}

func TestQuestionInput_Init(t *testing.T) {
	input := NewQuestionInput(nil)

	cmd := input.Init()

	// Blink command should be returned
	assert.NotNil(t, cmd)
}

func TestQuestionInput_Update(t *testing.T) {
	input := NewQuestionInput(nil)

	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}}
	updated, cmd := input.Update(msg)

	assert.Equal(t, input, updated)
	// textinput returns nil cmd for regular key presses
	_ = cmd
	assert.Equal(t, "a", input.Value())
}

func TestQuestionInput_View(t *testing.T) {
	input := NewQuestionInput(nil)

	view := input.View()

	assert.NotEmpty(t, view)
	assert.Contains(t, view, "Ask")
}

func TestQuestionInput_Value(t *testing.T) {
	input := NewQuestionInput(nil)

	input.SetValue("test query")

	assert.Equal(t, "test query", input.Value())
}

func TestQuestionInput_SetValue(t *testing.T) {
	input := NewQuestionInput(nil)

	input.SetValue("hello world")

	assert.Equal(t, "hello world", input.Value())
}

func TestQuestionInput_Focus(t *testing.T) {
	input := NewQuestionInput(nil)
	input.Blur()

	assert.False(t, input.Focused())

	cmd := input.Focus()

	assert.NotNil(t, cmd)
	assert.True(t, input.Focused())
}

func TestQuestionInput_Blur(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.True(t, input.Focused())

	input.Blur()

	assert.False(t, input.Focused())
}

func TestQuestionInput_Focused(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.True(t, input.Focused())

	input.Blur()
	assert.False(t, input.Focused())
}

func TestQuestionInput_SetWidth(t *testing.T) {
	input := NewQuestionInput(nil)

	input.SetWidth(100)

	assert.Equal(t, 100, input.Width())
}

func TestQuestionInput_SetWidth_Minimum(t *testing.T) {
	input := NewQuestionInput(nil)

	input.SetWidth(10) // Very small, should use minimum

	assert.Equal(t, 10, input.Width())
	// Internal textinput width should be at least 20
}

func TestQuestionInput_Width(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.Equal(t, 50, input.Width()) // Default width
}

func TestQuestionInput_Reset(t *testing.T) {
	input := NewQuestionInput(nil)
	input.SetValue("some text")

	input.Reset()

	assert.Equal(t, "", input.Value())
}

func TestQuestionInput_Update_MultipleKeys(t *testing.T) {
	input := NewQuestionInput(nil)

	keys := []rune{'h', 'e', 'l', 'l', 'o'}
	for _, k := range keys {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{k}}
		input.Update(msg)
	}

	assert.Equal(t, "hello", input.Value())
}

func TestQuestionInput_Update_Backspace(t *testing.T) {
	input := NewQuestionInput(nil)
	input.SetValue("test")

	msg := tea.KeyMsg{Type: tea.KeyBackspace}
	input.Update(msg)

	assert.Equal(t, "tes", input.Value())
}
