// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Help shows the help view.
	Help key.Binding

	// Back returns to the previous view.
	Back key.Binding

	// Ask submits a question.
	Ask key.Binding

	// Up navigates up in a list.
	Up key.Binding

	// Down navigates down in a list.
	Down key.Binding

	// Select confirms a selection.
	Select key.Binding

	// Cancel cancels the current operation.
	Cancel key.Binding

	// NewQuestion starts a new question from the answer view.
	NewQuestion key.Binding

	// Actions opens the action menu on a document.
	Actions key.Binding

	// Reload refreshes a list.
	Reload key.Binding

	// ToggleGuide, ToggleStudies, ToggleStatistics and ToggleOther switch
	// the opt-in document types of the next question.
	ToggleGuide      key.Binding
	ToggleStudies    key.Binding
	ToggleStatistics key.Binding
	ToggleOther      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Ask: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		NewQuestion: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new question"),
		),
		Actions: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "actions"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		ToggleGuide: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "guide"),
		),
		ToggleStudies: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "studies"),
		),
		ToggleStatistics: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "statistics"),
		),
		ToggleOther: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "other"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// AnswerHelp returns keybindings for the answer view.
func (k *KeyMap) AnswerHelp() []key.Binding {
	return []key.Binding{k.NewQuestion, k.Up, k.Back}
}

// ScopeHelp returns the bindings that widen a question's scope.
func (k *KeyMap) ScopeHelp() []key.Binding {
	return []key.Binding{k.ToggleGuide, k.ToggleStudies, k.ToggleStatistics, k.ToggleOther}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Ask, k.Back, k.Cancel},
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
