// Package menu provides the main navigation menu view for the TUI.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
)

// Item represents a single menu option.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool // If true, selecting this item quits the app
}

// View represents the main menu view.
type View struct {
	styles   *styles.Styles
	items    []Item
	selected int
	docCount int
	width    int
	height   int
	ready    bool
}

// NewView creates a new menu view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		items: []Item{
			{Label: "Ask", Hint: "question the knowledge base", View: messages.ViewAsk},
			{Label: "Documents", Hint: "browse uploaded documents", View: messages.ViewDocuments},
			{Label: "Help", Hint: "keyboard shortcuts", View: messages.ViewHelp},
			{Label: "Quit", Quit: true},
		},
		docCount: -1,
		width:    80,
		height:   24,
	}
}

// Init initialises the menu view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.DocumentsLoaded:
		if msg.Err == nil {
			v.docCount = len(msg.Documents)
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case "enter":
			item := v.items[v.selected]
			if item.Quit {
				return v, tea.Quit
			}
			return v, func() tea.Msg {
				return messages.ViewChanged{View: item.View}
			}
		case "q":
			return v, tea.Quit
		}
	}

	return v, nil
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("grantkb"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Muted.Render(v.subtitle()))
	b.WriteString("\n\n")

	for i, item := range v.items {
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + item.Label))
			if item.Hint != "" {
				b.WriteString(v.styles.Muted.Render("  " + item.Hint))
			}
		} else {
			b.WriteString(v.styles.Normal.Render("  " + item.Label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Select  [q] Quit"))

	return b.String()
}

func (v *View) subtitle() string {
	switch v.docCount {
	case -1:
		return "Grant writing knowledge base"
	case 1:
		return "Grant writing knowledge base - 1 document"
	default:
		return fmt.Sprintf("Grant writing knowledge base - %d documents", v.docCount)
	}
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}

// Items returns the menu entries.
func (v *View) Items() []Item {
	return v.items
}
