// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// SourceList displays the citations behind an answer in a navigable list.
type SourceList struct {
	sources  []domain.SourceCitation
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the source list.
func (l *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the source list.
func (l *SourceList) View() string {
	if len(l.sources) == 0 {
		return l.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(l.sources)+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(l.sources))), "")

	// One line per source plus the header block.
	visible := l.height - 2
	if visible < 1 {
		visible = 1
	}

	start := 0
	if l.selected >= visible {
		start = l.selected - visible + 1
	}
	end := min(start+visible, len(l.sources))

	for i := start; i < end; i++ {
		lines = append(lines, l.renderSource(i, &l.sources[i]))
	}

	return strings.Join(lines, "\n")
}

func (l *SourceList) renderSource(index int, src *domain.SourceCitation) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	label := fmt.Sprintf("[%d] %s", index+1, SourceLabel(src))

	maxLen := max(l.width-12, 10)
	if len(label) > maxLen {
		label = label[:maxLen-3] + "..."
	}

	score := fmt.Sprintf("%.2f", src.Score)
	if index == l.selected {
		return l.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxLen, label, score))
	}
	return l.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxLen, label)) +
		l.styles.Muted.Render(score)
}

// SourceLabel formats a citation as "name, p. N" or just the name.
func SourceLabel(src *domain.SourceCitation) string {
	if src.PageNumber != nil {
		return fmt.Sprintf("%s, p. %d", src.DocumentName, *src.PageNumber)
	}
	return src.DocumentName
}

// SetSources replaces the listed citations.
func (l *SourceList) SetSources(sources []domain.SourceCitation) {
	l.sources = sources
	l.selected = 0
}

// Sources returns the current citations.
func (l *SourceList) Sources() []domain.SourceCitation {
	return l.sources
}

// Selected returns the index of the selected source.
func (l *SourceList) Selected() int {
	return l.selected
}

// SetSelected sets the selected index.
func (l *SourceList) SetSelected(index int) {
	if index >= 0 && index < len(l.sources) {
		l.selected = index
	}
}

// SelectedSource returns the currently selected citation, or nil if none.
func (l *SourceList) SelectedSource() *domain.SourceCitation {
	if l.selected < 0 || l.selected >= len(l.sources) {
		return nil
	}
	return &l.sources[l.selected]
}

// MoveUp moves selection up.
func (l *SourceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SourceList) MoveDown() {
	if l.selected < len(l.sources)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SourceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of sources.
func (l *SourceList) Count() int {
	return len(l.sources)
}

// IsEmpty returns whether the list is empty.
func (l *SourceList) IsEmpty() bool {
	return len(l.sources) == 0
}
