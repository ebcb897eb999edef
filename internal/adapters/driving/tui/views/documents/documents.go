// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// ErrNoKnowledgeService indicates that no knowledge service was provided.
var ErrNoKnowledgeService = errors.New("knowledge service not available")

// ActionOption represents a document action.
type ActionOption int

const (
	ActionShowChunks ActionOption = iota
	ActionShowDetails
	ActionDelete
	ActionCancel
)

var actionLabels = []string{
	ActionShowChunks:  "Show Chunks",
	ActionShowDetails: "Show Details",
	ActionDelete:      "Delete",
	ActionCancel:      "Cancel",
}

// View is the documents list view.
type View struct {
	styles    *styles.Styles
	knowledge driving.KnowledgeService
	ctx       context.Context

	documents     []domain.Document
	selected      int
	width         int
	height        int
	ready         bool
	err           error
	loading       bool
	showingMenu   bool
	confirmDelete bool
	menuSelected  ActionOption
	scrollOffset  int
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, knowledge driving.KnowledgeService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		knowledge: knowledge,
		ctx:       context.Background(),
		documents: []domain.Document{},
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Load resets the view and loads documents.
func (v *View) Load() tea.Cmd {
	v.err = nil
	v.showingMenu = false
	v.confirmDelete = false
	v.loading = true
	return v.loadDocuments()
}

func (v *View) loadDocuments() tea.Cmd {
	knowledge, ctx := v.knowledge, v.ctx
	return func() tea.Msg {
		if knowledge == nil {
			return messages.DocumentsLoaded{Err: ErrNoKnowledgeService}
		}
		docs, err := knowledge.ListDocuments(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.confirmDelete:
			return v.handleConfirmKeyMsg(msg)
		case v.showingMenu:
			return v.handleMenuKeyMsg(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.documents = msg.Documents
		v.err = nil
		if v.selected >= len(v.documents) {
			v.selected = max(len(v.documents)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.loading = true
		return v, v.loadDocuments()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case "down", "j":
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case "enter":
		if len(v.documents) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionShowChunks
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "r":
		return v, v.Load()
	}

	return v, nil
}

// handleMenuKeyMsg handles key presses in action menu mode.
func (v *View) handleMenuKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.menuSelected > ActionShowChunks {
			v.menuSelected--
		}
	case "down", "j":
		if v.menuSelected < ActionCancel {
			v.menuSelected++
		}
	case "enter":
		return v.handleMenuSelect()
	case "esc":
		v.showingMenu = false
	}

	return v, nil
}

// handleMenuSelect handles selection of an action.
func (v *View) handleMenuSelect() (*View, tea.Cmd) {
	v.showingMenu = false
	doc := v.SelectedDocument()
	if doc == nil {
		return v, nil
	}
	selected := *doc

	switch v.menuSelected {
	case ActionShowChunks:
		return v, func() tea.Msg {
			return messages.DocumentSelected{Document: selected}
		}
	case ActionShowDetails:
		return v, func() tea.Msg {
			return messages.DocumentDetailsRequested{Document: selected}
		}
	case ActionDelete:
		v.confirmDelete = true
	case ActionCancel:
	}

	return v, nil
}

func (v *View) handleConfirmKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirmDelete = false
	if msg.String() != "y" {
		return v, nil
	}
	doc := v.SelectedDocument()
	if doc == nil {
		return v, nil
	}
	return v, v.deleteDocument(doc.ID)
}

func (v *View) deleteDocument(id string) tea.Cmd {
	knowledge, ctx := v.knowledge, v.ctx
	return func() tea.Msg {
		if knowledge == nil {
			return messages.DocumentDeleted{DocumentID: id, Err: ErrNoKnowledgeService}
		}
		existed, err := knowledge.DeleteDocument(ctx, id)
		return messages.DocumentDeleted{DocumentID: id, Existed: existed, Err: err}
	}
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visibleItems := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visibleItems {
		v.scrollOffset = v.selected - visibleItems + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Title, column header, help and padding.
	return max(v.height-8, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.documents))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents yet. Upload one with `grantkb upload <file>`."))
	case v.confirmDelete:
		return b.String() + v.renderConfirm()
	case v.showingMenu:
		return b.String() + v.renderActionMenu()
	default:
		b.WriteString(v.renderList())
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderList() string {
	var b strings.Builder

	visibleItems := v.visibleItemCount()
	end := min(v.scrollOffset+visibleItems, len(v.documents))
	for i := v.scrollOffset; i < end; i++ {
		b.WriteString(v.renderDocument(i, &v.documents[i]))
		b.WriteString("\n")
	}

	if len(v.documents) > visibleItems {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1, end, len(v.documents))))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderDocument renders a single document line: name, type and a status badge.
func (v *View) renderDocument(index int, doc *domain.Document) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	name := doc.Name
	if name == "" {
		name = doc.ID
	}

	maxNameLen := max(v.width/2-4, 10)
	if len(name) > maxNameLen {
		name = name[:maxNameLen-3] + "..."
	}

	kind := doc.Type.Description()
	badge := v.styles.StatusBadge(doc.Status)

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %-20s", indicator, maxNameLen, name, kind)) +
			" " + badge
	}

	return v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxNameLen, name)) +
		v.styles.Muted.Render(fmt.Sprintf("%-20s", kind)) + " " + badge
}

// renderActionMenu renders the action menu overlay.
func (v *View) renderActionMenu() string {
	var b strings.Builder

	if doc := v.SelectedDocument(); doc != nil {
		b.WriteString(v.styles.Subtitle.Render("Actions for: " + doc.Name))
		b.WriteString("\n\n")
	}

	for action, label := range actionLabels {
		if ActionOption(action) == v.menuSelected {
			b.WriteString(v.styles.Selected.Render("> " + label))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))

	return b.String()
}

func (v *View) renderConfirm() string {
	name := ""
	if doc := v.SelectedDocument(); doc != nil {
		name = doc.Name
	}
	return v.styles.Warning.Render(fmt.Sprintf("Delete %q and all of its chunks?", name)) +
		"\n\n" + v.styles.Help.Render("[y] delete  [any other key] cancel")
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] navigate  [enter] actions  [r] reload  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// IsShowingMenu returns true if the action menu is visible.
func (v *View) IsShowingMenu() bool {
	return v.showingMenu
}

// IsConfirmingDelete returns true while waiting for a delete confirmation.
func (v *View) IsConfirmingDelete() bool {
	return v.confirmDelete
}

// Loading returns true while documents are being fetched.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
