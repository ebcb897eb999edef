// Package chunks provides the chunk browser view for the TUI.
package chunks

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

// View shows the chunk texts of one document as a scrollable page.
type View struct {
	styles    *styles.Styles
	knowledge driving.KnowledgeService
	ctx       context.Context

	document     *domain.Document
	chunks       []domain.Chunk
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
	loading      bool
}

// NewView creates a new chunks view.
func NewView(s *styles.Styles, knowledge driving.KnowledgeService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		knowledge: knowledge,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetDocument sets the document and loads its chunks.
func (v *View) SetDocument(doc domain.Document) tea.Cmd {
	v.document = &doc
	v.chunks = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true
	return v.loadChunks(doc.ID)
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

func (v *View) loadChunks(id string) tea.Cmd {
	knowledge, ctx := v.knowledge, v.ctx
	return func() tea.Msg {
		if knowledge == nil {
			return messages.ChunksLoaded{DocumentID: id, Err: ErrNoKnowledgeService}
		}
		chunks, err := knowledge.GetChunks(ctx, id)
		return messages.ChunksLoaded{DocumentID: id, Chunks: chunks, Err: err}
	}
}

// Update handles messages for the chunks view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ChunksLoaded:
		if v.document == nil || msg.DocumentID != v.document.ID {
			return v, nil
		}
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.chunks = msg.Chunks
		v.err = nil
		v.layout()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown", "ctrl+d":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDocuments}
		}
	}

	return v, nil
}

// layout wraps every chunk under a header line to fit the view width.
func (v *View) layout() {
	v.lines = nil
	width := max(v.width-4, 20)
	for i := range v.chunks {
		c := &v.chunks[i]
		if i > 0 {
			v.lines = append(v.lines, "")
		}
		v.lines = append(v.lines, ChunkHeader(c))
		v.lines = append(v.lines, styles.Wrap(c.Text, width)...)
	}
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

// ChunkHeader labels a chunk with its 1-based position and page.
func ChunkHeader(c *domain.Chunk) string {
	if c.PageNumber != nil {
		return fmt.Sprintf("--- chunk %d (page %d) ---", c.SequenceIndex+1, *c.PageNumber)
	}
	return fmt.Sprintf("--- chunk %d ---", c.SequenceIndex+1)
}

func (v *View) visibleLines() int {
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// View renders the chunks view.
func (v *View) View() string {
	var b strings.Builder

	title := "Chunks"
	if v.document != nil {
		title = fmt.Sprintf("%s - %d chunks", v.document.Name, len(v.chunks))
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(min(v.width-4, 60), 0)))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading chunks..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.lines) == 0:
		b.WriteString(v.styles.Muted.Render("(No chunks)"))
	default:
		b.WriteString(v.renderLines())
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderLines() string {
	var b strings.Builder

	visible := v.visibleLines()
	end := min(v.scrollOffset+visible, len(v.lines))
	for _, line := range v.lines[v.scrollOffset:end] {
		if strings.HasPrefix(line, "--- chunk ") {
			b.WriteString(v.styles.Subtitle.Render(line))
		} else {
			b.WriteString(v.styles.Normal.Render(line))
		}
		b.WriteString("\n")
	}

	if len(v.lines) > visible {
		percentage := 0
		if limit := v.maxScrollOffset(); limit > 0 {
			percentage = v.scrollOffset * 100 / limit
		}
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d%%] Line %d-%d of %d",
			percentage, v.scrollOffset+1, end, len(v.lines))))
	}

	return strings.TrimRight(b.String(), "\n")
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back")
}

// SetDimensions sets the view dimensions and re-wraps the text.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.layout()
}

// Document returns the current document.
func (v *View) Document() *domain.Document {
	return v.document
}

// Chunks returns the loaded chunks.
func (v *View) Chunks() []domain.Chunk {
	return v.chunks
}

// Loading returns true while chunks are being fetched.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
