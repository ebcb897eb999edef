// Package docdetails provides the document details view component for the TUI.
package docdetails

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// View shows a document's metadata and its summary.
type View struct {
	styles *styles.Styles

	document     *domain.Document
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
}

// NewView creates a new document details view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		width:  80,
		height: 24,
	}
}

// SetDocument sets the document to display.
func (v *View) SetDocument(doc domain.Document) {
	v.document = &doc
	v.scrollOffset = 0
	v.err = nil
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the document details view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

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
	case "c":
		if v.document == nil {
			return v, nil
		}
		doc := *v.document
		return v, func() tea.Msg {
			return messages.DocumentSelected{Document: doc}
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDocuments}
		}
	}

	return v, nil
}

// visibleLines returns the number of lines that can be displayed.
func (v *View) visibleLines() int {
	return max(v.height-6, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.buildContent())-v.visibleLines(), 0)
}

// buildContent lays out the metadata fields followed by the summary.
func (v *View) buildContent() []string {
	doc := v.document
	if doc == nil {
		return nil
	}

	lines := []string{
		formatField("ID", doc.ID),
		formatField("Name", doc.Name),
		formatField("Type", doc.Type.Description()),
		formatField("Status", doc.Status.Label()),
	}
	if doc.Language != "" {
		lines = append(lines, formatField("Language", doc.Language))
	}
	if doc.MIMEType != "" {
		lines = append(lines, formatField("Format", doc.MIMEType))
	}
	if doc.SizeBytes > 0 {
		lines = append(lines, formatField("Size", formatSize(doc.SizeBytes)))
	}
	if doc.TotalPages != nil {
		lines = append(lines, formatField("Pages", fmt.Sprintf("%d", *doc.TotalPages)))
	}
	lines = append(lines, formatField("Chunks", fmt.Sprintf("%d", doc.TotalChunks)))
	if !doc.UploadedAt.IsZero() {
		lines = append(lines, formatField("Uploaded", doc.UploadedAt.Format(timeLayout)))
	}
	if !doc.UpdatedAt.IsZero() {
		lines = append(lines, formatField("Updated", doc.UpdatedAt.Format(timeLayout)))
	}
	if doc.ErrorMessage != "" {
		lines = append(lines, formatField("Error", doc.ErrorMessage))
	}

	if doc.Summary == nil {
		return lines
	}

	width := max(v.width-6, 20)
	sum := doc.Summary
	lines = append(lines, "", "Summary:")
	for _, l := range styles.Wrap(sum.Synopsis, width) {
		lines = append(lines, "  "+l)
	}
	if len(sum.KeyPoints) > 0 {
		lines = append(lines, "", "Key points:")
		for _, p := range sum.KeyPoints {
			lines = append(lines, "  - "+p)
		}
	}
	if len(sum.Topics) > 0 {
		lines = append(lines, "", formatField("Topics", strings.Join(sum.Topics, ", ")))
	}
	if sum.Relevance != "" {
		lines = append(lines, "", "Relevance:")
		for _, l := range styles.Wrap(sum.Relevance, width) {
			lines = append(lines, "  "+l)
		}
	}
	if sum.Model != "" {
		lines = append(lines, "", formatField("Model", sum.Model))
	}

	return lines
}

func formatField(label, value string) string {
	return fmt.Sprintf("%-12s %s", label+":", value)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

// View renders the document details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Document Details"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(min(v.width-4, 60), 0)))
	b.WriteString("\n\n")

	switch {
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case v.document == nil:
		b.WriteString(v.styles.Muted.Render("No document selected"))
	default:
		b.WriteString(v.renderContent())
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderContent() string {
	var b strings.Builder

	lines := v.buildContent()
	visible := v.visibleLines()
	end := min(v.scrollOffset+visible, len(lines))
	for _, line := range lines[v.scrollOffset:end] {
		switch {
		case strings.HasSuffix(line, ":") && !strings.HasPrefix(line, " "):
			b.WriteString(v.styles.Subtitle.Render(line))
		case strings.HasPrefix(line, " "):
			b.WriteString(v.styles.Normal.Render(line))
		case strings.Contains(line, ":"):
			label, value, _ := strings.Cut(line, ":")
			if label == "Status" && v.document != nil {
				value = " " + v.styles.StatusBadge(v.document.Status) + v.styles.Muted.Render(value)
			} else {
				value = v.styles.Normal.Render(value)
			}
			b.WriteString(v.styles.Subtitle.Render(label + ":"))
			b.WriteString(value)
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	if len(lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]",
			v.scrollOffset+1, end, len(lines))))
	}

	return strings.TrimRight(b.String(), "\n")
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] scroll  [c] chunks  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Document returns the displayed document.
func (v *View) Document() *domain.Document {
	return v.document
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
