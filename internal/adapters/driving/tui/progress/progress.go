// Package progress renders the live ingestion progress of a single upload.
package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

// EventMsg carries one pipeline progress event.
type EventMsg struct {
	Event domain.ProgressEvent
}

// DoneMsg is sent once the upload returns.
type DoneMsg struct {
	Document *domain.Document
	Err      error
}

// UploadFunc performs the upload, reporting through onProgress.
type UploadFunc func(ctx context.Context, onProgress driving.ProgressFunc) (*domain.Document, error)

// Model is the bubbletea model for the progress display.
type Model struct {
	styles  *styles.Styles
	name    string
	bar     progress.Model
	spinner spinner.Model
	cancel  context.CancelFunc

	stage    domain.DocumentStatus
	percent  int
	label    string
	warnings []string

	done      bool
	cancelled bool
	document  *domain.Document
	err       error
}

// NewModel creates a progress model for the named upload. cancel is called
// when the user interrupts.
func NewModel(s *styles.Styles, name string, cancel context.CancelFunc) *Model {
	if s == nil {
		s = styles.DefaultStyles()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	return &Model{
		styles:  s,
		name:    name,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: sp,
		cancel:  cancel,
		stage:   domain.StatusUploading,
		label:   domain.StatusUploading.Label(),
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		ev := msg.Event
		if ev.Warning != "" {
			m.warnings = append(m.warnings, ev.Warning)
		}
		if ev.Stage != "" {
			m.stage = ev.Stage
		}
		// Percent never moves backwards within one upload.
		m.percent = max(m.percent, min(ev.Percent, 100))
		if ev.Label != "" {
			m.label = ev.Label
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.document = msg.Document
		m.err = msg.Err
		if msg.Err == nil {
			m.percent = 100
			m.stage = domain.StatusReady
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-10, 60), 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Uploading " + m.name))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(m.styles.Error.Render("✗ " + m.err.Error()))
	case m.done:
		b.WriteString(m.styles.Success.Render("✓ " + m.summary()))
	case m.cancelled:
		b.WriteString(m.styles.Warning.Render("Cancelled"))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.styles.StatusBadge(m.stage))
		b.WriteString(" ")
		b.WriteString(m.styles.Normal.Render(m.label))
	}
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n")

	for _, w := range m.warnings {
		b.WriteString(m.styles.Warning.Render("! " + w))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) summary() string {
	if m.document == nil {
		return "Ready"
	}
	return fmt.Sprintf("Ready: %d chunks (id %s)", m.document.TotalChunks, m.document.ID)
}

// Percent returns the last reported completion percentage.
func (m *Model) Percent() int {
	return m.percent
}

// Stage returns the current pipeline stage.
func (m *Model) Stage() domain.DocumentStatus {
	return m.stage
}

// Warnings returns the non-fatal warnings seen so far.
func (m *Model) Warnings() []string {
	return m.warnings
}

// Done returns whether the upload finished.
func (m *Model) Done() bool {
	return m.done
}

// Cancelled returns whether the user interrupted the upload.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

// Run drives upload under a progress display and returns its result.
func Run(ctx context.Context, name string, upload UploadFunc, opts ...tea.ProgramOption) (*domain.Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(nil, name, cancel)
	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	type result struct {
		doc *domain.Document
		err error
	}
	results := make(chan result, 1)
	go func() {
		doc, err := upload(ctx, func(ev domain.ProgressEvent) {
			p.Send(EventMsg{Event: ev})
		})
		results <- result{doc: doc, err: err}
		p.Send(DoneMsg{Document: doc, Err: err})
	}()

	_, runErr := p.Run()
	// The upload honours ctx, so it returns soon after an interrupt.
	res := <-results
	if res.err != nil {
		return res.doc, res.err
	}
	if runErr != nil && !model.Done() {
		return res.doc, fmt.Errorf("progress display: %w", runErr)
	}
	return res.doc, nil
}
