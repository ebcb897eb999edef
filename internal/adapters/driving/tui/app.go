package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/views/chunks"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/views/docdetails"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles

	menuView       *menu.View
	askView        *ask.View
	documentsView  *documents.View
	docDetailsView *docdetails.View
	chunksView     *chunks.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()

	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		menuView:       menu.NewView(s),
		askView:        ask.NewView(s, nil, ports.Knowledge),
		documentsView:  documents.NewView(s, ports.Knowledge),
		docDetailsView: docdetails.NewView(s),
		chunksView:     chunks.NewView(s, ports.Knowledge),
		currentView:    messages.ViewMenu,
	}, nil
}

// WithContext sets the context used for every service call.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.askView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	a.chunksView.WithContext(ctx)
	return a
}

// WithOptions sets the starting retrieval scope of the ask view.
func (a *App) WithOptions(opts domain.QueryOptions) *App {
	a.askView.WithOptions(opts)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("grantkb"),
		a.countDocuments(),
	)
}

// countDocuments feeds the menu's document count.
func (a *App) countDocuments() tea.Cmd {
	knowledge, ctx := a.ports.Knowledge, a.ctx
	return func() tea.Msg {
		docs, err := knowledge.ListDocuments(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message router
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.updateCurrent(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.QueryCompleted:
		a.askView, cmd = a.askView.Update(msg)
		a.err = a.askView.Err()
		return a, cmd

	case messages.DocumentsLoaded:
		a.menuView, _ = a.menuView.Update(msg)
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.DocumentDeleted:
		a.documentsView, cmd = a.documentsView.Update(msg)
		if msg.Err != nil {
			a.err = msg.Err
		}
		return a, cmd

	case messages.DocumentSelected:
		a.currentView = messages.ViewChunks
		return a, a.chunksView.SetDocument(msg.Document)

	case messages.DocumentDetailsRequested:
		a.docDetailsView.SetDocument(msg.Document)
		a.currentView = messages.ViewDocDetails
		return a, nil

	case messages.ChunksLoaded:
		a.chunksView, cmd = a.chunksView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.updateCurrent(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	return a, a.updateCurrent(msg)
}

// updateCurrent forwards msg to the active view.
func (a *App) updateCurrent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewAsk:
		a.askView, cmd = a.askView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewDocDetails:
		a.docDetailsView, cmd = a.docDetailsView.Update(msg)
	case messages.ViewChunks:
		a.chunksView, cmd = a.chunksView.Update(msg)
	case messages.ViewHelp:
		if k, ok := msg.(tea.KeyMsg); ok && (k.Type == tea.KeyEsc || k.String() == "q") {
			a.currentView = messages.ViewMenu
		}
	}
	return cmd
}

// switchTo activates view and runs its entry command.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	switch view {
	case messages.ViewAsk:
		a.askView.Reset()
		return a.askView.Init()
	case messages.ViewDocuments:
		return a.documentsView.Load()
	case messages.ViewMenu:
		return a.countDocuments()
	case messages.ViewDocDetails, messages.ViewChunks, messages.ViewHelp:
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewAsk:
		return a.askView.View()
	case messages.ViewDocuments:
		return a.documentsView.View()
	case messages.ViewDocDetails:
		return a.docDetailsView.View()
	case messages.ViewChunks:
		return a.chunksView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return a.styles.Title.Render("Help") + `

Navigation:
  esc         Back
  ctrl+c      Quit

Menu:
  j/k, ↑/↓    Navigate options
  enter       Select option
  q           Quit

Ask:
  (type)      Enter a question
  enter       Ask (in answer mode: ask again with the current scope)
  n           New question
  g/s/t/o     Include programme guides, studies, statistics, other
  j/k         Move through sources

Documents:
  enter       Actions (chunks, details, delete)
  r           Reload

` + a.styles.Help.Render("[esc] back to menu")
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.askView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
	a.docDetailsView.SetDimensions(width, height)
	a.chunksView.SetDimensions(width, height)
}
