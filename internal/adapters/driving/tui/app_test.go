package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/tuitest"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func newTestKnowledge() *tuitest.MockKnowledgeService {
	return &tuitest.MockKnowledgeService{
		ListDocumentsFunc: func(context.Context) ([]domain.Document, error) {
			return tuitest.Documents(), nil
		},
		GetChunksFunc: func(context.Context, string) ([]domain.Chunk, error) {
			return tuitest.Chunks(), nil
		},
		QueryWithRAGFunc: func(_ context.Context, q string, _ domain.QueryOptions) (*domain.QueryResult, error) {
			return &domain.QueryResult{Answer: "answer to " + q}, nil
		},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(NewPorts(newTestKnowledge()))
	require.NoError(t, err)
	app.SetDimensions(100, 40)
	return app
}

// drain runs cmd and feeds its message back into the app.
func drain(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		app.Update(msg)
	}
}

func typeText(app *App, s string) {
	for _, r := range s {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(NewPorts(&tuitest.MockKnowledgeService{}))

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(NewPorts(nil))

	assert.ErrorIs(t, err, ErrMissingKnowledgeService)
	assert.Nil(t, app)
}

func TestApp_WithContextAndOptions(t *testing.T) {
	app := newTestApp(t)

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("k"), "v")

	assert.Equal(t, app, app.WithContext(ctx))
	assert.Equal(t, app, app.WithOptions(domain.QueryOptions{Language: "de"}))
	assert.Equal(t, "de", app.askView.Options().Language)
}

func TestApp_Init(t *testing.T) {
	app, _ := NewApp(NewPorts(newTestKnowledge()))

	assert.NotNil(t, app.Init())
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(NewPorts(newTestKnowledge()))

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "grantkb")
}

func TestApp_MenuShowsDocumentCount(t *testing.T) {
	app := newTestApp(t)

	drain(app, app.countDocuments())

	assert.Contains(t, app.View(), "2 documents")
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_AskFlow(t *testing.T) {
	app := newTestApp(t)

	// Menu item 0 is Ask.
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)
	require.Equal(t, messages.ViewAsk, app.CurrentView())

	typeText(app, "eligibility?")
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.Contains(t, app.View(), "answer to eligibility?")
	assert.NoError(t, app.Err())
}

func TestApp_AskError(t *testing.T) {
	svc := newTestKnowledge()
	svc.QueryWithRAGFunc = func(context.Context, string, domain.QueryOptions) (*domain.QueryResult, error) {
		return nil, domain.ErrEmbeddingUnavailable
	}
	app, err := NewApp(NewPorts(svc))
	require.NoError(t, err)
	app.SetDimensions(100, 40)
	app.Update(messages.ViewChanged{View: messages.ViewAsk})

	typeText(app, "q")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	drain(app, cmd)

	assert.ErrorIs(t, app.Err(), domain.ErrEmbeddingUnavailable)
}

func TestApp_DocumentsFlow(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.ViewChanged{View: messages.ViewDocuments})
	drain(app, cmd)
	require.Equal(t, messages.ViewDocuments, app.CurrentView())
	assert.Contains(t, app.View(), "erasmus-guide.pdf")

	// enter opens the action menu; enter again picks Show Chunks.
	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, cmd = app.Update(cmd())
	require.Equal(t, messages.ViewChunks, app.CurrentView())
	drain(app, cmd)
	assert.Contains(t, app.View(), "--- chunk 1 (page 1) ---")

	// esc returns to the list.
	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
}

func TestApp_DocumentDetails(t *testing.T) {
	app := newTestApp(t)

	app.Update(messages.DocumentDetailsRequested{Document: tuitest.Documents()[0]})

	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())
	assert.Contains(t, app.View(), "Document Details")
	assert.Contains(t, app.View(), "Rules for Erasmus+ applications.")
}

func TestApp_DocumentDeletedError(t *testing.T) {
	app := newTestApp(t)

	app.Update(messages.DocumentDeleted{DocumentID: "doc-1", Err: errors.New("locked")})

	assert.EqualError(t, app.Err(), "locked")
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t)

	app.Update(messages.ViewChanged{View: messages.ViewHelp})
	assert.Contains(t, app.View(), "g/s/t/o")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t)
	app.Update(messages.ViewChanged{View: messages.ViewAsk})

	app.Update(messages.ErrorOccurred{Err: errors.New("boom")})

	assert.EqualError(t, app.Err(), "boom")
	assert.Contains(t, app.View(), "Error: boom")
}

func TestApp_EscFromAskReturnsToMenu(t *testing.T) {
	app := newTestApp(t)
	app.Update(messages.ViewChanged{View: messages.ViewAsk})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(app, cmd)

	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}
