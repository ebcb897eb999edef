package progress

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
)

func event(stage domain.DocumentStatus, percent int) EventMsg {
	return EventMsg{Event: domain.ProgressEvent{DocumentID: "doc-1", Stage: stage, Percent: percent, Label: stage.Label()}}
}

func TestNewModel(t *testing.T) {
	m := NewModel(nil, "guide.pdf", nil)

	assert.Equal(t, domain.StatusUploading, m.Stage())
	assert.Zero(t, m.Percent())
	assert.False(t, m.Done())
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Uploading guide.pdf")
}

func TestModel_Events(t *testing.T) {
	m := NewModel(nil, "guide.pdf", nil)

	m.Update(event(domain.StatusExtracting, 10))
	m.Update(event(domain.StatusEmbedding, 55))

	assert.Equal(t, domain.StatusEmbedding, m.Stage())
	assert.Equal(t, 55, m.Percent())
	out := m.View()
	assert.Contains(t, out, "embedding")
	assert.Contains(t, out, "Generating embeddings")
	assert.Contains(t, out, "55%")
}

func TestModel_PercentIsMonotonicAndCapped(t *testing.T) {
	m := NewModel(nil, "x", nil)

	m.Update(event(domain.StatusEmbedding, 60))
	m.Update(event(domain.StatusEmbedding, 40))
	assert.Equal(t, 60, m.Percent())

	m.Update(event(domain.StatusAnalyzing, 150))
	assert.Equal(t, 100, m.Percent())
}

func TestModel_Warnings(t *testing.T) {
	m := NewModel(nil, "x", nil)

	m.Update(EventMsg{Event: domain.ProgressEvent{Stage: domain.StatusAnalyzing, Percent: 90, Warning: "summary skipped"}})

	assert.Equal(t, []string{"summary skipped"}, m.Warnings())
	assert.Contains(t, m.View(), "! summary skipped")
}

func TestModel_Done(t *testing.T) {
	m := NewModel(nil, "x", nil)
	doc := &domain.Document{ID: "doc-1", TotalChunks: 12, Status: domain.StatusReady}

	_, cmd := m.Update(DoneMsg{Document: doc})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Done())
	assert.Equal(t, 100, m.Percent())
	assert.Contains(t, m.View(), "Ready: 12 chunks (id doc-1)")
}

func TestModel_DoneWithError(t *testing.T) {
	m := NewModel(nil, "x", nil)
	m.Update(event(domain.StatusEmbedding, 50))

	m.Update(DoneMsg{Err: domain.ErrEmbeddingUnavailable})

	assert.True(t, m.Done())
	assert.Equal(t, 50, m.Percent())
	assert.Contains(t, m.View(), "embedding service unavailable")
}

func TestModel_CtrlCCancels(t *testing.T) {
	cancelled := false
	m := NewModel(nil, "x", func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, cancelled)
	assert.True(t, m.Cancelled())
	assert.Contains(t, m.View(), "Cancelled")
}

func TestModel_OtherKeysIgnored(t *testing.T) {
	m := NewModel(nil, "x", nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	assert.Nil(t, cmd)
	assert.False(t, m.Cancelled())
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(nil, "x", nil)

	m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, 60, m.bar.Width)

	m.Update(tea.WindowSizeMsg{Width: 12, Height: 40})
	assert.Equal(t, 10, m.bar.Width)
}

func TestModel_SpinnerTick(t *testing.T) {
	m := NewModel(nil, "x", nil)

	_, cmd := m.Update(m.spinner.Tick())

	assert.NotNil(t, cmd)
	_, ok := cmd().(spinner.TickMsg)
	assert.True(t, ok)
}

func headless() []tea.ProgramOption {
	var out bytes.Buffer
	return []tea.ProgramOption{
		tea.WithInput(nil),
		tea.WithOutput(&out),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	}
}

func TestRun(t *testing.T) {
	var stages []domain.DocumentStatus
	upload := func(_ context.Context, onProgress driving.ProgressFunc) (*domain.Document, error) {
		for _, s := range []domain.DocumentStatus{domain.StatusExtracting, domain.StatusChunking, domain.StatusReady} {
			stages = append(stages, s)
			onProgress(domain.ProgressEvent{Stage: s})
		}
		return &domain.Document{ID: "doc-9", Status: domain.StatusReady}, nil
	}

	doc, err := Run(context.Background(), "guide.pdf", upload, headless()...)

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "doc-9", doc.ID)
	assert.Len(t, stages, 3)
}

func TestRun_UploadError(t *testing.T) {
	failed := &domain.Document{ID: "doc-9", Status: domain.StatusError}
	upload := func(context.Context, driving.ProgressFunc) (*domain.Document, error) {
		return failed, errors.New("no text")
	}

	doc, err := Run(context.Background(), "guide.pdf", upload, headless()...)

	assert.EqualError(t, err, "no text")
	assert.Equal(t, failed, doc)
}
