package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/tuitest"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/watcher"
)

// mockSettingsService implements driving.SettingsService for CLI tests.
type mockSettingsService struct {
	settings *domain.AppSettings
	getErr   error
	setErr   error

	validateErr error

	setKey   string
	setValue any

	embedProvider domain.AIProvider
	embedModel    string
	embedKey      string
	llmProvider   domain.AIProvider
	llmModel      string
}

var _ driving.SettingsService = (*mockSettingsService)(nil)

func newMockSettingsService() *mockSettingsService {
	s := domain.DefaultAppSettings()
	return &mockSettingsService{settings: &s}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings, nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embedProvider, m.embedModel, m.embedKey = provider, model, apiKey
	return m.setErr
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, _ string) error {
	m.llmProvider, m.llmModel = provider, model
	return m.setErr
}

func (m *mockSettingsService) Set(key string, value any) error {
	m.setKey, m.setValue = key, value
	return m.setErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.validateErr }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.validateErr }

// setupTestServices installs a knowledge service backed by the tuitest
// fixtures and returns a cleanup func that restores the previous services.
func setupTestServices() func() {
	return setupServices(newTestKnowledgeService(), newMockSettingsService())
}

func setupServices(knowledge driving.KnowledgeService, settings driving.SettingsService) func() {
	prevKnowledge, prevSettings := knowledgeService, settingsService
	prevTerminal := isTerminal
	prevReset := resetStore

	knowledgeService = knowledge
	settingsService = settings
	isTerminal = func() bool { return false }

	return func() {
		knowledgeService = prevKnowledge
		settingsService = prevSettings
		isTerminal = prevTerminal
		resetStore = prevReset
		resetFlags()
	}
}

func newTestKnowledgeService() *tuitest.MockKnowledgeService {
	docs := tuitest.Documents()
	return &tuitest.MockKnowledgeService{
		ListDocumentsFunc: func(context.Context) ([]domain.Document, error) {
			return docs, nil
		},
		GetDocumentFunc: func(_ context.Context, id string) (*domain.Document, error) {
			for i := range docs {
				if docs[i].ID == id {
					return &docs[i], nil
				}
			}
			return nil, domain.ErrNotFound
		},
		GetChunksFunc: func(_ context.Context, id string) ([]domain.Chunk, error) {
			if id == "doc-1" {
				return tuitest.Chunks(), nil
			}
			return nil, nil
		},
		DeleteDocumentFunc: func(_ context.Context, id string) (bool, error) {
			return id == "doc-1" || id == "doc-2", nil
		},
	}
}

// resetFlags restores package flag variables, which persist between
// Execute calls.
func resetFlags() {
	verbose = false

	uploadType = string(domain.DocumentTypeOther)
	uploadLang = ""
	uploadName = ""
	clearYes = false
	clearReset = false

	queryGuide, queryStudies, queryStatistics, queryOther = false, false, false, false
	queryLang = ""
	queryTopK = 0
	queryJSON = false

	watchType = string(domain.DocumentTypeOther)
	watchLang = ""
	watchInitial = false
	watchRemove = false
	watchDebounce = watcher.DefaultDebounce
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "grantkb", rootCmd.Use)
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{
		"upload", "list", "show", "chunks", "delete", "clear", "retry",
		"query", "tui", "watch", "serve", "mcp", "settings", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "v", flag.Shorthand)
	}
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)

	SetVersion("")
	assert.Equal(t, "1.2.3", version)
}

func TestSetServices(t *testing.T) {
	prevKnowledge, prevSettings := knowledgeService, settingsService
	defer func() { knowledgeService, settingsService = prevKnowledge, prevSettings }()

	knowledge := &tuitest.MockKnowledgeService{}
	settings := newMockSettingsService()
	SetServices(knowledge, settings)

	assert.Same(t, knowledge, knowledgeService)
	assert.Same(t, settings, settingsService)
}

func TestCommands_WithoutServices(t *testing.T) {
	cleanup := setupServices(nil, nil)
	defer cleanup()

	for _, args := range [][]string{
		{"list"},
		{"show", "doc-1"},
		{"chunks", "doc-1"},
		{"delete", "doc-1"},
		{"clear", "--yes"},
		{"query", "eligibility"},
		{"settings", "show"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, _, err := execute(t, "", args...)
			assert.ErrorContains(t, err, "not configured")
		})
	}
}
