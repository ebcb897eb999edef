package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompt templates from user-editable files on disk,
// falling back to the built-in defaults.
//
// The store initialises lazily: the directory and default files are created
// on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts are written to disk on first use and served when a file
// is missing or unreadable.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptRAGAnswer: `You are a research assistant helping to write a grant proposal.
Answer the question using only the numbered sources below. Cite the sources you use inline as [Source n].
If the sources do not contain the answer, say so plainly instead of guessing.
{{if .Language}}Write the answer in {{.Language}}.{{end}}

{{range .Sources}}[Source {{.Index}}: {{.Document}}{{if .Page}}, page {{.Page}}{{end}}]
{{.Text}}

{{end}}Question: {{.Question}}
Answer:`,

	driven.PromptRAGNoContext: `You are a research assistant helping to write a grant proposal.
No context is available: none of the uploaded documents match this question.
Start by saying that the knowledge base holds nothing relevant, then give a brief general answer and label it clearly as not based on the user's documents.
{{if .Language}}Write the answer in {{.Language}}.{{end}}

Question: {{.Question}}
Answer:`,

	driven.PromptSummarise: `Summarise the document below for someone writing a grant proposal.
Respond with YAML only, using exactly these keys:

synopsis: two or three sentences
key_points: a list of at most five short strings
topics: a list of at most eight keywords
relevance: one sentence on how the document can support a grant application
language: the ISO 639-1 code of the document's language

Document: {{.Name}} ({{.Type}}){{if .Language}}, declared language {{.Language}}{{end}}

{{.Text}}`,
}

// DefaultPrompt returns the built-in template for name.
func DefaultPrompt(name string) (string, bool) {
	prompt, ok := defaultPrompts[name]
	return prompt, ok
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.grantkb/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// Returns the cached value if available, otherwise reads the file.
// Falls back to the built-in default if the file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil || prompt == "" {
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		if err == nil {
			err = errors.New("prompt file is empty")
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Double-check so concurrent loads agree on one value.
	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# grantkb prompts

Templates used when answering questions and summarising uploads.

## Files

- ` + "`rag_answer.txt`" + ` - answers a question from retrieved sources
- ` + "`rag_no_context.txt`" + ` - answers when no document matches
- ` + "`summarise.txt`" + ` - produces the YAML summary stored with each document

## Customisation

Edit any file to change the wording. Changes apply from the next command.
Delete a file to restore its default.

## Template fields

Prompts use Go text/template syntax:

- rag_answer: ` + "`{{.Question}}`, `{{.Language}}`, `{{range .Sources}}` with `{{.Index}}`, `{{.Document}}`, `{{.Page}}`, `{{.Text}}`" + `
- rag_no_context: ` + "`{{.Question}}`, `{{.Language}}`" + `
- summarise: ` + "`{{.Name}}`, `{{.Type}}`, `{{.Language}}`, `{{.Text}}`" + `

The summarise prompt must still ask for YAML with the keys synopsis,
key_points, topics, relevance and language.
`
	return os.WriteFile(path, []byte(content), 0600)
}
