package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
)

const testDim = 4

func newMemoryStore(t *testing.T) *memory.ChunkStore {
	t.Helper()
	store, err := memory.NewChunkStore(memory.Options{Dimension: testDim, MaxChunkChars: 2000})
	require.NoError(t, err)
	return store
}

// mockExtractor returns fixed text, or the uploaded bytes when text is empty.
type mockExtractor struct {
	types []string
	text  string
	pages []int
	err   error
}

func (m *mockExtractor) MIMETypes() []string { return m.types }

func (m *mockExtractor) Extract(_ context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	if m.err != nil {
		return nil, m.err
	}
	text := m.text
	if text == "" {
		text = string(data)
	}
	return &domain.ExtractedText{Text: text, PageStarts: m.pages, PageCount: len(m.pages)}, nil
}

var errRateLimited = domain.NewProviderError("fake", domain.ProviderErrorRateLimited, 429, errors.New("slow down"))

// fakeEmbedder returns deterministic vectors. The first failFirst calls
// fail with failErr; failErr alone with failFirst < 0 fails every call.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	texts     [][]string
	failFirst int
	failErr   error
	vectors   map[string][]float32
	hook      func(call int)
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.texts = append(f.texts, texts)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if f.failErr != nil && (f.failFirst < 0 || call <= f.failFirst) {
		return nil, f.failErr
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{1, float32(len(t) % 7), float32(len(t) % 3), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEmbedder) Dimensions() int              { return testDim }
func (f *fakeEmbedder) ModelName() string            { return "fake-embed" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

// fakeLLM replies with answer unless an error is queued for the call.
// With block set every call waits for its context to end.
type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	errs    []error
	block   bool
	prompts []string
	opts    []driven.CompletionOptions
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts driven.CompletionOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return f.answer, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

// builtinPrompts serves the default templates without touching disk.
type builtinPrompts struct{}

func (builtinPrompts) Load(name string) (string, error) {
	if p, ok := file.DefaultPrompt(name); ok {
		return p, nil
	}
	return "", errors.New("unknown prompt " + name)
}

func (builtinPrompts) Reload() {}

// recordingWait records backoff delays without sleeping.
type recordingWait struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingWait) wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingWait) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func testBackoff(w *recordingWait) *Backoff {
	return NewBackoff(domain.RetrySettings{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}).WithWait(w.wait)
}

const summaryYAMLReply = "synopsis: A guide to cooperation partnerships.\nkey_points:\n  - Two year projects\ntopics: [youth, mobility]\nrelevance: Defines eligibility.\nlanguage: en\n"
