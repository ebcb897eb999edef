// Command grantkb is a document knowledge base for grant writing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/grantkb/internal/adapters/driven/ai"
	"github.com/custodia-labs/grantkb/internal/adapters/driven/config/file"
	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/grantkb/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/cli"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/core/services"
	"github.com/custodia-labs/grantkb/internal/logger"
	"github.com/custodia-labs/grantkb/internal/normalisers/docx"
	"github.com/custodia-labs/grantkb/internal/normalisers/html"
	"github.com/custodia-labs/grantkb/internal/normalisers/markdown"
	"github.com/custodia-labs/grantkb/internal/normalisers/pdf"
	"github.com/custodia-labs/grantkb/internal/normalisers/plaintext"
	"github.com/custodia-labs/grantkb/internal/postprocessors/chunker"
)

// memoryDataDir selects the in-memory store, which is lost on exit.
const memoryDataDir = ":memory:"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; keys may come from the real environment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	configDir, err := file.DefaultDir()
	if err != nil {
		return fail("locating config directory", err)
	}
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fail("opening config", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		// Keep the CLI usable so 'grantkb settings set' can repair the file.
		logger.Warn("invalid settings, using defaults: %v", err)
		defaults := settingsService.GetDefaults()
		settings = &defaults
	}

	aiServices := ai.Init(ctx, settings)
	defer aiServices.Close()

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return fail("loading prompts", err)
	}

	dimension := settings.Embedding.ResolvedDimensions()
	if aiServices.EmbeddingService != nil {
		dimension = aiServices.EmbeddingService.Dimensions()
	}
	store, stale, err := openKnowledgeStore(settings.Store, dimension)
	if err != nil {
		return fail("opening knowledge store", err)
	}
	defer store.Close()

	available := *aiServices
	if stale {
		// Vectors from the configured model would not fit this store.
		logger.Warn("uploads and queries are disabled until 'grantkb clear --reset' is run")
		available.EmbeddingService = nil
	}

	knowledge, err := newKnowledgeService(settings, store, &available, prompts)
	if err != nil {
		return fail("creating knowledge service", err)
	}

	cli.SetServices(knowledge, settingsService)
	cli.SetStoreReset(storeReset(store, dimension))
	return cli.Execute(ctx)
}

func openStore(s domain.StoreSettings, dimension int) (driven.ChunkStore, error) {
	if s.DataDir == memoryDataDir {
		logger.Warn("using the in-memory store; documents are lost on exit")
		return memory.NewChunkStore(memory.Options{
			Dimension:            dimension,
			MaxChunkChars:        s.MaxChunkChars,
			MaxChunksPerDocument: s.MaxChunksPerDocument,
		})
	}
	return sqlite.NewStore(s.DataDir, sqlite.Options{
		Dimension:            dimension,
		MaxChunkChars:        s.MaxChunkChars,
		MaxChunksPerDocument: s.MaxChunksPerDocument,
	})
}

// openKnowledgeStore opens the store for the given embedding dimension. A
// store built by another embedding model is opened at its recorded dimension
// and reported as stale.
func openKnowledgeStore(s domain.StoreSettings, dimension int) (driven.ChunkStore, bool, error) {
	store, err := openStore(s, dimension)
	if errors.Is(err, domain.ErrDimensionMismatch) {
		logger.Warn("%v", err)
		store, err = openStore(s, 0)
		return store, err == nil, err
	}
	return store, false, err
}

// storeReset returns the reset behind 'clear --reset', or nil when the store
// cannot be reset.
func storeReset(store driven.ChunkStore, dimension int) func(context.Context) error {
	s, ok := store.(*sqlite.Store)
	if !ok {
		return nil
	}
	return func(ctx context.Context) error {
		return s.ResetDimension(ctx, dimension)
	}
}

func newKnowledgeService(
	settings *domain.AppSettings, store driven.ChunkStore, aiServices *ai.InitResult, prompts *file.PromptStore,
) (*services.KnowledgeService, error) {
	extractors := services.NewExtractorRegistry(
		plaintext.New(),
		markdown.New(),
		html.New(),
		docx.New(),
		pdf.New(),
	)

	textChunker, err := chunker.New(chunker.FromSettings(settings.Chunker)...)
	if err != nil {
		return nil, err
	}

	backoff := services.NewBackoff(settings.Retry)

	var summarizer *services.Summarizer
	if aiServices.LLMService != nil {
		summarizer = services.NewSummarizer(
			aiServices.LLMService, prompts, backoff, settings.Ingestion.SummaryMaxChars, settings.RAG.Timeout,
		)
	}

	pipeline := services.NewIngestionPipeline(
		store, extractors, textChunker, aiServices.EmbeddingService, summarizer, backoff, settings.Ingestion.EmbedBatchSize,
	)

	var rag *services.RAGOrchestrator
	if aiServices.LLMService != nil {
		retriever := services.NewRetriever(store, aiServices.EmbeddingService, backoff)
		rag = services.NewRAGOrchestrator(retriever, aiServices.LLMService, prompts, backoff, settings.RAG)
	}

	return services.NewKnowledgeService(store, pipeline, rag), nil
}

func fail(what string, err error) error {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", what, err)
	return err
}
