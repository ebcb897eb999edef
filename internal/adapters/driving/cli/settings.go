package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, chunking, retrieval and storage options.

Settings are stored in ~/.grantkb/config.toml. API keys may instead be
provided through OPENAI_API_KEY or GEMINI_API_KEY.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used to index and retrieve chunks.

Changing the embedding model changes the vector dimension; clear the
knowledge base and upload the documents again afterwards.`,
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used to answer questions and summarise documents.`,
	RunE:  runSettingsLLM,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single dot-separated setting, for example:

  grantkb settings set rag.top_k 8
  grantkb settings set chunker.window 1200
  grantkb settings set llm.base_url http://gpu-box:11434

Numbers and booleans are stored with their type.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	if dims := settings.Embedding.ResolvedDimensions(); dims > 0 {
		cmd.Printf("  Dimensions: %d\n", dims)
	} else {
		cmd.Printf("  Dimensions: (detected from model)\n")
	}
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	cmd.Println()

	cmd.Println("[Chunker]")
	cmd.Printf("  Window: %d\n", settings.Chunker.Window)
	cmd.Printf("  Overlap: %d\n", settings.Chunker.Overlap)
	cmd.Printf("  Tolerance: %d\n", settings.Chunker.Tolerance)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Top K: %d\n", settings.RAG.TopK)
	cmd.Printf("  Temperature: %.2f\n", settings.RAG.Temperature)
	cmd.Printf("  Max tokens: %d\n", settings.RAG.MaxTokens)
	cmd.Printf("  Timeout: %s\n", settings.RAG.Timeout)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max attempts: %d\n", settings.Retry.MaxAttempts)
	cmd.Printf("  Base delay: %s\n", settings.Retry.BaseDelay)
	cmd.Printf("  Max delay: %s\n", settings.Retry.MaxDelay)
	cmd.Println()

	cmd.Println("[Store]")
	dataDir := settings.Store.DataDir
	if dataDir == "" {
		dataDir = "~/.grantkb/data (default)"
	}
	cmd.Printf("  Data dir: %s\n", dataDir)
	cmd.Printf("  Max chunk chars: %d\n", settings.Store.MaxChunkChars)
	cmd.Printf("  Max chunks per document: %d\n", settings.Store.MaxChunksPerDocument)
	cmd.Println()

	cmd.Println("[Rate limit]")
	if settings.RateLimit.RequestsPerSecond > 0 {
		cmd.Printf("  Requests per second: %.1f (burst %d)\n",
			settings.RateLimit.RequestsPerSecond, settings.RateLimit.Burst)
	} else {
		cmd.Println("  Disabled")
	}

	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set, export %s)\n", provider.APIKeyEnv())
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], parseValue(args[1])
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	// Get applies cross-field validation, e.g. overlap < window.
	if _, err := settingsService.Get(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	cmd.Printf("Set %s = %v\n", key, value)
	return nil
}

// parseValue stores integers, floats and booleans with their type so the
// TOML file keeps them unquoted.
func parseValue(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	apiKey, err := promptAPIKey(cmd, reader, selectedProvider)
	if err != nil {
		return err
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	apiKey, err := promptAPIKey(cmd, reader, selectedProvider)
	if err != nil {
		return err
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// promptAPIKey asks for a key when the provider needs one. An empty answer
// is accepted when the provider's environment variable is set.
func promptAPIKey(cmd *cobra.Command, reader *bufio.Reader, provider domain.AIProvider) (string, error) {
	if !provider.RequiresAPIKey() {
		return "", nil
	}

	env := provider.APIKeyEnv()
	if os.Getenv(env) != "" {
		cmd.Printf("Enter API key [from %s]: ", env)
	} else {
		cmd.Print("Enter API key: ")
	}
	apiKey := readPassword(reader)
	cmd.Println()
	if apiKey == "" && os.Getenv(env) == "" {
		return "", errors.New("API key is required for this provider")
	}
	return apiKey, nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise a plain line
// from reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
