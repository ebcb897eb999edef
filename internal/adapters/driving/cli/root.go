// Package cli implements the grantkb command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/logger"
)

var (
	// version is set at build time or through SetVersion.
	version = "dev"

	verbose bool

	knowledgeService driving.KnowledgeService
	settingsService  driving.SettingsService

	// resetStore empties the store and re-records the embedding dimension.
	// It is nil when the store has nothing to reset.
	resetStore func(ctx context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "grantkb",
	Short: "A knowledge base for grant writing",
	Long: `grantkb stores programme guides, studies, statistics and partner
information, and answers questions about them with cited sources.

Upload documents with 'grantkb upload', then ask questions with
'grantkb query' or browse interactively with 'grantkb tui'.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices injects the core services used by the commands.
func SetServices(knowledge driving.KnowledgeService, settings driving.SettingsService) {
	knowledgeService = knowledge
	settingsService = settings
}

// SetStoreReset installs the function behind 'clear --reset'.
func SetStoreReset(fn func(ctx context.Context) error) {
	resetStore = fn
}

// Execute runs the root command. Long-running commands stop when ctx is
// cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
