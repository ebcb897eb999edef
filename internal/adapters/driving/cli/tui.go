package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for grantkb.

The TUI lets you ask questions, read cited sources, and browse uploaded
documents, their summaries and chunks with keyboard navigation.

Scope flags set the initial retrieval scope of the Ask view.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Ask / Select
  g/s/t/o  - Toggle guides, studies, statistics, other
  Esc      - Back / Cancel
  ctrl+c   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	addScopeFlags(tuiCmd)
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	app, err := tui.NewApp(tui.NewPorts(knowledgeService))
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	app.WithContext(cmd.Context()).WithOptions(queryOptions())

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
