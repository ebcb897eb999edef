package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/grantkb/internal/core/domain"
)

var (
	queryGuide      bool
	queryStudies    bool
	queryStatistics bool
	queryOther      bool
	queryLang       string
	queryTopK       int
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about the uploaded documents",
	Long: `Retrieves the most relevant passages and asks the language model to answer
from them, citing document and page.

Partner information, previous projects and references are always searched.
Programme guides, studies, statistics and other documents are opt-in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	addScopeFlags(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages to retrieve (0 = configured default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

// addScopeFlags registers the retrieval scope flags shared by query and tui.
func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&queryGuide, "guide", "g", false, "include programme guides")
	cmd.Flags().BoolVarP(&queryStudies, "studies", "s", false, "include studies")
	cmd.Flags().BoolVar(&queryStatistics, "statistics", false, "include statistics")
	cmd.Flags().BoolVar(&queryOther, "other", false, "include documents of type other")
	cmd.Flags().StringVarP(&queryLang, "lang", "l", "", "answer language (ISO 639-1)")
}

func queryOptions() domain.QueryOptions {
	return domain.QueryOptions{
		IncludeGuide:      queryGuide,
		IncludeStudies:    queryStudies,
		IncludeStatistics: queryStatistics,
		IncludeOther:      queryOther,
		Language:          queryLang,
		TopK:              queryTopK,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	question := strings.Join(args, " ")
	result, err := knowledgeService.QueryWithRAG(cmd.Context(), question, queryOptions())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, result)
	}
	outputQueryText(cmd, result)
	return nil
}

type queryJSONSource struct {
	Document string  `json:"document"`
	Page     *int    `json:"page,omitempty"`
	ChunkID  string  `json:"chunk_id"`
	Score    float64 `json:"score"`
}

type queryJSONResult struct {
	Answer        string            `json:"answer"`
	Sources       []queryJSONSource `json:"sources"`
	Model         string            `json:"model,omitempty"`
	ContextChunks int               `json:"context_chunks"`
}

func outputQueryJSON(cmd *cobra.Command, result *domain.QueryResult) error {
	out := queryJSONResult{
		Answer:        result.Answer,
		Sources:       make([]queryJSONSource, 0, len(result.Sources)),
		Model:         result.Model,
		ContextChunks: result.ContextChunks,
	}
	for _, src := range result.Sources {
		out.Sources = append(out.Sources, queryJSONSource{
			Document: src.DocumentName,
			Page:     src.PageNumber,
			ChunkID:  src.ChunkID,
			Score:    src.Score,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputQueryText(cmd *cobra.Command, result *domain.QueryResult) {
	cmd.Println(result.Answer)

	if len(result.Sources) == 0 {
		cmd.Println("\nNo sources matched this question.")
		return
	}

	cmd.Println("\nSources:")
	for i := range result.Sources {
		src := &result.Sources[i]
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, list.SourceLabel(src), src.Score)
	}
}
