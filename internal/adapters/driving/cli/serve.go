package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/api"
)

var (
	servePort      int
	serveHost      string
	serveMaxUpload int64
	serveCORS      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves the knowledge base as a JSON API for the grant-writing tool.

Endpoints:
  GET    /health
  GET    /api/v1/documents
  POST   /api/v1/documents              multipart: file, type, language, name
  DELETE /api/v1/documents
  GET    /api/v1/documents/:id
  DELETE /api/v1/documents/:id
  GET    /api/v1/documents/:id/chunks
  POST   /api/v1/documents/:id/retry    multipart: file
  POST   /api/v1/query                  json: question, include_*, language, top_k`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP port")
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "interface to listen on")
	serveCmd.Flags().Int64Var(&serveMaxUpload, "max-upload", api.DefaultMaxUploadBytes, "largest accepted upload in bytes (0 = no limit)")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", false, "allow cross-origin requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	opts := []api.Option{api.WithMaxUploadBytes(serveMaxUpload)}
	if serveCORS {
		opts = append(opts, api.WithCORS())
	}

	server, err := api.NewServer(knowledgeService, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", serveHost, servePort)
	cmd.Printf("API server listening on http://%s\n", addr)
	return server.Run(cmd.Context(), addr)
}
