package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/progress"
	"github.com/custodia-labs/grantkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

const timeFormat = "2006-01-02 15:04:05"

var (
	uploadType string
	uploadLang string
	uploadName string
	clearYes   bool
	clearReset bool
)

// isTerminal reports whether stdout is a terminal. Tests replace it.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload documents to the knowledge base",
	Long: `Extracts, chunks and embeds one or more files, then generates a summary.

Supported formats: PDF, DOCX, HTML, Markdown and plain text.

Document types:
` + documentTypeHelp(),
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List uploaded documents",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var showCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document details and summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print a document's chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var deleteCmd = &cobra.Command{
	Use:     "delete [doc-id...]",
	Aliases: []string{"rm"},
	Short:   "Delete documents and their chunks",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document",
	Long: `Deletes every document and chunk.

With --reset the store also adopts the dimension of the configured embedding
model. Use it after switching embedding models, when the store refuses to open
with a dimension mismatch.`,
	Args: cobra.NoArgs,
	RunE:  runClear,
}

var retryCmd = &cobra.Command{
	Use:   "retry [doc-id] [file]",
	Short: "Re-ingest a failed document",
	Long: `Runs a document in status error through ingestion again, keeping its id.
The original file must be supplied because uploads are not stored.`,
	Args: cobra.ExactArgs(2),
	RunE: runRetry,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadType, "type", "t", string(domain.DocumentTypeOther), "document type")
	uploadCmd.Flags().StringVarP(&uploadLang, "lang", "l", "", "ISO 639-1 language of the document")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "display name (single file only)")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	clearCmd.Flags().BoolVar(&clearReset, "reset", false, "also reset the embedding dimension to the configured model")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(retryCmd)
}

func documentTypeHelp() string {
	var b strings.Builder
	for _, t := range domain.AllDocumentTypes() {
		fmt.Fprintf(&b, "  %-18s %s\n", t, t.Description())
	}
	return b.String()
}

func runUpload(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}
	if uploadName != "" && len(args) > 1 {
		return errors.New("--name can only be used with a single file")
	}

	docType, ok := domain.ParseDocumentType(uploadType)
	if !ok {
		return fmt.Errorf("unknown document type %q", uploadType)
	}

	var failed int
	for _, path := range args {
		req, err := readUpload(path, uploadName, docType, uploadLang)
		if err != nil {
			return err
		}
		upload := func(ctx context.Context, onProgress driving.ProgressFunc) (*domain.Document, error) {
			return knowledgeService.UploadDocument(ctx, req, onProgress)
		}
		if err := uploadOne(cmd, req.Name, upload); err != nil {
			cmd.PrintErrf("Error: %s: %v\n", req.Name, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}

// readUpload loads a file into an upload request.
func readUpload(path, name string, docType domain.DocumentType, lang string) (driving.UploadRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return driving.UploadRequest{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return driving.UploadRequest{
		Name:     name,
		MIMEType: normalisers.DetectMIME(path, data),
		Type:     docType,
		Language: lang,
		Data:     data,
	}, nil
}

// uploadOne runs an upload under the progress display on a terminal, or
// prints one line per stage otherwise.
func uploadOne(cmd *cobra.Command, name string, upload progress.UploadFunc) error {
	if isTerminal() {
		doc, err := progress.Run(cmd.Context(), name, upload)
		if err != nil {
			return err
		}
		cmd.Printf("%s\n", doc.ID)
		return nil
	}

	doc, err := upload(cmd.Context(), func(ev domain.ProgressEvent) {
		cmd.Printf("[%3d%%] %s: %s\n", ev.Percent, name, ev.Label)
		if ev.Warning != "" {
			cmd.Printf("       warning: %s\n", ev.Warning)
		}
	})
	if err != nil {
		return err
	}
	cmd.Printf("Uploaded %s: %s (%d chunks)\n", name, doc.ID, doc.TotalChunks)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	docs, err := knowledgeService.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents. Upload one with 'grantkb upload <file>'.")
		return nil
	}

	s := styles.DefaultStyles()
	for i := range docs {
		doc := &docs[i]
		cmd.Printf("%s %s\n", doc.ID, s.StatusBadge(doc.Status))
		cmd.Printf("    Name:   %s\n", doc.Name)
		cmd.Printf("    Type:   %s\n", doc.Type.Description())
		cmd.Printf("    Chunks: %d\n", doc.TotalChunks)
		if doc.ErrorMessage != "" {
			cmd.Printf("    Error:  %s\n", doc.ErrorMessage)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	doc, err := knowledgeService.GetDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Name:     %s\n", doc.Name)
	cmd.Printf("  Type:     %s\n", doc.Type.Description())
	cmd.Printf("  Status:   %s\n", doc.Status.Label())
	if doc.Language != "" {
		cmd.Printf("  Language: %s\n", doc.Language)
	}
	cmd.Printf("  Format:   %s\n", doc.MIMEType)
	cmd.Printf("  Size:     %d bytes\n", doc.SizeBytes)
	if doc.TotalPages != nil {
		cmd.Printf("  Pages:    %d\n", *doc.TotalPages)
	}
	cmd.Printf("  Chunks:   %d\n", doc.TotalChunks)
	cmd.Printf("  Uploaded: %s\n", doc.UploadedAt.Format(timeFormat))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeFormat))
	if doc.ErrorMessage != "" {
		cmd.Printf("  Error:    %s\n", doc.ErrorMessage)
	}

	if sum := doc.Summary; sum != nil {
		cmd.Println("\nSummary:")
		cmd.Printf("  %s\n", sum.Synopsis)
		if len(sum.KeyPoints) > 0 {
			cmd.Println("\n  Key points:")
			for _, p := range sum.KeyPoints {
				cmd.Printf("    - %s\n", p)
			}
		}
		if len(sum.Topics) > 0 {
			cmd.Printf("\n  Topics:    %s\n", strings.Join(sum.Topics, ", "))
		}
		if sum.Relevance != "" {
			cmd.Printf("  Relevance: %s\n", sum.Relevance)
		}
		if sum.Model != "" {
			cmd.Printf("  Model:     %s\n", sum.Model)
		}
	}

	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	chunks, err := knowledgeService.GetChunks(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return nil
	}

	for i := range chunks {
		c := &chunks[i]
		if c.PageNumber != nil {
			cmd.Printf("--- chunk %d (page %d) ---\n", c.SequenceIndex+1, *c.PageNumber)
		} else {
			cmd.Printf("--- chunk %d ---\n", c.SequenceIndex+1)
		}
		cmd.Println(c.Text)
		cmd.Println()
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	for _, id := range args {
		deleted, err := knowledgeService.DeleteDocument(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		if deleted {
			cmd.Printf("Deleted %s\n", id)
		} else {
			cmd.Printf("No document %s\n", id)
		}
	}
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if clearReset && resetStore == nil {
		return errors.New("this store cannot be reset")
	}
	if !clearReset && knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	if !clearYes {
		cmd.Print("Delete every document and chunk? [y/N]: ")
		answer := readLine(bufio.NewReader(cmd.InOrStdin()))
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if clearReset {
		if err := resetStore(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset knowledge base: %w", err)
		}
		cmd.Println("Knowledge base cleared and embedding dimension reset.")
		return nil
	}

	if err := knowledgeService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}
	cmd.Println("Knowledge base cleared.")
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	id := args[0]
	doc, err := knowledgeService.GetDocument(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc.Status != domain.StatusError {
		return fmt.Errorf("document %s is %s; only failed documents can be retried", id, doc.Status)
	}

	req, err := readUpload(args[1], doc.Name, doc.Type, doc.Language)
	if err != nil {
		return err
	}
	return uploadOne(cmd, req.Name, func(ctx context.Context, onProgress driving.ProgressFunc) (*domain.Document, error) {
		return knowledgeService.RetryDocument(ctx, id, req, onProgress)
	})
}
