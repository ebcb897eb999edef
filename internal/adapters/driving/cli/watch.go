package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driving"
	"github.com/custodia-labs/grantkb/internal/logger"
	"github.com/custodia-labs/grantkb/internal/watcher"
)

var (
	watchType     string
	watchLang     string
	watchInitial  bool
	watchRemove   bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Upload documents dropped into a folder",
	Long: `Watches a folder and uploads supported files as they appear. A file that
changes is uploaded again and replaces the document from its previous upload.

Only files uploaded by this watch session are replaced or removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchType, "type", "t", string(domain.DocumentTypeOther), "document type for new files")
	watchCmd.Flags().StringVarP(&watchLang, "lang", "l", "", "ISO 639-1 language of new files")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "upload files already in the folder first")
	watchCmd.Flags().BoolVar(&watchRemove, "remove", false, "delete documents whose files are removed")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a file is uploaded")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if knowledgeService == nil {
		return errors.New("knowledge service not configured")
	}

	docType, ok := domain.ParseDocumentType(watchType)
	if !ok {
		return fmt.Errorf("unknown document type %q", watchType)
	}

	w := watcher.New(args[0], watcher.WithDebounce(watchDebounce))
	defer w.Close()

	ingester := newFolderIngester(cmd, knowledgeService, docType, watchLang, watchRemove)

	if watchInitial {
		paths, err := w.Scan()
		if err != nil {
			return fmt.Errorf("failed to scan folder: %w", err)
		}
		for _, path := range paths {
			ingester.handle(cmd.Context(), watcher.Change{Type: watcher.ChangeCreated, Path: path})
		}
	}

	changes, err := w.Watch(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to watch folder: %w", err)
	}

	cmd.Printf("Watching %s (ctrl+c to stop)\n", w.Root())
	for change := range changes {
		ingester.handle(cmd.Context(), change)
	}
	return nil
}

// folderIngester maps watched files to the documents uploaded for them.
type folderIngester struct {
	cmd       *cobra.Command
	knowledge driving.KnowledgeService
	docType   domain.DocumentType
	lang      string
	remove    bool

	// docs maps a file path to its latest document id.
	docs map[string]string
}

func newFolderIngester(
	cmd *cobra.Command, knowledge driving.KnowledgeService, docType domain.DocumentType, lang string, remove bool,
) *folderIngester {
	return &folderIngester{
		cmd:       cmd,
		knowledge: knowledge,
		docType:   docType,
		lang:      lang,
		remove:    remove,
		docs:      make(map[string]string),
	}
}

func (f *folderIngester) handle(ctx context.Context, change watcher.Change) {
	switch change.Type {
	case watcher.ChangeCreated, watcher.ChangeUpdated:
		f.upload(ctx, change.Path)
	case watcher.ChangeRemoved:
		id, ok := f.docs[change.Path]
		if !ok || !f.remove {
			return
		}
		delete(f.docs, change.Path)
		if _, err := f.knowledge.DeleteDocument(ctx, id); err != nil {
			f.cmd.PrintErrf("Error: %s: %v\n", change.Path, err)
			return
		}
		f.cmd.Printf("Removed %s (%s)\n", change.Path, id)
	}
}

func (f *folderIngester) upload(ctx context.Context, path string) {
	if old, ok := f.docs[path]; ok {
		logger.Debug("replacing %s for %s", old, path)
		if _, err := f.knowledge.DeleteDocument(ctx, old); err != nil {
			f.cmd.PrintErrf("Error: %s: %v\n", path, err)
			return
		}
		delete(f.docs, path)
	}

	req, err := readUpload(path, "", f.docType, f.lang)
	if err != nil {
		f.cmd.PrintErrf("Error: %v\n", err)
		return
	}

	doc, err := f.knowledge.UploadDocument(ctx, req, func(ev domain.ProgressEvent) {
		logger.Debug("%s: %d%% %s", req.Name, ev.Percent, ev.Label)
		if ev.Warning != "" {
			f.cmd.Printf("warning: %s: %s\n", req.Name, ev.Warning)
		}
	})
	// A failed upload still leaves a document behind to replace later.
	if doc != nil {
		f.docs[path] = doc.ID
	}
	if err != nil {
		f.cmd.PrintErrf("Error: %s: %v\n", req.Name, err)
		return
	}
	f.cmd.Printf("Uploaded %s: %s (%d chunks)\n", req.Name, doc.ID, doc.TotalChunks)
}
