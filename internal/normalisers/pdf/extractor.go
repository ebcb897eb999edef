// Package pdf extracts text from PDF documents.
//
// Pages are read with the pure-Go github.com/ledongthuc/pdf reader. When it
// cannot parse a file or finds no text, poppler's pdftotext is tried. Both
// paths separate pages with form feeds, so every extraction reports page
// starts.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
	"github.com/custodia-labs/grantkb/internal/core/ports/driven"
	"github.com/custodia-labs/grantkb/internal/logger"
	"github.com/custodia-labs/grantkb/internal/normalisers"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

const toolName = "pdftotext"

// maxTitleLength bounds the first line used as a title.
const maxTitleLength = 200

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, ErrPDFToolNotFound
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Extractor handles PDF documents.
type Extractor struct {
	readPages func(data []byte) ([]string, error)
	runner    CommandRunner
}

// New creates a PDF extractor that falls back to pdftotext.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF extractor whose pdftotext fallback uses a
// custom command runner. A nil runner disables the fallback.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{readPages: readPages, runner: runner}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{normalisers.MIMEPDF}
}

// Extract reads the PDF's pages in process and falls back to
// "pdftotext -layout -enc UTF-8 <file> -" when that yields nothing.
func (e *Extractor) Extract(ctx context.Context, data []byte, _ string) (*domain.ExtractedText, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF- header", domain.ErrExtraction)
	}

	pages, readErr := e.readPages(data)
	if readErr == nil {
		text := strings.Join(pages, "\f")
		if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) != "" {
			return normalisers.Result(text, extractTitle(text), true)
		}
		readErr = errors.New("no text layer")
	}
	if e.runner == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, readErr)
	}

	logger.Debug("pdf: in-process reader failed (%v), trying %s", readErr, toolName)
	return e.extractWithTool(ctx, data, readErr)
}

func (e *Extractor) extractWithTool(ctx context.Context, data []byte, readErr error) (*domain.ExtractedText, error) {
	tmp, err := os.CreateTemp("", "grantkb-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %w", domain.ErrExtraction, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: writing temp file: %w", domain.ErrExtraction, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: writing temp file: %w", domain.ErrExtraction, err)
	}

	out, err := e.runner.Run(ctx, toolName, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, fmt.Errorf("%w: %w (reader: %v)\n%s", domain.ErrExtraction, err, readErr, InstallInstructions())
		}
		return nil, fmt.Errorf("%w: pdftotext failed: %w", domain.ErrExtraction, err)
	}

	text := string(out)
	return normalisers.Result(text, extractTitle(text), true)
}

// extractTitle returns the first non-empty, reasonably short line.
func extractTitle(content string) string {
	for line := range strings.Lines(content) {
		line = strings.TrimSpace(strings.ReplaceAll(line, "\f", ""))
		if line != "" && len(line) < maxTitleLength {
			return strings.Join(strings.Fields(line), " ")
		}
	}
	return ""
}

// CheckAvailable reports whether pdftotext can be found in PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions explains how to install pdftotext.
func InstallInstructions() string {
	return `Some PDFs can only be read with pdftotext (part of poppler).

Install it with:
  macOS:          brew install poppler
  Debian/Ubuntu:  sudo apt install poppler-utils
  Fedora:         sudo dnf install poppler-utils`
}
