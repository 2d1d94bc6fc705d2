package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

// ErrPDFToolNotFound means pdftotext (poppler-utils) is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
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

// PDFLoader extracts text with pdftotext and emits one document per page.
// Pages are numbered from 1.
type PDFLoader struct {
	runner CommandRunner
}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{runner: execRunner{}}
}

func NewPDFLoaderWithRunner(runner CommandRunner) *PDFLoader {
	return &PDFLoader{runner: runner}
}

func (l *PDFLoader) Type() model.SourceType {
	return model.SourceTypePDF
}

func (l *PDFLoader) Load(ctx context.Context, path string) ([]model.Document, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	source := filepath.Base(path)
	// pdftotext separates pages with a form feed
	pages := strings.Split(string(out), "\f")
	docs := make([]model.Document, 0, len(pages))
	for i, page := range pages {
		content := strings.TrimSpace(page)
		if content == "" {
			continue
		}
		docs = append(docs, model.Document{
			Content: content,
			Source:  source,
			Type:    model.SourceTypePDF,
			Page:    model.PageOf(i + 1),
		})
	}
	return docs, nil
}
