// Package loader turns corpus files into normalized documents. Each loader
// handles one source type; the Registry picks a loader by file extension.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

var (
	// ErrUnsupported is returned for files whose extension has no loader.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrInvalidInput is returned when a file cannot be decoded by its loader.
	ErrInvalidInput = errors.New("invalid input")
)

// Loader reads one file and returns its documents. Source metadata is the
// file's basename.
type Loader interface {
	Type() model.SourceType
	Load(ctx context.Context, path string) ([]model.Document, error)
}

// TypeFromExt maps a file extension (with or without the dot) to a source
// type. The second result is false for unrecognized extensions.
func TypeFromExt(ext string) (model.SourceType, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return model.SourceTypePDF, true
	case "md":
		return model.SourceTypeMarkdown, true
	case "txt":
		return model.SourceTypeText, true
	case "docx", "doc":
		return model.SourceTypeDocx, true
	default:
		return "", false
	}
}

type Registry struct {
	loaders map[model.SourceType]Loader
}

func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{loaders: make(map[model.SourceType]Loader, len(loaders))}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in loader.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewTextLoader(),
		NewMarkdownLoader(),
		NewDocxLoader(),
		NewPDFLoader(),
	)
}

func (r *Registry) Register(l Loader) {
	r.loaders[l.Type()] = l
}

func (r *Registry) ForPath(path string) (Loader, bool) {
	t, ok := TypeFromExt(filepath.Ext(path))
	if !ok {
		return nil, false
	}
	l, ok := r.loaders[t]
	return l, ok
}

// Supported reports whether path has an extension some registered loader handles.
func (r *Registry) Supported(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Extensions lists the recognized extensions without the leading dot.
func (r *Registry) Extensions() []string {
	var exts []string
	for _, ext := range []string{"pdf", "md", "txt", "docx", "doc"} {
		t, _ := TypeFromExt(ext)
		if _, ok := r.loaders[t]; ok {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) Load(ctx context.Context, path string) ([]model.Document, error) {
	l, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	docs, err := l.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", l.Type(), filepath.Base(path), err)
	}
	return docs, nil
}
