package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

type TextLoader struct{}

func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (l *TextLoader) Type() model.SourceType {
	return model.SourceTypeText
}

func (l *TextLoader) Load(_ context.Context, path string) ([]model.Document, error) {
	content, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	return []model.Document{{
		Content: content,
		Source:  filepath.Base(path),
		Type:    model.SourceTypeText,
	}}, nil
}

func readUTF8(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("not valid utf-8: %w", ErrInvalidInput)
	}
	return string(data), nil
}
