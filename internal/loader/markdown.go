package loader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

// MarkdownLoader strips markdown syntax and keeps the readable text, one
// block per paragraph, so the chunker can split on blank lines.
type MarkdownLoader struct {
	md goldmark.Markdown
}

func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{md: goldmark.New()}
}

func (l *MarkdownLoader) Type() model.SourceType {
	return model.SourceTypeMarkdown
}

func (l *MarkdownLoader) Load(_ context.Context, path string) ([]model.Document, error) {
	raw, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	return []model.Document{{
		Content: l.plainText([]byte(raw)),
		Source:  filepath.Base(path),
		Type:    model.SourceTypeMarkdown,
	}}, nil
}

func (l *MarkdownLoader) plainText(source []byte) string {
	doc := l.md.Parser().Parse(text.NewReader(source))
	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if block := blockText(node, source); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func blockText(n ast.Node, source []byte) string {
	switch n := n.(type) {
	case *ast.FencedCodeBlock:
		return linesText(n.Lines(), source)
	case *ast.CodeBlock:
		return linesText(n.Lines(), source)
	case *ast.HTMLBlock:
		return ""
	case *ast.List:
		var items []string
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			if txt := inlineText(item, source); txt != "" {
				items = append(items, txt)
			}
		}
		return strings.Join(items, "\n")
	default:
		return inlineText(n, source)
	}
}

func linesText(lines *text.Segments, source []byte) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock && node != n && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if seg, ok := c.(*ast.Text); ok {
					sb.Write(seg.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
