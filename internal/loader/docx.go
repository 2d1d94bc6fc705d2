package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

// DocxLoader extracts paragraph text from word/document.xml. Legacy binary
// .doc files are routed here too and fail with ErrInvalidInput, which the
// ingestion pipeline logs and skips.
type DocxLoader struct{}

func NewDocxLoader() *DocxLoader {
	return &DocxLoader{}
}

func (l *DocxLoader) Type() model.SourceType {
	return model.SourceTypeDocx
}

func (l *DocxLoader) Load(_ context.Context, path string) ([]model.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", ErrInvalidInput)
	}
	defer reader.Close()

	content, err := documentText(&reader.Reader)
	if err != nil {
		return nil, err
	}
	return []model.Document{{
		Content: content,
		Source:  filepath.Base(path),
		Type:    model.SourceTypeDocx,
	}}, nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
		Tables     []tableXML     `xml:"tbl"`
	} `xml:"body"`
}

type paragraphXML struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
		Tab []struct{} `xml:"tab"`
	} `xml:"r"`
}

type tableXML struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []paragraphXML `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func documentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", ErrInvalidInput)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", ErrInvalidInput)
		}
		return parseDocumentXML(data)
	}
	return "", fmt.Errorf("word/document.xml missing: %w", ErrInvalidInput)
}

func parseDocumentXML(data []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode document.xml: %w", ErrInvalidInput)
	}
	var paras []string
	for _, p := range doc.Body.Paragraphs {
		paras = append(paras, p.text())
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var parts []string
				for _, p := range cell.Paragraphs {
					if txt := p.text(); txt != "" {
						parts = append(parts, txt)
					}
				}
				cells = append(cells, strings.Join(parts, " "))
			}
			paras = append(paras, strings.Join(cells, "\t"))
		}
	}
	return strings.TrimSpace(strings.Join(paras, "\n")), nil
}

func (p paragraphXML) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for range r.Tab {
			sb.WriteByte('\t')
		}
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}
