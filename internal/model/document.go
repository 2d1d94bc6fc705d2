package model

type SourceType string

const (
	SourceTypePDF      SourceType = "pdf"
	SourceTypeMarkdown SourceType = "markdown"
	SourceTypeText     SourceType = "text"
	SourceTypeDocx     SourceType = "docx"
)

// Document is one normalized record produced by a loader. PDF loaders emit
// one Document per page; other formats emit a single Document per file.
type Document struct {
	Content string     `json:"content"`
	Source  string     `json:"source"`
	Type    SourceType `json:"type"`
	Page    *int       `json:"page,omitempty"`
}

func PageOf(n int) *int {
	return &n
}
