package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into windows of at most size characters, carrying the
// trailing overlap characters of each window into the next one.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// unit is an indivisible piece of text together with the separator that
// joined it to the previous unit in the source.
type unit struct {
	sep  string
	text string
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	units := s.decompose(text, "", s.separators)
	return s.merge(units)
}

// SplitDocuments chunks every document and carries its metadata into the
// chunks. Each chunk gets a fresh id.
func (s *Splitter) SplitDocuments(ctx context.Context, docs []model.Document) []model.Chunk {
	var chunks []model.Chunk
	for _, doc := range docs {
		for _, piece := range s.Split(doc.Content) {
			chunks = append(chunks, model.Chunk{
				ID:      uuid.NewString(),
				Content: piece,
				Metadata: model.ChunkMetadata{
					Source: doc.Source,
					Type:   doc.Type,
					Page:   doc.Page,
				},
			})
		}
	}
	logutil.GetLogger(ctx).Debug("documents split",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", s.size),
		zap.Int("chunk_overlap", s.overlap),
	)
	return chunks
}

func (s *Splitter) decompose(text, lead string, seps []string) []unit {
	sep, rest := pickSeparator(text, seps)
	var pieces []string
	if sep == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, sep)
	}
	out := make([]unit, 0, len(pieces))
	for i, piece := range pieces {
		join := sep
		if i == 0 {
			join = lead
		}
		if piece == "" {
			if i > 0 && sep != "" {
				// keep consecutive separators so the text round-trips
				out = append(out, unit{sep: join})
			}
			continue
		}
		if runeLen(piece) <= s.size || len(rest) == 0 {
			out = append(out, unit{sep: join, text: piece})
			continue
		}
		out = append(out, s.decompose(piece, join, rest)...)
	}
	return out
}

func (s *Splitter) merge(units []unit) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
		fresh  bool
	)
	emit := func() {
		if fresh && strings.TrimSpace(cur.String()) != "" {
			chunks = append(chunks, cur.String())
		}
	}
	for _, u := range units {
		addLen := runeLen(u.sep) + runeLen(u.text)
		if curLen == 0 {
			if u.text == "" {
				continue
			}
			cur.WriteString(u.text)
			curLen = runeLen(u.text)
			fresh = true
			continue
		}
		if curLen+addLen <= s.size {
			cur.WriteString(u.sep)
			cur.WriteString(u.text)
			curLen += addLen
			fresh = fresh || u.text != ""
			continue
		}
		emit()
		prev := cur.String()
		cur.Reset()
		if u.text == "" {
			// a bare separator never starts a window
			fresh = false
			keep := tail(prev, s.overlap)
			cur.WriteString(keep)
			curLen = runeLen(keep)
			continue
		}
		keepLen := s.overlap
		if room := s.size - addLen; room < keepLen {
			keepLen = room
		}
		if keepLen > 0 {
			keep := tail(prev, keepLen)
			cur.WriteString(keep)
			cur.WriteString(u.sep)
			curLen = runeLen(keep) + runeLen(u.sep)
		} else {
			curLen = 0
		}
		cur.WriteString(u.text)
		curLen += runeLen(u.text)
		fresh = true
	}
	emit()
	return chunks
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

func splitRunes(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func tail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
