package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0NEYP0T-466/RAGbot/internal/model"
)

func mustNew(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := New(size, overlap)
	require.NoError(t, err)
	return s
}

func requireOverlap(t *testing.T, chunks []string, overlap int) {
	t.Helper()
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		want := overlap
		if len(prev) < want {
			want = len(prev)
		}
		suffix := string(prev[len(prev)-want:])
		assert.Truef(t, strings.HasPrefix(chunks[i], suffix),
			"chunk %d %q should start with %q", i, chunks[i], suffix)
	}
}

func TestNewRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "overlap equals size", size: 100, overlap: 100},
		{name: "overlap exceeds size", size: 100, overlap: 150},
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			require.Error(t, err)
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	s := mustNew(t, 20, 5)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("  \n\n \n"))
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := mustNew(t, 1000, 200)
	chunks := s.Split("hello world")
	require.Equal(t, []string{"hello world"}, chunks)
}

func TestSplitSkyScenario(t *testing.T) {
	s := mustNew(t, 20, 5)
	chunks := s.Split("The sky is blue. The grass is green.")
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 20)
	}
	assert.Equal(t, "The sky is blue. The", chunks[0])
	requireOverlap(t, chunks, 5)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "green."))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	s := mustNew(t, 30, 0)
	text := "first paragraph here\n\nsecond paragraph here\n\nthird"
	chunks := s.Split(text)
	require.Equal(t, []string{"first paragraph here", "second paragraph here\n\nthird"}, chunks)
}

func TestSplitFallsBackToCharacters(t *testing.T) {
	s := mustNew(t, 4, 1)
	chunks := s.Split("abcdefghij")
	require.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
	requireOverlap(t, chunks, 1)
}

func TestSplitBoundsAndOverlapProperty(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet, consectetur adipiscing elit.\n", 12) +
		"\n\n" + strings.Repeat("sed do eiusmod tempor incididunt ut labore ", 9)
	for _, params := range [][2]int{{50, 10}, {80, 0}, {120, 30}, {33, 7}} {
		s := mustNew(t, params[0], params[1])
		chunks := s.Split(text)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), params[0])
		}
		requireOverlap(t, chunks, params[1])
	}
}

// sharedEdge returns the length of the longest suffix of prev that is also a
// prefix of next.
func sharedEdge(prev, next string) int {
	p, n := []rune(prev), []rune(next)
	for l := min(len(p), len(n)); l > 0; l-- {
		if string(p[len(p)-l:]) == string(n[:l]) {
			return l
		}
	}
	return 0
}

func TestSplitCarriesExactOverlap(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("a%03d", i)
	}
	text := strings.Join(words, " ")
	for _, params := range [][2]int{{40, 10}, {60, 12}, {25, 7}} {
		size, overlap := params[0], params[1]
		chunks := mustNew(t, size, overlap).Split(text)
		require.Greater(t, len(chunks), 2)
		rebuilt := chunks[0]
		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), size)
			if i == 0 {
				continue
			}
			assert.Equalf(t, overlap, sharedEdge(chunks[i-1], c), "chunks %d and %d", i-1, i)
			rebuilt += string([]rune(c)[overlap:])
		}
		assert.Equal(t, text, rebuilt)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	s := mustNew(t, 40, 8)
	text := strings.Repeat("one two three four five six seven eight nine ten\n", 5)
	assert.Equal(t, s.Split(text), s.Split(text))
}

func TestSplitMultibyte(t *testing.T) {
	s := mustNew(t, 5, 2)
	chunks := s.Split("日本語のテキストです")
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 5)
		assert.True(t, utf8.ValidString(c))
	}
	requireOverlap(t, chunks, 2)
}

func TestSplitDocumentsCarriesMetadata(t *testing.T) {
	s := mustNew(t, 20, 5)
	docs := []model.Document{
		{Content: "The sky is blue. The grass is green.", Source: "colors.txt", Type: model.SourceTypeText},
		{Content: "page two body", Source: "manual.pdf", Type: model.SourceTypePDF, Page: model.PageOf(2)},
	}
	chunks := s.SplitDocuments(context.Background(), docs)
	require.GreaterOrEqual(t, len(chunks), 3)
	seen := map[string]bool{}
	for _, c := range chunks {
		require.NotEmpty(t, c.ID)
		require.False(t, seen[c.ID])
		seen[c.ID] = true
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, "manual.pdf", last.Metadata.Source)
	assert.Equal(t, model.SourceTypePDF, last.Metadata.Type)
	require.NotNil(t, last.Metadata.Page)
	assert.Equal(t, 2, *last.Metadata.Page)
	assert.Equal(t, "colors.txt", chunks[0].Metadata.Source)
	assert.Nil(t, chunks[0].Metadata.Page)
}
