package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
)

type fakeGenerator struct {
	contextText string
	question    string
	err         error
}

func (g *fakeGenerator) Chat(_ context.Context, _ string, contextText, question string) (*ai.ChatResponse, error) {
	g.contextText = contextText
	g.question = question
	if g.err != nil {
		return nil, &ai.GenerationError{Err: g.err}
	}
	return &ai.ChatResponse{
		Content: "answer",
		Usage:   ai.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}, nil
}

type fakeRecorder struct {
	turns int
	err   error
}

func (r *fakeRecorder) Append(context.Context, string, string) error {
	if r.err != nil {
		return r.err
	}
	r.turns++
	return nil
}

func TestScoreIsMonotonicAndBounded(t *testing.T) {
	assert.InDelta(t, 1.0, Score(0), 1e-6)
	prev := Score(0)
	for _, d := range []float32{0.1, 0.5, 1, 4, 100} {
		s := Score(d)
		assert.Less(t, s, prev)
		assert.Greater(t, s, 0.0)
		prev = s
	}
}

func TestBuildContext(t *testing.T) {
	chunks := []model.Chunk{
		{Content: "page text", Metadata: model.ChunkMetadata{Source: "m.pdf", Page: model.PageOf(3)}},
		{Content: "plain", Metadata: model.ChunkMetadata{Source: "a.txt"}},
	}
	assert.Equal(t, "[Document 1 - m.pdf (page 3)]\npage text\n\n[Document 2 - a.txt]\nplain", BuildContext(chunks))
	assert.Equal(t, "", BuildContext(nil))
}

func TestQuerySkyGrass(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, "", 20, 5)
	require.NoError(t, removeJournal(f))
	f.write(t, "sky.txt", "The sky is blue.")
	f.write(t, "grass.txt", "Grass is green.")
	_, chunks, err := f.svc.IndexDocuments(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, chunks)

	gen := &fakeGenerator{}
	rec := &fakeRecorder{}
	reindexed := 0
	svc := NewChatService(ChatConfig{SimilarityK: 1}, f.store, gen, rec, func(context.Context) bool {
		reindexed++
		return true
	})
	res, err := svc.Query(ctx, "What color is the sky?")
	require.NoError(t, err)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "sky.txt", res.Sources[0].Source)
	assert.Greater(t, res.Sources[0].Score, 0.0)
	assert.LessOrEqual(t, res.Sources[0].Score, 1.0)
	assert.Contains(t, gen.contextText, "The sky is blue.")
	assert.Equal(t, "answer", res.Response)
	assert.Equal(t, model.TokenUsage{Prompt: 10, Completion: 2, Total: 12}, res.Tokens)
	assert.Equal(t, 1, rec.turns)
	assert.Equal(t, 1, reindexed)
}

func TestQueryEmptyIndex(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	gen := &fakeGenerator{}
	svc := NewChatService(ChatConfig{SimilarityK: 5}, f.store, gen, nil, nil)
	res, err := svc.Query(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Equal(t, "answer", res.Response)
	assert.Equal(t, "", gen.contextText)
}

func TestQueryRejectsBlank(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	gen := &fakeGenerator{}
	svc := NewChatService(ChatConfig{SimilarityK: 5}, f.store, gen, nil, nil)
	_, err := svc.Query(context.Background(), "  \n")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	assert.Empty(t, gen.question)
}

func TestQueryGenerationFailureSkipsJournal(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	rec := &fakeRecorder{}
	reindexed := false
	svc := NewChatService(ChatConfig{SimilarityK: 5}, f.store, &fakeGenerator{err: errors.New("boom")}, rec, func(context.Context) bool {
		reindexed = true
		return true
	})
	_, err := svc.Query(context.Background(), "hello")
	var genErr *ai.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 0, rec.turns)
	assert.False(t, reindexed)
}

func TestQueryJournalFailureStillAnswers(t *testing.T) {
	f := newIngestFixture(t, "", 20, 5)
	reindexed := false
	svc := NewChatService(ChatConfig{SimilarityK: 5}, f.store, &fakeGenerator{}, &fakeRecorder{err: errors.New("disk")}, func(context.Context) bool {
		reindexed = true
		return true
	})
	res, err := svc.Query(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Response)
	assert.False(t, reindexed)
}

func removeJournal(f *ingestFixture) error {
	return os.Remove(f.journal.Path())
}
