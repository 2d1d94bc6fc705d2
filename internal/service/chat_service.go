package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	appErr "github.com/H0NEYP0T-466/RAGbot/internal/pkg/errors"
	"github.com/H0NEYP0T-466/RAGbot/internal/vectorstore"
)

const scoreEpsilon = 1e-8

type Generator interface {
	Chat(ctx context.Context, systemPrompt, contextText, question string) (*ai.ChatResponse, error)
}

type TurnRecorder interface {
	Append(ctx context.Context, question, answer string) error
}

type ChatConfig struct {
	SimilarityK  int
	SystemPrompt string
}

// ChatService answers questions from the indexed corpus and records each
// completed turn so it can be folded back into the index.
type ChatService struct {
	cfg       ChatConfig
	store     vectorstore.Store
	generator Generator
	recorder  TurnRecorder
	reindex   func(ctx context.Context) bool
}

// NewChatService wires the query path. reindex is called after every
// recorded turn and must not block; it may be nil.
func NewChatService(cfg ChatConfig, store vectorstore.Store, generator Generator, recorder TurnRecorder, reindex func(ctx context.Context) bool) *ChatService {
	return &ChatService{
		cfg:       cfg,
		store:     store,
		generator: generator,
		recorder:  recorder,
		reindex:   reindex,
	}
}

// Score maps a squared L2 distance into (0, 1]; smaller distances score higher.
func Score(distance float32) float64 {
	return 1 / (1 + float64(distance) + scoreEpsilon)
}

type retrievedChunk struct {
	chunk model.Chunk
	score float64
}

func (s *ChatService) retrieve(ctx context.Context, question string) ([]retrievedChunk, error) {
	if !s.store.Initialized() {
		logutil.GetLogger(ctx).Warn("vector store is not initialized, no documents indexed")
		return nil, nil
	}
	hits, err := s.store.Search(ctx, question, s.cfg.SimilarityK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	out := make([]retrievedChunk, 0, len(hits))
	for _, hit := range hits {
		out = append(out, retrievedChunk{chunk: hit.Chunk, score: Score(hit.Distance)})
	}
	return out, nil
}

func BuildContext(chunks []model.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		pageInfo := ""
		if c.Metadata.Page != nil {
			pageInfo = fmt.Sprintf(" (page %d)", *c.Metadata.Page)
		}
		parts = append(parts, fmt.Sprintf("[Document %d - %s%s]\n%s", i+1, c.Metadata.Source, pageInfo, c.Content))
	}
	return strings.Join(parts, "\n\n")
}

func (s *ChatService) Query(ctx context.Context, question string) (*model.ChatResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("message must not be empty: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx)
	start := time.Now()
	logger.Info("query started", zap.Int("question_chars", len([]rune(question))))

	retrieved, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	chunks := make([]model.Chunk, 0, len(retrieved))
	sources := make([]model.Source, 0, len(retrieved))
	for _, r := range retrieved {
		chunks = append(chunks, r.chunk)
		sources = append(sources, model.Source{
			Source: r.chunk.Metadata.Source,
			Page:   r.chunk.Metadata.Page,
			Score:  r.score,
		})
		logger.Debug("retrieved chunk",
			zap.String("source", r.chunk.Metadata.Source),
			zap.Float64("score", r.score),
		)
	}
	logger.Info("retrieval complete", zap.Int("k", s.cfg.SimilarityK), zap.Int("retrieved", len(retrieved)))

	resp, err := s.generator.Chat(ctx, s.cfg.SystemPrompt, BuildContext(chunks), question)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, err
	}
	logger.Info("response generated",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("cost", time.Since(start)),
	)

	if s.recorder != nil {
		if err := s.recorder.Append(ctx, question, resp.Content); err != nil {
			logger.Error("failed to append conversation to journal", zap.Error(err))
		} else if s.reindex != nil && !s.reindex(ctx) {
			logger.Warn("failed to schedule conversation re-indexing")
		}
	}

	return &model.ChatResult{
		Response: resp.Content,
		Sources:  sources,
		Tokens: model.TokenUsage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}
