package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/model"
	"github.com/H0NEYP0T-466/RAGbot/internal/repo"
)

func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	logger := logutil.GetLogger(ctx)
	hashes := make([]string, len(texts))
	var modelName string
	for i, text := range texts {
		_, hashes[i], modelName = buildCacheKey(d.next.ModelName(), taskType, text)
	}
	hits := 0
	now := time.Now().Unix()
	out, err := embedMisses(ctx, d.next, texts,
		func(i int) ([]float32, bool) {
			values, ok, err := d.repo.Get(ctx, modelName, taskType, hashes[i])
			if err != nil {
				logger.Warn("read embedding cache failed", zap.Error(err))
				return nil, false
			}
			if ok {
				hits++
			}
			return values, ok
		},
		func(i int, vec []float32) {
			if err := d.repo.Save(ctx, &model.EmbeddingCacheEntry{
				ModelName:   modelName,
				TaskType:    taskType,
				ContentHash: hashes[i],
				Embedding:   vec,
				Ctime:       now,
			}); err != nil {
				logger.Warn("failed to cache embedding", zap.Error(err))
			}
		},
	)
	if hits > 0 {
		logger.Debug("embedding cache hit (db)", zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	return out, err
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
