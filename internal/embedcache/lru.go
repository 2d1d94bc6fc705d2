package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
)

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := l.next.ModelName()
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i], _, _ = buildCacheKey(modelName, taskType, text)
	}
	hits := 0
	out, err := embedMisses(ctx, l.next, texts,
		func(i int) ([]float32, bool) {
			cached, ok := l.cache.Get(keys[i])
			if ok {
				hits++
				return cloneEmbedding(cached), true
			}
			return nil, false
		},
		func(i int, vec []float32) {
			l.cache.Add(keys[i], cloneEmbedding(vec))
		},
	)
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	return out, err
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}
