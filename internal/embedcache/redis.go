package embedcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings. An empty address disables the tier.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func WrapRedisCacheToEmbedder(e ai.IEmbedder, client *redis.Client, ttl time.Duration) ai.IEmbedder {
	if e == nil || client == nil {
		return e
	}
	return &redisEmbedder{next: e, client: client, ttl: ttl}
}

type redisEmbedder struct {
	next   ai.IEmbedder
	client *redis.Client
	ttl    time.Duration
}

func (r *redisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	logger := logutil.GetLogger(ctx)
	modelName := r.next.ModelName()
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i], _, _ = buildCacheKey(modelName, taskType, text)
	}
	cached := make([]interface{}, len(texts))
	if vals, err := r.client.MGet(ctx, keys...).Result(); err != nil {
		logger.Warn("read redis embedding cache failed", zap.Error(err))
	} else {
		cached = vals
	}
	pipe := r.client.Pipeline()
	out, err := embedMisses(ctx, r.next, texts,
		func(i int) ([]float32, bool) {
			raw, ok := cached[i].(string)
			if !ok {
				return nil, false
			}
			var vec []float32
			if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
				return nil, false
			}
			return vec, true
		},
		func(i int, vec []float32) {
			data, err := json.Marshal(vec)
			if err != nil {
				return
			}
			pipe.Set(ctx, keys[i], data, r.ttl)
		},
	)
	if err != nil {
		return nil, err
	}
	if pipe.Len() > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("failed to cache embedding in redis", zap.Error(err))
		}
	}
	return out, nil
}

func (r *redisEmbedder) ModelName() string {
	return r.next.ModelName()
}
