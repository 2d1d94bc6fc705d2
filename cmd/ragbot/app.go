package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/ai"
	"github.com/H0NEYP0T-466/RAGbot/internal/chunker"
	"github.com/H0NEYP0T-466/RAGbot/internal/config"
	"github.com/H0NEYP0T-466/RAGbot/internal/db"
	"github.com/H0NEYP0T-466/RAGbot/internal/embedcache"
	"github.com/H0NEYP0T-466/RAGbot/internal/job"
	"github.com/H0NEYP0T-466/RAGbot/internal/journal"
	"github.com/H0NEYP0T-466/RAGbot/internal/loader"
	"github.com/H0NEYP0T-466/RAGbot/internal/repo"
	"github.com/H0NEYP0T-466/RAGbot/internal/schedule"
	"github.com/H0NEYP0T-466/RAGbot/internal/service"
	"github.com/H0NEYP0T-466/RAGbot/internal/vectorstore"
)

const cacheFile = "cache.db"

type app struct {
	ingest    *service.IngestService
	chat      *service.ChatService
	journal   *journal.Journal
	queue     *schedule.Queue
	cacheRepo *repo.EmbeddingCacheRepo

	cacheDB *sql.DB
	redis   *redis.Client
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	embedder, err := a.buildEmbedder(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	chatProvider, err := ai.NewProvider(cfg.LLM.Provider, cfg.LLM.Data)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	manager := ai.NewManager(chatProvider, ai.ManagerConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	logutil.GetLogger(ctx).Info("ai providers ready",
		zap.String("llm", manager.ProviderName()),
		zap.String("embedding_model", embedder.ModelName()),
	)

	a.journal, err = journal.New(ctx, cfg.JournalFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	store := vectorstore.NewMemory(embedder, cfg.IndexDir)
	a.ingest = service.NewIngestService(service.IngestConfig{
		DataFolder:  cfg.DataFolder,
		JournalMode: cfg.Reindex.JournalMode,
	}, loader.DefaultRegistry(), splitter, store, a.journal)

	a.queue = schedule.NewQueue(cfg.Reindex.QueueSize, time.Duration(cfg.Reindex.Timeout)*time.Second)
	journalJob := job.NewJournalReindexJob(a.ingest)
	a.chat = service.NewChatService(service.ChatConfig{
		SimilarityK:  cfg.SimilarityK,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, store, manager, a.journal, func(context.Context) bool {
		return a.queue.Enqueue(journalJob)
	})
	return a, nil
}

// buildEmbedder assembles the provider chain and wraps it in the cache
// tiers, fastest outermost: LRU, redis, sqlite.
func (a *app) buildEmbedder(ctx context.Context, cfg *config.Config) (ai.IEmbedder, error) {
	logger := logutil.GetLogger(ctx)
	providers := append([]config.EmbeddingProviderConfig{cfg.Embedding.EmbeddingProviderConfig}, cfg.Embedding.Fallback...)
	entries := make([]ai.EmbedderEntry, 0, len(providers))
	for i, pc := range providers {
		args := pc.Data
		if pc.Provider == "local" && cfg.Embedding.Dimension > 0 {
			if args == nil {
				args = map[string]interface{}{}
			}
			if _, ok := args["dimension"]; !ok {
				args["dimension"] = cfg.Embedding.Dimension
			}
		}
		p, err := ai.NewEmbedProvider(pc.Provider, args)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("init embedding provider %s: %w", pc.Provider, err)
			}
			logger.Warn("skip fallback embedding provider", zap.String("provider", pc.Provider), zap.Error(err))
			continue
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     pc.Provider,
			Embedder: ai.NewEmbedder(p, pc.Model, cfg.Embedding.BatchSize),
		})
	}
	embedder := ai.NewGroupEmbedder(entries)

	cacheCfg := cfg.Embedding.Cache
	if cacheCfg.DB {
		conn, err := db.OpenWithSchema(ctx, filepath.Join(cfg.IndexDir, cacheFile), db.SchemaCache)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		a.cacheDB = conn
		a.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, a.cacheRepo)
	}
	client, err := embedcache.NewRedisClient(ctx, embedcache.RedisConfig{
		Addr:     cacheCfg.Redis.Addr,
		Password: cacheCfg.Redis.Password,
		DB:       cacheCfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis embedding cache disabled", zap.Error(err))
	} else if client != nil {
		a.redis = client
		embedder = embedcache.WrapRedisCacheToEmbedder(embedder, client, time.Duration(cacheCfg.Redis.TTL)*time.Second)
	}
	if cacheCfg.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cacheCfg.LRUSize, time.Duration(cacheCfg.LRUTTL)*time.Second)
	}
	logger.Info("embedder ready", zap.String("model", embedder.ModelName()))
	return embedder, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.cacheDB != nil {
		_ = a.cacheDB.Close()
	}
}
