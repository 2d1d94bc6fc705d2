package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/H0NEYP0T-466/RAGbot/internal/config"
	"github.com/H0NEYP0T-466/RAGbot/internal/handler"
	"github.com/H0NEYP0T-466/RAGbot/internal/job"
	"github.com/H0NEYP0T-466/RAGbot/internal/middleware"
	"github.com/H0NEYP0T-466/RAGbot/internal/schedule"
	"github.com/H0NEYP0T-466/RAGbot/internal/watch"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragbot",
		Short: "retrieval-augmented chat server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragbot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the index from the data folder and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runReindex(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json, toml or yaml)")
	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runReindex(cfg *config.Config) error {
	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	docs, chunks, err := app.ingest.IndexDocuments(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	logutil.GetLogger(ctx).Info("reindex finished", zap.Int("documents", docs), zap.Int("chunks", chunks))
	return nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	lg := logutil.GetLogger(ctx)
	lg.Info("starting server",
		zap.String("addr", cfg.Addr()),
		zap.String("data_folder", cfg.DataFolder),
		zap.String("index_dir", cfg.IndexDir),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	docs, chunks, err := app.ingest.LoadOrCreate(ctx)
	if err != nil {
		lg.Error("failed to initialize vector store", zap.Error(err))
	} else {
		lg.Info("vector store ready", zap.Int("documents", docs), zap.Int("chunks", chunks))
	}

	app.queue.Start(ctx)
	defer app.queue.Stop()

	scheduler := schedule.NewCronScheduler()
	fullReindex := job.NewFullReindexJob(app.ingest)
	if err := scheduler.AddJob(schedule.Enqueued(app.queue, fullReindex), cfg.Reindex.Cron); err != nil {
		return fmt.Errorf("schedule full reindex: %w", err)
	}
	if app.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(app.cacheRepo, cfg.Embedding.Cache.MaxAgeDays)
		if err := scheduler.AddJob(schedule.Enqueued(app.queue, cleanup), cfg.Reindex.CacheCleanCron); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	lg.Info("background jobs scheduled", zap.Int("jobs", scheduler.Len()))

	if cfg.Reindex.Watch {
		watcher := watch.New(cfg.DataFolder, app.ingest, time.Duration(cfg.Reindex.WatchDebounceMs)*time.Millisecond, func(path string) bool {
			return app.queue.Enqueue(job.NewFileReindexJob(app.ingest, path))
		})
		if err := watcher.Start(ctx); err != nil {
			lg.Warn("data folder watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	nextReindex := func() time.Time { return scheduler.Next(fullReindex.Name()) }
	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(app.chat),
		Index:         handler.NewIndexHandler(app.ingest, app.queue, nextReindex),
		History:       handler.NewHistoryHandler(app.journal),
		ChatRateLimit: time.Duration(cfg.ChatRateLimitMs) * time.Millisecond,
	}
	engine, err := webapi.NewEngine(
		"/",
		cfg.Addr(),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	lg.Info("http server listening", zap.String("addr", cfg.Addr()))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			lg.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("server stopping...")
	return nil
}
