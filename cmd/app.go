package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/database"
	"github.com/killallgit/testimony-api/internal/services/cache"
	"github.com/killallgit/testimony-api/internal/services/chunker"
	"github.com/killallgit/testimony-api/internal/services/cleanup"
	"github.com/killallgit/testimony-api/internal/services/embeddings"
	"github.com/killallgit/testimony-api/internal/services/fingerprint"
	"github.com/killallgit/testimony-api/internal/services/indexer"
	"github.com/killallgit/testimony-api/internal/services/ingestion"
	"github.com/killallgit/testimony-api/internal/services/jobs"
	"github.com/killallgit/testimony-api/internal/services/prompts"
	"github.com/killallgit/testimony-api/internal/services/storage"
	"github.com/killallgit/testimony-api/internal/services/summary"
	"github.com/killallgit/testimony-api/internal/services/testimonies"
	"github.com/killallgit/testimony-api/internal/services/transcription"
	"github.com/killallgit/testimony-api/internal/services/workers"
	"github.com/killallgit/testimony-api/pkg/clock"
	"github.com/killallgit/testimony-api/pkg/config"
	"github.com/killallgit/testimony-api/pkg/ffmpeg"
	"github.com/killallgit/testimony-api/pkg/logger"
)

// app wires every service from the loaded configuration. Commands build
// one and use the parts they need.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db          *database.DB
	testimonies testimonies.Repository
	jobs        jobs.Service
	store       storage.Store
	prompts     *prompts.Registry
	engine      *summary.Engine
	indexer     *indexer.Indexer // nil without an embeddings key
	queryCache  *cache.MemoryCache
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	db, err := database.FromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	store, err := storage.FromConfig(cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring storage: %w", err)
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		testimonies: testimonies.NewRepository(db.DB),
		jobs:        jobs.NewService(jobs.NewRepository(db.DB), clock.New(), log),
		store:       store,
		prompts:     prompts.NewRegistry(db.DB),
	}

	prompt, err := summary.PromptFromConfig(cfg.Summary)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading summary prompt: %w", err)
	}
	model, err := summary.NewChatModelFromConfig(ctx, cfg.Summary)
	if err != nil {
		log.WithError(err).Warn("Summary model unavailable, summaries will be skipped")
		model = nil
	}
	a.engine = summary.NewEngine(model, prompt, a.prompts, log)

	if strings.TrimSpace(cfg.Embeddings.APIKey) == "" {
		log.Warn("No embeddings API key configured, indexing and search are disabled")
	} else {
		ch, err := chunker.FromConfig(cfg.Chunking)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring chunker: %w", err)
		}
		var embedder embeddings.Embedder = embeddings.FromConfig(cfg.Embeddings, log)
		if cfg.Embeddings.QueryCacheMB > 0 {
			a.queryCache = cache.NewMemoryCache(cfg.Embeddings.QueryCacheMB, clock.New())
			embedder = embeddings.NewCachedEmbedder(embedder, a.queryCache, cfg.Embeddings.QueryCacheTTL)
		}
		a.indexer = indexer.New(db.DB, ch, embedder, log)
	}

	return a, nil
}

func (a *app) Close() error {
	if a.queryCache != nil {
		a.queryCache.Stop()
	}
	return a.db.Close()
}

func (a *app) gateway() *ingestion.Gateway {
	tool := ffmpeg.New(a.cfg.Processing.FFmpegPath, a.cfg.Processing.FFprobePath, a.cfg.Processing.FFmpegTimeout)
	fp := fingerprint.New(tool, a.cfg.Storage.TempDir, a.cfg.Processing.FingerprintWindow, a.log)
	return ingestion.NewGateway(a.cfg.Ingestion, a.testimonies, a.jobs, a.store, fp, clock.New(), a.log)
}

// workerPool builds a pool with the transcription processor registered
func (a *app) workerPool() *workers.WorkerPool {
	var ix workers.Indexer
	if a.indexer != nil {
		ix = a.indexer
	}

	processor := workers.NewTranscriptionProcessor(
		a.jobs,
		a.testimonies,
		a.store,
		transcription.NewOpenAITranscriber(a.cfg.Transcription),
		a.engine,
		ix,
		workers.TranscriptionOptions{
			TempDir:  a.cfg.Storage.TempDir,
			Language: a.cfg.Transcription.Language,
			Policy: workers.RetryPolicy{
				MaxRetries: a.cfg.Processing.MaxRetries,
				BaseDelay:  a.cfg.Processing.RetryBaseDelay,
			},
		},
		a.log,
	)

	pool := workers.NewWorkerPool(a.jobs, a.cfg.Processing.Workers, a.cfg.Processing.PollInterval, a.log)
	pool.RegisterProcessor(processor)
	pool.SetJobTimeout(a.cfg.Processing.JobTimeout)
	return pool
}

func (a *app) cleanupService() *cleanup.Service {
	return cleanup.NewService(cleanup.Options{
		TempDir:       a.cfg.Storage.TempDir,
		MaxAge:        a.cfg.Storage.MaxTempAge,
		Interval:      a.cfg.Storage.CleanupInterval,
		StaleJobAfter: a.cfg.Processing.StaleJobAfter,
		RetentionDays: a.cfg.Processing.JobRetentionDays,
	}, a.jobs, clock.New(), a.log)
}

// apiDependencies assembles handler dependencies. pool may be nil.
func (a *app) apiDependencies(pool *workers.WorkerPool) *types.Dependencies {
	deps := &types.Dependencies{
		DB:          a.db,
		Ingestion:   a.gateway(),
		Testimonies: a.testimonies,
		JobService:  a.jobs,
		Prompts:     a.prompts,
		Logger:      a.log,
		Version:     Version,
	}
	if pool != nil {
		deps.WorkerPool = pool
	}
	if a.indexer != nil {
		deps.Search = a.indexer
	}
	return deps
}
