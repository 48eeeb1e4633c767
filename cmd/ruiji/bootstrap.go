package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/extract"
	"github.com/hyperjump/ruiji/internal/ingest"
	"github.com/hyperjump/ruiji/internal/search"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/summarize"
)

// Components holds initialized services.
type Components struct {
	Runs     *storage.SQLiteStorage
	Embedder embedding.Embedder
	logger   *zap.Logger
}

func (c *Components) Close() {
	if c.Runs != nil {
		_ = c.Runs.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	runs, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run log: %w", err)
	}
	return &Components{
		Runs:     runs,
		Embedder: newEmbedder(&cfg.Embedding, logger),
		logger:   logger,
	}, nil
}

// newEmbedder returns the configured embedder. When the ONNX model cannot be
// loaded it falls back to the mock embedder so the service still starts.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) embedding.Embedder {
	if cfg.Provider == "mock" {
		return embedding.NewMockEmbedder(cfg.Dimensions)
	}
	onnx, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, falling back to mock embedder",
			zap.String("model_path", cfg.ModelPath),
			zap.Error(err))
		return embedding.NewMockEmbedder(cfg.Dimensions)
	}
	return onnx
}

// ingestDirectories runs the pipeline over every supported file under dirs and
// records the run. The run is recorded even when it aborts.
func (c *Components) ingestDirectories(ctx context.Context, cfg *config.Config, dirs []string, policy ingest.FailurePolicy) (*corpus.Corpus, *ingest.Report, error) {
	docs, err := ingest.Collect(dirs, cfg.Ingest.Extensions, cfg.Ingest.RecursiveOrDefault())
	if err != nil {
		return nil, nil, fmt.Errorf("collect documents: %w", err)
	}
	c.logger.Info("documents collected", zap.Strings("directories", dirs), zap.Int("documents", len(docs)))

	pipeline := ingest.NewPipeline(
		extract.NewExtractor(),
		summarize.NewFrequencySummarizer(cfg.Ingest.SummaryRatio, cfg.Ingest.MaxSummarySentences),
		c.Embedder,
		ingest.WithLogger(c.logger),
		ingest.WithPolicy(policy),
		ingest.WithDimensions(cfg.Embedding.Dimensions),
		ingest.WithWorkers(cfg.Ingest.Workers),
	)
	corp, report, runErr := pipeline.Run(ctx, docs)
	if report != nil {
		// A cancelled run still gets recorded.
		saveCtx := context.WithoutCancel(ctx)
		if err := c.Runs.SaveRun(saveCtx, report.Run()); err != nil {
			c.logger.Warn("failed to record ingest run", zap.String("run_id", report.ID), zap.Error(err))
		} else if n, err := c.Runs.PruneRuns(saveCtx, cfg.Storage.KeepRuns); err != nil {
			c.logger.Warn("failed to prune ingest runs", zap.Error(err))
		} else if n > 0 {
			c.logger.Debug("pruned ingest runs", zap.Int64("removed", n))
		}
	}
	return corp, report, runErr
}

// newService builds the query service over a frozen corpus. Query embeddings
// go through an LRU cache in front of the ingest embedder.
func (c *Components) newService(cfg *config.Config, corp *corpus.Corpus, onAbort func(error)) (*search.Service, error) {
	return search.NewService(corp,
		embedding.NewCachedEmbedder(c.Embedder, cfg.Embedding.CacheSize),
		search.WithDefaultK(cfg.Search.TopK),
		search.WithMaxK(cfg.Search.MaxK),
		search.WithMaxConcurrent(cfg.Server.MaxConcurrentSearches),
		search.WithLogger(c.logger),
		search.WithAbortHandler(onAbort),
	)
}
