package config

import "github.com/hyperjump/ruiji/internal/extract"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxConcurrentSearches == 0 {
		cfg.Server.MaxConcurrentSearches = 10
	}
	if cfg.Server.RequestTimeoutSeconds == 0 {
		cfg.Server.RequestTimeoutSeconds = 60
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ruiji/data/db/runs.db"
	}
	if cfg.Storage.KeepRuns == 0 {
		cfg.Storage.KeepRuns = 50
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/ruiji/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = extract.SupportedExtensions()
	}
	if cfg.Ingest.Recursive == nil {
		t := true
		cfg.Ingest.Recursive = &t
	}
	if cfg.Ingest.FailurePolicy == "" {
		cfg.Ingest.FailurePolicy = "skip"
	}
	if cfg.Ingest.SummaryRatio == 0 {
		cfg.Ingest.SummaryRatio = 0.2
	}
	if cfg.Ingest.MaxSummarySentences == 0 {
		cfg.Ingest.MaxSummarySentences = 10
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
}
