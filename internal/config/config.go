// Package config provides configuration loading and structs for the ruiji server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	MaxConcurrentSearches int    `yaml:"max_concurrent_searches"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// StorageConfig holds the ingest run log location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	KeepRuns     int    `yaml:"keep_runs"`
}

// EmbeddingConfig holds embedder settings. Provider is "onnx" or "mock"; the
// mock provider needs no model and is meant for development.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds result count settings.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
	MaxK int `yaml:"max_k"`
}

// IngestConfig holds the document sources and pipeline settings.
type IngestConfig struct {
	Directories         []string `yaml:"directories"`
	Extensions          []string `yaml:"extensions"`
	Recursive           *bool    `yaml:"recursive"`
	FailurePolicy       string   `yaml:"failure_policy"`
	SummaryRatio        float64  `yaml:"summary_ratio"`
	MaxSummarySentences int      `yaml:"max_summary_sentences"`
	Workers             int      `yaml:"workers"`
}

// RecursiveOrDefault returns whether to walk directories recursively; defaults to true when unset.
func (c *IngestConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "onnx", "mock":
	default:
		return fmt.Errorf("embedding.provider must be onnx or mock, got %q", c.Embedding.Provider)
	}
	switch c.Ingest.FailurePolicy {
	case "skip", "abort":
	default:
		return fmt.Errorf("ingest.failure_policy must be skip or abort, got %q", c.Ingest.FailurePolicy)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Search.TopK > c.Search.MaxK {
		return fmt.Errorf("search.top_k (%d) exceeds search.max_k (%d)", c.Search.TopK, c.Search.MaxK)
	}
	if c.Ingest.SummaryRatio <= 0 || c.Ingest.SummaryRatio > 1 {
		return fmt.Errorf("ingest.summary_ratio must be in (0, 1], got %g", c.Ingest.SummaryRatio)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. ":memory:" is kept as is.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
