package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  max_concurrent_searches: 4
storage:
  database_path: "test.db"
search:
  top_k: 3
ingest:
  failure_policy: abort
  summary_ratio: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Server.MaxConcurrentSearches != 4 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Address() != "127.0.0.1:9000" {
		t.Errorf("Address() = %s", cfg.Server.Address())
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database_path should be absolute, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Search.TopK != 3 || cfg.Search.MaxK != 100 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Ingest.FailurePolicy != "abort" || cfg.Ingest.SummaryRatio != 0.5 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/runs.db"
embedding:
  model_path: "./models/minilm.onnx"
ingest:
  directories: ["./docs", "/abs/docs"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "runs.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "models", "minilm.onnx"); cfg.Embedding.ModelPath != want {
		t.Errorf("model_path = %s, want %s", cfg.Embedding.ModelPath, want)
	}
	if len(cfg.Ingest.Directories) != 2 {
		t.Fatalf("directories: got %d", len(cfg.Ingest.Directories))
	}
	if want := filepath.Join(dir, "docs"); cfg.Ingest.Directories[0] != want {
		t.Errorf("directory = %s, want %s", cfg.Ingest.Directories[0], want)
	}
	if cfg.Ingest.Directories[1] != "/abs/docs" {
		t.Errorf("absolute directory changed: %s", cfg.Ingest.Directories[1])
	}
}

func TestLoad_memoryDatabase(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  database_path: \":memory:\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "server: [", "parse"},
		{"bad policy", "ingest:\n  failure_policy: retry\n", "failure_policy"},
		{"bad provider", "embedding:\n  provider: openai\n", "provider"},
		{"top k above max", "search:\n  top_k: 20\n  max_k: 10\n", "top_k"},
		{"bad ratio", "ingest:\n  summary_ratio: 1.5\n", "summary_ratio"},
		{"bad dimensions", "embedding:\n  dimensions: -3\n", "dimensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Server.MaxConcurrentSearches != 10 || cfg.Server.RequestTimeoutSeconds != 60 {
		t.Errorf("default server limits: %+v", cfg.Server)
	}
	if cfg.Search.TopK != 5 || cfg.Search.MaxK != 100 {
		t.Errorf("default search: %+v", cfg.Search)
	}
	if cfg.Embedding.Provider != "onnx" || cfg.Embedding.Dimensions != 384 || cfg.Embedding.MaxTokens != 256 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Ingest.FailurePolicy != "skip" || cfg.Ingest.SummaryRatio != 0.2 || cfg.Ingest.Workers != 4 {
		t.Errorf("default ingest: %+v", cfg.Ingest)
	}
	if !cfg.Ingest.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
	found := false
	for _, ext := range cfg.Ingest.Extensions {
		if ext == ".pdf" {
			found = true
		}
	}
	if !found {
		t.Errorf("default extensions should include .pdf: %v", cfg.Ingest.Extensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestIngestConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &IngestConfig{}
		if got := c.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &IngestConfig{Recursive: &f}
		if got := c.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
		Ingest:  IngestConfig{Directories: []string{"/srv/docs"}, FailurePolicy: "abort"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Ingest.FailurePolicy != "abort" || loaded.Ingest.Directories[0] != "/srv/docs" {
		t.Errorf("loaded: %+v", loaded)
	}
}
