package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/ingest"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/server"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after query are moved first", []string{"invoice from microsoft", "-k", "3"}, []string{"-k", "3", "invoice from microsoft"}},
		{"flags first returns unchanged", []string{"-k", "3", "invoice"}, []string{"-k", "3", "invoice"}},
		{"query only returns unchanged", []string{"invoice from microsoft"}, []string{"invoice from microsoft"}},
		{"empty args returns unchanged", []string{}, []string{}},
		{"multiple positionals then flags", []string{"one", "two", "-output", "json"}, []string{"-output", "json", "one", "two"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reorderArgs(tt.args); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hyperjump"}, "hyperjump"},
		{"multiple words", []string{"hyperjump", "profile"}, "hyperjump profile"},
		{"single quoted phrase", []string{"hyperjump profile"}, "hyperjump profile"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("debug: true\nstorage:\n  database_path: \"./runs.db\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  host: \"127.0.0.1\"\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

// testConfig returns a mock-embedder config over a directory of text files.
func testConfig(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	docs := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{
		Storage:   config.StorageConfig{DatabasePath: filepath.Join(t.TempDir(), "runs.db"), KeepRuns: 2},
		Embedding: config.EmbeddingConfig{Provider: "mock", Dimensions: 32},
		Ingest:    config.IngestConfig{Directories: []string{docs}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestIngestDirectories(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a.txt":     "Cats are small domesticated carnivores. They sleep a lot.",
		"b.md":      "Rockets reach orbit by burning fuel. Orbit needs speed.",
		"blank.txt": "   \n\t ",
		"skip.bin":  "not a supported format",
	})
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	ctx := context.Background()
	corp, report, err := components.ingestDirectories(ctx, cfg, cfg.Ingest.Directories, ingest.PolicySkip)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 3 || report.Indexed != 2 || len(report.Failures) != 1 {
		t.Fatalf("report = total %d indexed %d failed %d", report.Total, report.Indexed, len(report.Failures))
	}
	if !corp.IsFrozen() || corp.Len() != 2 {
		t.Errorf("corpus frozen=%v len=%d", corp.IsFrozen(), corp.Len())
	}
	last, err := components.Runs.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != report.ID || last.Failed() != 1 {
		t.Errorf("recorded run = %+v", last)
	}

	svc, err := components.newService(cfg, corp, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := svc.Query(ctx, &models.SearchQuery{Query: "Cats are small domesticated carnivores. They sleep a lot.", K: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || !strings.HasPrefix(resp.Results[0].Text, "Cats") || resp.Results[0].Synopsis == "" {
		t.Errorf("top hit = %+v", resp.Results[0])
	}
}

func TestIngestDirectories_AbortIsRecorded(t *testing.T) {
	cfg := testConfig(t, map[string]string{"a.txt": "fine text.", "b.txt": "  "})
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	ctx := context.Background()
	corp, report, err := components.ingestDirectories(ctx, cfg, cfg.Ingest.Directories, ingest.PolicyAbort)
	if !errors.Is(err, ingest.ErrDocumentIngestFailed) || corp != nil {
		t.Fatalf("expected aborted run, got corpus=%v err=%v", corp, err)
	}
	last, err := components.Runs.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != report.ID || !last.Aborted {
		t.Errorf("recorded run = %+v", last)
	}

	status, err := offlineStatus(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status.Healthy || status.LastRun == nil || status.LastRun.ID != report.ID {
		t.Errorf("offline status = %+v", status)
	}
}

func TestIngestDirectories_PrunesRuns(t *testing.T) {
	cfg := testConfig(t, map[string]string{"a.txt": "some text here."})
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, _, err := components.ingestDirectories(ctx, cfg, cfg.Ingest.Directories, ingest.PolicySkip); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := components.Runs.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != cfg.Storage.KeepRuns {
		t.Errorf("kept %d runs, want %d", len(runs), cfg.Storage.KeepRuns)
	}
}

func TestOfflineStatus_NoRuns(t *testing.T) {
	cfg := testConfig(t, nil)
	status, err := offlineStatus(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status.LastRun != nil || status.Documents != 0 || status.Dimensions != 32 || !status.Healthy {
		t.Errorf("status = %+v", status)
	}
}

func TestSearchAndStatusViaHTTP(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a.txt": "The quick brown fox jumps over the lazy dog.",
		"b.txt": "Lorem ipsum dolor sit amet.",
	})
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	corp, _, err := components.ingestDirectories(context.Background(), cfg, cfg.Ingest.Directories, ingest.PolicySkip)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := components.newService(cfg, corp, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(server.NewServer(svc, components.Runs, &cfg.Server, nil).Handler())
	defer ts.Close()

	resp, err := searchViaHTTP(ts.URL+"/", &models.SearchQuery{Query: "Lorem ipsum dolor sit amet.", K: 5})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || resp.Results[0].Text != "Lorem ipsum dolor sit amet." || resp.Results[0].Distance != 0 {
		t.Errorf("response = %+v", resp)
	}

	_, err = searchViaHTTP(ts.URL, &models.SearchQuery{Query: " "})
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "invalid_query" {
		t.Errorf("blank query error = %v", err)
	}

	status, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if status.Documents != 2 || status.Dimensions != 32 || status.LastRun == nil {
		t.Errorf("status = %+v", status)
	}
}
