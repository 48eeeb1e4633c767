// Package main is the ruiji CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/ingest"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "runs":
		runRuns()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-document ingest events, search requests)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, _ := ingest.ParsePolicy(cfg.Ingest.FailurePolicy)
	corp, report, err := components.ingestDirectories(ctx, cfg, cfg.Ingest.Directories, policy)
	if err != nil {
		logger.Error("Ingestion failed", zap.Error(err))
		components.Close()
		os.Exit(1)
	}
	if len(report.Failures) > 0 {
		logger.Warn("some documents were not indexed", zap.Int("failed", len(report.Failures)), zap.Error(report.Err()))
	}

	svc, err := components.newService(cfg, corp, func(cause error) {
		logger.Error("Corpus corrupted, shutting down", zap.Error(cause))
		stop()
	})
	if err != nil {
		logger.Error("Failed to create query service", zap.Error(err))
		components.Close()
		os.Exit(1)
	}

	srv := server.NewServer(svc, components.Runs, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	if err := svc.Healthy(); err != nil {
		components.Close()
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results are the k nearest documents by squared Euclidean distance, closest first.

Examples:
  ruiji search machine learning
  ruiji search -k 10 "machine learning"
  ruiji search --output compact neural networks
  ruiji search --server "" --config ./config.yaml query   # ingest and search in-process
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for in-process mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = ingest and search in-process)")
	k := fs.Int("k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	query := &models.SearchQuery{Query: buildSearchQuery(fs.Args()), K: *k}
	if query.Query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var response *models.SearchResponse
	var err error
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, query)
	} else {
		response, err = searchInProcess(*configPath, query)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// searchInProcess ingests the configured directories and runs a single query
// against the result, without a server.
func searchInProcess(configPath string, query *models.SearchQuery) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	policy, _ := ingest.ParsePolicy(cfg.Ingest.FailurePolicy)
	corp, _, err := components.ingestDirectories(ctx, cfg, cfg.Ingest.Directories, policy)
	if err != nil {
		return nil, err
	}
	svc, err := components.newService(cfg, corp, nil)
	if err != nil {
		return nil, err
	}
	return svc.Query(ctx, query)
}

// apiError is the error body returned by the server.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind"`
}

func (e *apiError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Kind, e.Message)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode}
		if json.Unmarshal(b, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var response models.SearchResponse
	if err := decodeResponse(resp, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var s cli.Status
	if err := decodeResponse(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	policyFlag := fs.String("policy", "", "failure policy: skip or abort (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	format := parseFormat(*outputFormat)
	policyName := cfg.Ingest.FailurePolicy
	if *policyFlag != "" {
		policyName = *policyFlag
	}
	policy, err := ingest.ParsePolicy(policyName)
	if err != nil {
		fatalf("%v", err)
	}
	dirs := cfg.Ingest.Directories
	if fs.NArg() > 0 {
		dirs = fs.Args()
	}
	if len(dirs) == 0 {
		fatalf("Usage: ruiji ingest [flags] <directory>... (or set ingest.directories in config)")
	}

	logger, err := utils.NewCLILogger(cfg.Debug || *debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, report, runErr := components.ingestDirectories(ctx, cfg, dirs, policy)
	if report != nil {
		if err := cli.WriteRun(os.Stdout, report.Run(), format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}
	if runErr != nil {
		components.Close()
		fatalf("Ingestion failed: %v", runErr)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for offline mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the run log directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status *cli.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		status = res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		status, err = offlineStatus(context.Background(), cfg)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// offlineStatus reports what the configuration and the last recorded run say,
// for when no server is running. Documents is the last run's indexed count.
func offlineStatus(ctx context.Context, cfg *config.Config) (*cli.Status, error) {
	runs, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer runs.Close()
	status := &cli.Status{
		Dimensions:    cfg.Embedding.Dimensions,
		DefaultK:      cfg.Search.TopK,
		MaxK:          cfg.Search.MaxK,
		MaxConcurrent: int64(cfg.Server.MaxConcurrentSearches),
		Healthy:       true,
	}
	last, err := runs.LatestRun(ctx)
	switch {
	case err == nil:
		status.LastRun = last
		status.Documents = last.Indexed
		status.Healthy = !last.Aborted
	case !errors.Is(err, storage.ErrRunNotFound):
		return nil, err
	}
	if n, err := runs.DiskUsage(); err == nil {
		status.DiskUsageBytes = &n
	}
	return status, nil
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of runs to list")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	format := parseFormat(*outputFormat)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	runs, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fatalf("Failed to open run log: %v", err)
	}
	defer runs.Close()

	ctx := context.Background()
	if fs.NArg() > 0 {
		run, err := runs.GetRun(ctx, fs.Arg(0))
		if err != nil {
			runs.Close()
			fatalf("Failed to load run: %v", err)
		}
		if err := cli.WriteRun(os.Stdout, run, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	list, err := runs.ListRuns(ctx, *limit)
	if err != nil {
		runs.Close()
		fatalf("Failed to list runs: %v", err)
	}
	if err := cli.WriteRuns(os.Stdout, list, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func printUsage() {
	fmt.Println(`ruiji - exact nearest-neighbor document search

Usage:
  ruiji server [flags]               Ingest configured directories and serve the HTTP API
  ruiji search [flags] <query>       Search documents
  ruiji ingest [flags] [directory]   Run ingestion and print the run report
  ruiji status [flags]               Show corpus and service status
  ruiji runs [flags] [run-id]        List recorded ingest runs, or show one
  ruiji version                      Show version
  ruiji help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to ingest and search in-process.
  --k int            Number of results (default: server's search.top_k)
  --output string    Output format: text, compact, or json (default: text)

Ingest Flags:
  --config string    Config file path
  --policy string    Failure policy: skip or abort (default from config)
  --output string    Output format: text, compact, or json (default: text)
  --debug            Enable debug logging

Status Flags:
  --config string    Config file path (for offline mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read the run log directly.
  --output string    Output format: text or json (default: text)

Runs Flags:
  --config string    Config file path
  --limit int        Number of runs to list (default: 10)
  --output string    Output format: text, compact, or json (default: text)

Examples:
  ruiji server
  ruiji search "machine learning algorithms"
  ruiji search -k 3 --output json "query"
  ruiji ingest --policy abort ~/Documents
  ruiji status --output json
  ruiji runs --limit 5`)
}
