// Package main is the semidx CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/personaldrive/semidx/internal/blob"
	"github.com/personaldrive/semidx/internal/config"
	"github.com/personaldrive/semidx/internal/embedding"
	"github.com/personaldrive/semidx/internal/files"
	"github.com/personaldrive/semidx/internal/index"
	"github.com/personaldrive/semidx/internal/server"
	"github.com/personaldrive/semidx/internal/storage"
	"github.com/personaldrive/semidx/internal/vector"
	"github.com/personaldrive/semidx/internal/watcher"
	"github.com/personaldrive/semidx/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/semidx/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so running from the project dir
// uses the project's config.
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
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("semidx version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: semidx <command> [flags]

Commands:
  server    start the HTTP API server
  index     index a text file into the search index
  search    query the search index
  stats     print index statistics
  version   print version
  help      show this help
`)
}

// Components holds the wired application pieces.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Manager  *index.Manager
	Blobs    blob.Store
	Files    *files.Service
}

// Close releases resources in reverse dependency order.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.UseMock {
		logger.Warn("using mock embedder; embeddings are not semantically meaningful")
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder, err = embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	manager, err := index.NewManager(embedder, vector.NewSnapshot(cfg.Storage.IndexPath),
		index.WithLogger(logger),
		index.WithLimits(cfg.Search.MaxQueryLength, cfg.Search.MaxLimit))
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}

	var blobs blob.Store
	if cfg.S3.AccessKey != "" || cfg.S3.Endpoint != "" {
		blobs, err = blob.NewS3Store(ctx, blob.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			_ = embedder.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
	} else {
		logger.Warn("no S3 credentials configured; using in-memory object storage")
		blobs = blob.NewMemoryStore()
	}

	fileSvc := files.NewService(store, blobs, manager, files.Limits{
		MaxSizeBytes:     cfg.Files.MaxSizeBytes,
		AllowedMimeTypes: cfg.Files.AllowedMimeTypes,
		UploadExpiry:     time.Duration(cfg.Files.UploadExpirySecs) * time.Second,
		DownloadExpiry:   time.Duration(cfg.Files.DownloadExpirySecs) * time.Second,
	}, logger)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Manager:  manager,
		Blobs:    blobs,
		Files:    fileSvc,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		ingestor := watcher.NewIngestor(components.Manager, logger)
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			ingestor.OnChange(watchCtx),
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	srv := server.NewServer(components.Manager, components.Files, components.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	if err := components.Manager.Save(); err != nil {
		logger.Warn("final index save failed", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	id := fs.String("id", "", "identifier for the document (default: derived from file path)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: semidx index [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}
	identifier := *id
	if identifier == "" {
		abs, _ := filepath.Abs(path)
		identifier = abs
	}

	outcome, err := components.Manager.IndexDocument(context.Background(), identifier, string(content))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", identifier, outcome)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of results")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: semidx search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	matches, err := components.Manager.Search(context.Background(), query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(matches) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, m := range matches {
		fmt.Printf("%2d. %s (distance %.4f)\n", i+1, m.Identifier, m.Distance)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	logger, components := mustInit(*configPath)
	defer logger.Sync()
	defer components.Close()

	st := components.Manager.Stats()
	fileCount, err := components.Storage.CountFiles(context.Background(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("dimensions:     %d\n", st.Dimensions)
	fmt.Printf("document count: %d\n", st.DocumentCount)
	fmt.Printf("file count:     %d\n", fileCount)
}

// mustInit loads config and wires components for the one-shot subcommands,
// exiting on failure.
func mustInit(configPath string) (*zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return logger, components
}
