// Package main is the entry point for the medscan HTTP server.
// In Go, the `main` package with a `main()` function is what gets executed.
// Unlike interpreted backends, Go compiles to a single static binary — no runtime needed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/config"
	"github.com/harshauii/medscan/internal/fda"
	"github.com/harshauii/medscan/internal/llm"
	"github.com/harshauii/medscan/internal/server"
	"github.com/harshauii/medscan/internal/service"
	"github.com/harshauii/medscan/internal/storage"
)

func main() {
	// os.Exit ensures the process exits with a non-zero code on failure.
	// We call run() separately so deferred cleanup functions execute properly
	// (deferred functions don't run when os.Exit is called directly).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	configPath := os.Getenv("MEDSCAN_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging with zap.
	// zap is a high-performance structured logger — it outputs JSON in production
	// and human-readable format in development.
	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync flushes buffered log entries. We intentionally ignore the error here
	// because Sync commonly fails on stdout/stderr (not a real problem).
	defer func() { _ = logger.Sync() }()

	// Initialize storage
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	analysisRepo := storage.NewAnalysisRepository(db)
	apiCallRepo := storage.NewAPICallRepository(db)

	// LLM clients in configured order — first is primary, rest are fallbacks
	clients := buildLLMClients(cfg, logger)
	if len(clients) == 0 {
		return fmt.Errorf("no LLM provider configured: set MEDSCAN_LLM_GROQ_API_KEY or MEDSCAN_LLM_ANTHROPIC_API_KEY")
	}

	fdaClient := fda.NewClient(cfg.OpenFDA.BaseURL, cfg.OpenFDA.APIKey, cfg.OpenFDA.Timeout)
	check := service.NewImageCheck(cfg.Upload.MaxBytes, cfg.Upload.MaxDimension)
	recommender := service.NewRecommender(clients, cfg.LLM.RecommendTimeout, logger)
	analysis := service.NewAnalysisService(
		check, clients, fdaClient, recommender,
		analysisRepo, apiCallRepo,
		cfg.LLM.VisionTimeout, logger,
	)

	// Create and start the HTTP server
	srv := server.New(cfg, server.Deps{
		Analysis:     analysis,
		AnalysisRepo: analysisRepo,
		APICallRepo:  apiCallRepo,
	}, logger)

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	// Channels are Go's primary concurrency primitive — goroutines communicate
	// through channels instead of sharing memory.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine (lightweight thread managed by Go runtime).
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Block until we receive a signal or the server errors out.
	// select is like a switch for channels — it waits until one is ready.
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// buildLLMClients constructs the provider list from config. Providers
// without an API key are skipped, so deployment with only a Groq key (the
// common case) just works.
func buildLLMClients(cfg *config.Config, logger *zap.Logger) []llm.Client {
	var clients []llm.Client
	for _, name := range cfg.LLM.ProviderOrder {
		switch name {
		case "groq":
			if cfg.LLM.Groq.APIKey == "" {
				continue
			}
			clients = append(clients, llm.NewGroqClient(
				cfg.LLM.Groq.APIKey,
				cfg.LLM.Groq.BaseURL,
				cfg.LLM.Groq.Model,
				cfg.LLM.Groq.VisionModel,
				cfg.LLM.MaxTokens,
			))
		case "anthropic":
			if cfg.LLM.Anthropic.APIKey == "" {
				continue
			}
			clients = append(clients, llm.NewAnthropicClient(
				cfg.LLM.Anthropic.APIKey,
				cfg.LLM.Anthropic.Model,
				cfg.LLM.MaxTokens,
			))
		default:
			logger.Warn("unknown LLM provider in provider_order", zap.String("provider", name))
		}
	}
	return clients
}
