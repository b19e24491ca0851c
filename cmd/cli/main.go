// Package main provides the CLI tool for medscan.
// Uses Cobra for command parsing — Cobra is the standard Go CLI framework
// (used by kubectl, docker, hugo, and many others).
//
// Run with: go run ./cmd/cli analyze --image xray.jpg --query "Describe this X-ray"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/config"
	"github.com/harshauii/medscan/internal/fda"
	"github.com/harshauii/medscan/internal/llm"
	"github.com/harshauii/medscan/internal/service"
	"github.com/harshauii/medscan/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd creates the root command. Cobra builds a tree of commands:
// medscan analyze --image xray.jpg --query "..."
// medscan stats
func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "medscan",
		Short: "Medical image analysis CLI",
	}

	root.AddCommand(analyzeCmd())
	root.AddCommand(statsCmd())
	return root
}

func analyzeCmd() *cobra.Command {
	var imagePath string
	var query string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analysis pipeline on a local image file",
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(imagePath, query)
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the image file (required)")
	cmd.Flags().StringVar(&query, "query", "Describe this medical image.", "Question to ask about the image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print analysis and upstream call counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}

func runAnalyze(imagePath, query string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	// DetectContentType sniffs the first 512 bytes, same as a browser would
	// when it fills in the multipart part header.
	contentType := http.DetectContentType(data)

	clients := buildLLMClients(cfg, logger)
	if len(clients) == 0 {
		return fmt.Errorf("no LLM provider configured: set MEDSCAN_LLM_GROQ_API_KEY or MEDSCAN_LLM_ANTHROPIC_API_KEY")
	}

	// Open storage so CLI runs show up in `medscan stats` alongside server
	// traffic. Failure to open is not fatal — the pipeline runs without
	// recording.
	analysisRepo, apiCallRepo, closeDB := openRepos(cfg, logger)
	defer closeDB()

	fdaClient := fda.NewClient(cfg.OpenFDA.BaseURL, cfg.OpenFDA.APIKey, cfg.OpenFDA.Timeout)
	check := service.NewImageCheck(cfg.Upload.MaxBytes, cfg.Upload.MaxDimension)
	recommender := service.NewRecommender(clients, cfg.LLM.RecommendTimeout, logger)
	analysis := service.NewAnalysisService(
		check, clients, fdaClient, recommender,
		analysisRepo, apiCallRepo,
		cfg.LLM.VisionTimeout, logger,
	)

	// Ctrl+C cancels the in-flight upstream calls.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := analysis.Analyze(ctx, data, contentType, query)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", imagePath, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runStats() error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	analysisRepo := storage.NewAnalysisRepository(db)
	ctx := context.Background()

	total, err := analysisRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting analyses: %w", err)
	}
	fmt.Printf("analyses: %d\n", total)

	recent, err := analysisRepo.ListRecent(ctx, 10)
	if err != nil {
		return fmt.Errorf("listing recent analyses: %w", err)
	}
	for _, a := range recent {
		fmt.Printf("  %s  %-8s  %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.Status, a.Query)
	}
	return nil
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(os.Getenv("MEDSCAN_CONFIG_PATH"))
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for CLI — human-readable output
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

func openRepos(cfg *config.Config, logger *zap.Logger) (storage.AnalysisRepository, storage.APICallRepository, func()) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		logger.Warn("creating database directory, continuing without recording", zap.Error(err))
		return nil, nil, func() {}
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("opening database, continuing without recording", zap.Error(err))
		return nil, nil, func() {}
	}
	return storage.NewAnalysisRepository(db), storage.NewAPICallRepository(db), func() { _ = db.Close() }
}

// buildLLMClients constructs the provider list from config, skipping
// providers without an API key.
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
