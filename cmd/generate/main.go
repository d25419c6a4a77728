package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/destination"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/config"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/service"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg, logging.New).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// loggerFactory builds the run logger from the configured level and format.
type loggerFactory func(level, format string) (*zap.Logger, error)

func newRootCmd(cfg *config.Config, newLogger loggerFactory) *cobra.Command {
	var logger *zap.Logger

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate stance samples for every prompt in a catalog",
		Long: `Reads a prompt catalog (topic -> language -> stance -> prompts), sends each
prompt to the selected provider and writes one sample file per prompt to
  <output>/<language>/<topic>/<provider>/<model>/<stance>/sample_<N>.txt

Credentials are read from COHERE_API_KEY, MISTRAL_API_KEY, OPENROUTER_API_KEY
and GEMINI_API_KEY.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			var err error
			logger, err = newLogger(cfg.LogLevel, cfg.LogFormat)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = logger.Sync() }()
			ctx := cmd.Context()

			catalog, err := service.CreateCatalogSource(cfg).Load()
			if err != nil {
				return fmt.Errorf("failed to load prompts: %w", err)
			}

			client, err := service.CreateTextGenerator(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create llm client: %w", err)
			}
			defer func() { _ = client.Close() }()

			_, err = Run(ctx, cfg, logger, catalog, client)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.PromptsFile, "prompts", cfg.PromptsFile, "Prompt catalog file (.json, .yaml, .yml)")
	f.StringVar(&cfg.Provider, "provider", cfg.Provider, "Provider: cohere, mistral, google, qwen, openrouter")
	f.StringVar(&cfg.Model, "model", cfg.Model, "Model identifier passed to the provider")
	f.IntVar(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, "Maximum tokens per sample")
	f.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output root directory")
	f.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Stance groups processed in parallel")
	f.StringVar(&cfg.Routing, "routing", cfg.Routing, "Routing table: native or openrouter")
	f.StringVar(&cfg.GoogleBackend, "google-backend", cfg.GoogleBackend, "Override the google backend: local, gemini or openrouter")
	f.BoolVar(&cfg.FormalArticle, "formal-article", cfg.FormalArticle, "Ask for a formal article with no framing text")
	f.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "SQLite ledger recording every sample outcome")
	f.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "JSON file receiving the run summary")
	f.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Per-request provider timeout (0 = none)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")

	return cmd
}

// Run dispatches catalog through gen and persists the outcome. Exposed for testing.
func Run(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	catalog *models.Catalog,
	gen ports.TextGenerator,
) (models.RunSummary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ledger, err := service.CreateLedger(ctx, cfg)
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("failed to open ledger: %w", err)
	}
	if ledger != nil {
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Warn("failed to close ledger", zap.Error(err))
			}
		}()
	}

	dispatcher := service.NewDispatcher(cfg, gen, destination.NewFileSystemWriter(), ledger, logger)
	summary, err := dispatcher.RunAll(ctx, catalog, cfg.Provider, cfg.Model, cfg.MaxTokens, cfg.OutputDir)
	if err != nil {
		return summary, err
	}

	if store := service.CreateReportStore(cfg); store != nil {
		if err := store.Save(summary); err != nil {
			return summary, fmt.Errorf("failed to save report: %w", err)
		}
		logger.Info("report saved", zap.String("path", cfg.ReportPath))
	}

	if len(summary.Failures) > 0 {
		logger.Warn("some samples were not generated",
			zap.Int("written", summary.Written),
			zap.Int("total", summary.Total),
			zap.Int("failed_tasks", len(summary.Failures)))
	}
	return summary, nil
}
