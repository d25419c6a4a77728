package service

import (
	"context"
	"fmt"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/ledger"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/source"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/tracker"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/adapters/util"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/config"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/llm"
	"go.uber.org/zap"
)

func CreateCatalogSource(cfg *config.Config) ports.CatalogSource {
	return source.NewFileCatalog(cfg.PromptsFile)
}

// CreateRouting resolves the routing table, applying the google backend override.
func CreateRouting(cfg *config.Config) (llm.Routing, error) {
	routing, err := llm.RoutingByName(cfg.Routing)
	if err != nil {
		return nil, err
	}
	if cfg.GoogleBackend != "" {
		b, err := llm.ParseBackend(cfg.GoogleBackend)
		if err != nil {
			return nil, fmt.Errorf("invalid google backend: %w", err)
		}
		routing = routing.With(llm.ProviderGoogle, b)
	}
	return routing, nil
}

// CreateTextGenerator builds the provider client for cfg.Provider and cfg.Model.
// An unknown provider fails before any network or filesystem access.
func CreateTextGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.Client, error) {
	routing, err := CreateRouting(cfg)
	if err != nil {
		return nil, err
	}

	return llm.New(ctx, cfg.Provider, cfg.Model, llm.Settings{
		Routing:           routing,
		CohereAPIKey:      cfg.CohereAPIKey,
		CohereBaseURL:     cfg.CohereBaseURL,
		MistralAPIKey:     cfg.MistralAPIKey,
		MistralBaseURL:    cfg.MistralBaseURL,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		OllamaHost:        cfg.OllamaHost,
		FormalArticle:     cfg.FormalArticle,
		HTTPClient:        util.NewHTTPClient(logger, cfg.HTTPTimeout),
		Logger:            logger,
	})
}

// CreateLedger opens the run ledger, or returns nil when none is configured.
func CreateLedger(ctx context.Context, cfg *config.Config) (ports.RunLedger, error) {
	if cfg.LedgerPath == "" {
		return nil, nil
	}
	l, err := ledger.Open(ctx, cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreateReportStore returns the report store, or nil when none is configured.
func CreateReportStore(cfg *config.Config) ports.ReportStore {
	if cfg.ReportPath == "" {
		return nil
	}
	return tracker.NewFileReportStore(cfg.ReportPath)
}
