package ports

import (
	"context"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
)

// CatalogSource loads the prompt catalog for a run.
type CatalogSource interface {
	Load() (*models.Catalog, error)
}

// TextGenerator is the uniform provider facade used by the dispatcher.
type TextGenerator interface {
	Generate(ctx context.Context, text string, maxTokens int, temperature float64) (string, error)
	Name() string
}

// SampleWriter persists one generated sample and returns where it was stored.
type SampleWriter interface {
	Write(outputDir, language, topic, provider, model, stance string, index int, text string) (string, error)
}

// RunLedger records the outcome of every unit of a run.
type RunLedger interface {
	Record(ctx context.Context, entry models.LedgerEntry) error
	Close() error
}

// ReportStore persists the summary of a finished run.
type ReportStore interface {
	Save(summary models.RunSummary) error
}
