package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/config"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 20

// Dispatcher fans a prompt catalog out over a bounded pool of stance tasks.
// A Dispatcher runs one catalog at a time.
type Dispatcher struct {
	cfg    *config.Config
	gen    ports.TextGenerator
	dest   ports.SampleWriter
	ledger ports.RunLedger
	log    *zap.Logger

	progress atomic.Int64
}

// NewDispatcher wires the dispatcher. ledger may be nil.
func NewDispatcher(
	cfg *config.Config,
	gen ports.TextGenerator,
	dest ports.SampleWriter,
	ledger ports.RunLedger,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		cfg:    cfg,
		gen:    gen,
		dest:   dest,
		ledger: ledger,
		log:    log,
	}
}

// Progress returns the number of samples written so far in the current run.
func (d *Dispatcher) Progress() int64 {
	return d.progress.Load()
}

type run struct {
	id        string
	provider  string
	model     string
	maxTokens int
	outputDir string
	total     int
}

// RunAll generates one sample per prompt and waits for every task to finish.
// Per-unit failures are logged and listed in the summary; the returned error is
// reserved for failures that prevent the run from starting.
func (d *Dispatcher) RunAll(
	ctx context.Context,
	catalog *models.Catalog,
	provider, model string,
	maxTokens int,
	outputDir string,
) (models.RunSummary, error) {
	if catalog == nil {
		return models.RunSummary{}, fmt.Errorf("catalog must not be nil")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return models.RunSummary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	r := run{
		id:        uuid.NewString(),
		provider:  provider,
		model:     model,
		maxTokens: maxTokens,
		outputDir: outputDir,
		total:     catalog.Total(),
	}
	tasks := catalog.Tasks()

	limit := d.cfg.Concurrency
	if limit < 1 {
		limit = defaultConcurrency
	}

	d.progress.Store(0)
	summary := models.RunSummary{
		RunID:     r.id,
		Provider:  provider,
		Model:     model,
		OutputDir: outputDir,
		Total:     r.total,
		Tasks:     len(tasks),
		StartedAt: time.Now().UTC(),
	}

	d.log.Info("starting generation",
		zap.String("run_id", r.id),
		zap.String("generator", d.gen.Name()),
		zap.Int("tasks", len(tasks)),
		zap.Int("total", r.total),
		zap.Int("concurrency", limit))

	var (
		mu       sync.Mutex
		failures []models.UnitFailure
	)

	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, task := range tasks {
		g.Go(func() error {
			if uerr := d.runTask(ctx, r, task); uerr != nil {
				mu.Lock()
				failures = append(failures, uerr.failure())
				mu.Unlock()
			}
			// Never fail the group: siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool {
		a, b := failures[i].Unit, failures[j].Unit
		if a.Topic != b.Topic {
			return a.Topic < b.Topic
		}
		if a.Language != b.Language {
			return a.Language < b.Language
		}
		return a.Stance < b.Stance
	})

	summary.Written = int(d.progress.Load())
	summary.Failures = failures
	summary.FinishedAt = time.Now().UTC()

	d.log.Info("generation complete",
		zap.String("run_id", r.id),
		zap.Int("written", summary.Written),
		zap.Int("total", summary.Total),
		zap.Int("failed_tasks", len(failures)),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary, nil
}

// runTask processes one stance group in prompt order. The first failure ends
// the task; samples already written stay on disk.
func (d *Dispatcher) runTask(ctx context.Context, r run, task models.StanceTask) (uerr *UnitError) {
	var current models.GenerationUnit
	defer func() {
		if p := recover(); p != nil {
			uerr = &UnitError{Stage: StagePanic, Unit: current, Err: fmt.Errorf("%w: panic: %v", ErrGeneration, p)}
			d.fail(ctx, r, uerr)
		}
	}()

	d.log.Debug("task started",
		zap.String("topic", task.Topic),
		zap.String("language", task.Language),
		zap.String("stance", task.Stance),
		zap.Int("prompts", len(task.Prompts)))

	for _, unit := range task.Units() {
		current = unit

		if err := ctx.Err(); err != nil {
			uerr = &UnitError{Stage: StageGenerate, Unit: unit, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
			d.fail(ctx, r, uerr)
			return uerr
		}

		text, err := d.gen.Generate(ctx, unit.Prompt, r.maxTokens, d.cfg.Temperature)
		if err != nil {
			uerr = &UnitError{Stage: StageGenerate, Unit: unit, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
			d.fail(ctx, r, uerr)
			return uerr
		}

		path, err := d.persist(r, models.GenerationResult{Unit: unit, Text: text})
		if err != nil {
			uerr = &UnitError{Stage: StageWrite, Unit: unit, Err: fmt.Errorf("%w: %w", ErrWrite, err)}
			d.fail(ctx, r, uerr)
			return uerr
		}

		n := d.progress.Add(1)
		d.log.Info("sample written",
			zap.Int64("done", n),
			zap.Int("total", r.total),
			zap.String("topic", unit.Topic),
			zap.String("language", unit.Language),
			zap.String("stance", unit.Stance),
			zap.Int("index", unit.Index))

		d.record(ctx, r, models.LedgerEntry{
			Unit:   unit,
			Path:   path,
			Status: models.SampleWritten,
		})
	}
	return nil
}

func (d *Dispatcher) persist(r run, res models.GenerationResult) (string, error) {
	u := res.Unit
	return d.dest.Write(r.outputDir, u.Language, u.Topic, r.provider, r.model, u.Stance, u.Index, res.Text)
}

func (d *Dispatcher) fail(ctx context.Context, r run, uerr *UnitError) {
	d.log.Error("sample failed",
		zap.String("stage", uerr.Stage),
		zap.String("topic", uerr.Unit.Topic),
		zap.String("language", uerr.Unit.Language),
		zap.String("stance", uerr.Unit.Stance),
		zap.Int("index", uerr.Unit.Index),
		zap.String("provider", r.provider),
		zap.String("model", r.model),
		zap.Error(uerr.Err))

	d.record(ctx, r, models.LedgerEntry{
		Unit:   uerr.Unit,
		Status: models.SampleFailed,
		Error:  uerr.Err.Error(),
	})
}

func (d *Dispatcher) record(ctx context.Context, r run, entry models.LedgerEntry) {
	if d.ledger == nil {
		return
	}
	entry.RunID = r.id
	entry.Provider = r.provider
	entry.Model = r.model
	// Outcomes are recorded even after cancellation.
	if err := d.ledger.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.log.Warn("failed to record ledger entry",
			zap.String("topic", entry.Unit.Topic),
			zap.Int("index", entry.Unit.Index),
			zap.Error(err))
	}
}
