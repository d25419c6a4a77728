package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/models"
	"github.com/DrishtiShrrrma/political-bias-eval/internal/core/domain/ports"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// Ensure BunLedger implements RunLedger
var _ ports.RunLedger = (*BunLedger)(nil)

// SampleRecord is one ledger row: the outcome of a single generation unit.
type SampleRecord struct {
	bun.BaseModel `bun:"table:samples,alias:s"`

	ID        int64               `bun:",pk,autoincrement"`
	RunID     string              `bun:",notnull"`
	Provider  string              `bun:",notnull"`
	Model     string              `bun:",notnull"`
	Topic     string              `bun:",notnull"`
	Language  string              `bun:",notnull"`
	Stance    string              `bun:",notnull"`
	Index     int                 `bun:"sample_index,notnull"`
	Path      string              `bun:",nullzero"`
	Status    models.SampleStatus `bun:",notnull"`
	Error     string              `bun:",nullzero"`
	CreatedAt time.Time           `bun:",nullzero,notnull,default:current_timestamp"`
}

// BunLedger stores sample outcomes in a SQL database through bun.
type BunLedger struct {
	db *bun.DB
}

// Open opens (or creates) a SQLite ledger at path.
func Open(ctx context.Context, path string) (*BunLedger, error) {
	conn, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One connection: concurrent workers queue on the pool.
	conn.SetMaxOpenConns(1)

	l, err := NewBunLedger(ctx, conn, sqlitedialect.New())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return l, nil
}

func NewBunLedger(ctx context.Context, conn *sql.DB, dialect schema.Dialect) (*BunLedger, error) {
	db := bun.NewDB(conn, dialect)

	if _, err := db.NewCreateTable().Model((*SampleRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create samples table: %w", err)
	}
	return &BunLedger{db: db}, nil
}

func (l *BunLedger) Record(ctx context.Context, entry models.LedgerEntry) error {
	rec := &SampleRecord{
		RunID:    entry.RunID,
		Provider: entry.Provider,
		Model:    entry.Model,
		Topic:    entry.Unit.Topic,
		Language: entry.Unit.Language,
		Stance:   entry.Unit.Stance,
		Index:    entry.Unit.Index,
		Path:     entry.Path,
		Status:   entry.Status,
		Error:    entry.Error,
	}
	if _, err := l.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// ListRun returns every record of runID in insertion order.
func (l *BunLedger) ListRun(ctx context.Context, runID string) ([]*SampleRecord, error) {
	var recs []*SampleRecord
	if err := l.db.NewSelect().Model(&recs).Where("run_id = ?", runID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return recs, nil
}

// CountByStatus returns how many records of runID have the given status.
func (l *BunLedger) CountByStatus(ctx context.Context, runID string, status models.SampleStatus) (int, error) {
	return l.db.NewSelect().Model((*SampleRecord)(nil)).
		Where("run_id = ?", runID).
		Where("status = ?", status).
		Count(ctx)
}

func (l *BunLedger) Close() error {
	return l.db.Close()
}
