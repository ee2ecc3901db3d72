package domain

import (
	"context"
	"io"
	"time"
)

// RunRecord describes one completed backtest run for persistence.
type RunRecord struct {
	ID          string
	Cutoff      time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Instruments int
	TradeCount  int
}

// LedgerStore persists completed runs and their trade ledgers. A ledger is
// written once, after the run completes; no partial ledgers are ever stored.
type LedgerStore interface {
	InsertRun(ctx context.Context, run RunRecord) error
	InsertTrades(ctx context.Context, runID string, trades []Trade) error
	ListTrades(ctx context.Context, runID string) ([]Trade, error)
}

// LevelCache caches clustered level sets keyed by instrument and cutoff
// instant so repeated runs over the same history skip recomputation.
// Get returns ErrNotFound on a miss.
type LevelCache interface {
	Get(ctx context.Context, id InstrumentID, cutoff time.Time) ([]Level, error)
	Set(ctx context.Context, id InstrumentID, cutoff time.Time, levels []Level) error
}

// BlobWriter uploads run artifacts to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
