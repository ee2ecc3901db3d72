package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// InsertRun records one completed run. Re-inserting the same run ID is a
// no-op so a retried persistence pass stays idempotent.
func (s *LedgerStore) InsertRun(ctx context.Context, run domain.RunRecord) error {
	const query = `
		INSERT INTO runs (id, cutoff, started_at, finished_at, instruments, trade_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		run.ID, run.Cutoff, run.StartedAt, run.FinishedAt, run.Instruments, run.TradeCount,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

// InsertTrades appends a run's trade ledger using a pgx batch. Duplicate
// trade IDs are silently skipped via ON CONFLICT DO NOTHING.
func (s *LedgerStore) InsertTrades(ctx context.Context, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	const query = `
		INSERT INTO trades (
			id, run_id, instrument, direction,
			entry_time, entry_price, exit_time, exit_price,
			pnl_ticks, hold_bars, exit_reason, level_price, level_kind
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		) ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(query,
			t.ID, runID, t.Instrument.String(), string(t.Direction),
			t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice,
			t.PnLTicks, t.HoldBars, string(t.ExitReason), t.LevelPrice, string(t.LevelKind),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListTrades returns a run's ledger in entry-time order.
func (s *LedgerStore) ListTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	const query = `
		SELECT id, instrument, direction,
			entry_time, entry_price, exit_time, exit_price,
			pnl_ticks, hold_bars, exit_reason, level_price, level_kind
		FROM trades WHERE run_id = $1 ORDER BY entry_time ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t                             domain.Trade
			instrument, direction, reason string
			kind                          string
		)
		if err := rows.Scan(
			&t.ID, &instrument, &direction,
			&t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice,
			&t.PnLTicks, &t.HoldBars, &reason, &t.LevelPrice, &kind,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Instrument = domain.InstrumentID(instrument)
		t.Direction = domain.Direction(direction)
		t.ExitReason = domain.ExitReason(reason)
		t.LevelKind = domain.LevelKind(kind)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades for run %s: %w", runID, err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)
