// Package app provides top-level lifecycle management for the backtester. It
// wires the loader, level detector, and signal rules together with the
// optional persistence backends, runs one backtest, and writes the results.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/backtest"
	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// RunOptions selects what a single invocation simulates.
type RunOptions struct {
	Instruments []domain.InstrumentID
	Cutoff      time.Time
}

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, executes one
// backtest run, writes the local result files, and pushes the ledger to the
// configured backends.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	a.logger.InfoContext(ctx, "starting backtest",
		slog.Int("instruments", len(opts.Instruments)),
		slog.Time("cutoff", opts.Cutoff),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	engine := backtest.NewEngine(a.cfg, deps.Loader, deps.Detector, deps.Clock, deps.LevelCache, a.logger)
	res, err := engine.Run(ctx, opts.Instruments, opts.Cutoff)
	if err != nil {
		return fmt.Errorf("app: run backtest: %w", err)
	}
	sum := backtest.Summarize(res)

	tradesPath, err := backtest.WriteTrades(res, a.cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("app: write trades: %w", err)
	}
	summaryPath, err := backtest.WriteSummary(sum, a.cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("app: write summary: %w", err)
	}
	a.logger.Info("results written",
		slog.String("trades", tradesPath),
		slog.String("summary", summaryPath),
	)

	run := domain.RunRecord{
		ID:          res.RunID,
		Cutoff:      res.Cutoff,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Instruments: len(res.Results),
		TradeCount:  len(res.Trades),
	}

	if deps.Ledger != nil {
		if err := deps.Ledger.InsertRun(ctx, run); err != nil {
			return fmt.Errorf("app: persist run: %w", err)
		}
		if err := deps.Ledger.InsertTrades(ctx, run.ID, res.Trades); err != nil {
			return fmt.Errorf("app: persist trades: %w", err)
		}
		a.logger.Info("ledger persisted", slog.String("run_id", run.ID))
	}

	if deps.Archiver != nil {
		summary, err := json.Marshal(sum)
		if err != nil {
			return fmt.Errorf("app: marshal summary: %w", err)
		}
		if err := deps.Archiver.ArchiveRun(ctx, run, res.Trades, summary); err != nil {
			return fmt.Errorf("app: archive run: %w", err)
		}
		a.logger.Info("run archived", slog.String("run_id", run.ID))
	}

	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
