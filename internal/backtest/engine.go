// Package backtest drives the simulation: one forward pass per instrument
// over its bar/feature sequence, entries and exits applied atomically within
// a bar, and a concatenated trade ledger at the end. Instruments share no
// mutable state and run in parallel.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
	"github.com/aochii2021/rss-sample-sub000/internal/levels"
	"github.com/aochii2021/rss-sample-sub000/internal/loader"
	"github.com/aochii2021/rss-sample-sub000/internal/lob"
	"github.com/aochii2021/rss-sample-sub000/internal/session"
	"github.com/aochii2021/rss-sample-sub000/internal/signal"
)

// Skip records an instrument excluded from a run and why. Skips are
// expected outcomes, not errors.
type Skip struct {
	Instrument domain.InstrumentID `json:"instrument"`
	Reason     string              `json:"reason"`
}

// InstrumentResult is one instrument's ledger segment.
type InstrumentResult struct {
	Instrument domain.InstrumentID
	Trades     []domain.Trade
	Bars       int
	Levels     int
}

// RunResult is the outcome of one full backtest run. Trades concatenates the
// per-instrument ledger segments in input instrument order.
type RunResult struct {
	RunID      string
	Cutoff     time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []InstrumentResult
	Trades     []domain.Trade
	Skips      []Skip
}

// Engine wires the loader, detector, and signal rules into a run. The level
// cache is optional; a nil cache disables caching.
type Engine struct {
	cfg      *config.Config
	loader   *loader.Loader
	detector *levels.Detector
	clock    *session.Clock
	cache    domain.LevelCache
	logger   *slog.Logger
}

// NewEngine assembles a backtest engine from its collaborators.
func NewEngine(cfg *config.Config, l *loader.Loader, d *levels.Detector, clock *session.Clock, cache domain.LevelCache, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		loader:   l,
		detector: d,
		clock:    clock,
		cache:    cache,
		logger:   logger.With(slog.String("component", "backtest")),
	}
}

// Run executes a full backtest over the given instruments at the given
// causal cutoff. Data-integrity failures abort the whole run before any
// trade is recorded; thin or level-less instruments are skipped.
func (e *Engine) Run(ctx context.Context, ids []domain.InstrumentID, cutoff time.Time) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		Cutoff:    cutoff,
		StartedAt: time.Now(),
	}

	// All bar data is loaded up front; the simulation loop itself never
	// touches I/O.
	allBars, err := e.loader.LoadBars(ctx, ids, cutoff)
	if err != nil {
		return nil, err
	}

	results := make([]*InstrumentResult, len(ids))
	skips := make([]*Skip, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			r, skip, err := e.runInstrument(gctx, id, allBars[id], cutoff)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = r
			skips[i] = skip
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		res.Results = append(res.Results, *r)
		res.Trades = append(res.Trades, r.Trades...)
	}
	for _, s := range skips {
		if s != nil {
			res.Skips = append(res.Skips, *s)
		}
	}
	res.FinishedAt = time.Now()

	e.logger.Info("run complete",
		slog.String("run_id", res.RunID),
		slog.Int("instruments", len(res.Results)),
		slog.Int("trades", len(res.Trades)),
		slog.Int("skipped", len(res.Skips)),
	)
	return res, nil
}

// runInstrument simulates one instrument. A returned Skip means the
// instrument produced no ledger segment for an expected reason.
func (e *Engine) runInstrument(ctx context.Context, id domain.InstrumentID, bars []domain.Bar, cutoff time.Time) (*InstrumentResult, *Skip, error) {
	if len(bars) < e.cfg.Data.MinBars {
		err := &domain.InsufficientDataError{Instrument: id, Have: len(bars), Want: e.cfg.Data.MinBars}
		e.logger.Warn("skipping instrument", slog.String("instrument", id.String()), slog.String("reason", err.Error()))
		return nil, &Skip{Instrument: id, Reason: err.Error()}, nil
	}

	// The simulated day is the last trading day in the series; everything
	// before it is level-detection history.
	loc := e.loader.Calendar().Location()
	simDay := dayStart(bars[len(bars)-1].Timestamp, loc)
	history, dayBars := splitAt(bars, simDay)
	history = e.trimHistory(history, simDay)
	if len(history) == 0 {
		reason := "no history before simulated day"
		e.logger.Warn("skipping instrument", slog.String("instrument", id.String()), slog.String("reason", reason))
		return nil, &Skip{Instrument: id, Reason: reason}, nil
	}

	lvls, err := e.levelsFor(ctx, id, history, cutoff)
	if err != nil {
		return nil, nil, err
	}
	if len(lvls) == 0 {
		e.logger.Warn("skipping instrument",
			slog.String("instrument", id.String()),
			slog.String("reason", domain.ErrNoLevels.Error()))
		return nil, &Skip{Instrument: id, Reason: domain.ErrNoLevels.Error()}, nil
	}

	feats, err := e.featuresFor(ctx, id, simDay)
	if err != nil {
		return nil, nil, err
	}

	eng := signal.NewEngine(e.cfg.SignalFor(id.String()), e.clock, e.logger)
	trades := e.simulate(id, eng, dayBars, feats, lvls)

	return &InstrumentResult{
		Instrument: id,
		Trades:     trades,
		Bars:       len(dayBars),
		Levels:     len(lvls),
	}, nil, nil
}

// simulate runs the single forward pass for one instrument. At most one
// position is open at any bar; the final bar force-closes any remainder.
func (e *Engine) simulate(id domain.InstrumentID, eng *signal.Engine, bars []domain.Bar, feats []domain.FeatureRow, lvls []domain.Level) []domain.Trade {
	var (
		trades  []domain.Trade
		open    *domain.Position
		tracker *signal.Tracker
		fi      int
	)

	for i, bar := range bars {
		tick := signal.Tick{
			Index: i,
			Time:  bar.Timestamp,
			Price: bar.Close,
		}
		if i > 0 {
			tick.PrevPrice = bars[i-1].Close
			tick.HasPrev = true
		}
		// Latest feature row at or before the bar; a bar with no aligned
		// row simply carries no book signal.
		for fi < len(feats) && !feats[fi].Timestamp.After(bar.Timestamp) {
			fi++
		}
		if fi > 0 && feats[fi-1].Valid() {
			tick.Features = &feats[fi-1]
		}

		if open != nil {
			tracker.Observe(open.GainTicks(tick.Price))
			if reason, ok := eng.CheckExit(*open, tick, tracker, lvls); ok {
				trades = append(trades, domain.NewTrade(uuid.NewString(), *open, tick.Price, tick.Time, i, reason))
				open, tracker = nil, nil
			}
			continue
		}

		if pos, ok := eng.CheckEntry(tick, lvls); ok {
			open = &pos
			tracker = &signal.Tracker{}
			tracker.Observe(0)
		}
	}

	if open != nil {
		last := bars[len(bars)-1]
		trades = append(trades, domain.NewTrade(
			uuid.NewString(), *open, last.Close, last.Timestamp, len(bars)-1, domain.ExitEndOfData))
	}

	e.logger.Debug("instrument simulated",
		slog.String("instrument", id.String()),
		slog.Int("bars", len(bars)),
		slog.Int("trades", len(trades)),
	)
	return trades
}

// levelsFor returns the clustered level set for an instrument at a cutoff,
// consulting the cache first when one is configured.
func (e *Engine) levelsFor(ctx context.Context, id domain.InstrumentID, history []domain.Bar, cutoff time.Time) ([]domain.Level, error) {
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, id, cutoff)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("level cache get failed", slog.String("instrument", id.String()), slog.Any("error", err))
		}
	}

	lvls := e.detector.Detect(id, history)

	if e.cache != nil && len(lvls) > 0 {
		if err := e.cache.Set(ctx, id, cutoff, lvls); err != nil {
			e.logger.Warn("level cache set failed", slog.String("instrument", id.String()), slog.Any("error", err))
		}
	}
	return lvls, nil
}

// featuresFor loads the simulated day's quotes and extracts feature rows.
// A day without quotes yields no rows, which disables book-gated rules.
func (e *Engine) featuresFor(ctx context.Context, id domain.InstrumentID, simDay time.Time) ([]domain.FeatureRow, error) {
	quotes, err := e.loader.LoadQuotes(ctx, []domain.InstrumentID{id}, simDay)
	if err != nil {
		return nil, fmt.Errorf("backtest: quotes for %s: %w", id, err)
	}
	ex := lob.NewExtractor(e.cfg.Features, e.logger)
	return ex.Extract(quotes[id]), nil
}

// trimHistory restricts level-detection history to the configured number of
// business days before the simulated day. A non-positive lookback keeps the
// full series.
func (e *Engine) trimHistory(history []domain.Bar, simDay time.Time) []domain.Bar {
	n := e.cfg.Data.LookbackDays
	if n <= 0 {
		return history
	}
	days := e.loader.Calendar().TradingDaysBefore(simDay, n)
	if len(days) == 0 {
		return history
	}
	_, trimmed := splitAt(history, days[0])
	return trimmed
}

// dayStart truncates t to midnight in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// splitAt partitions a sorted bar series into bars before the instant and
// bars at or after it.
func splitAt(bars []domain.Bar, at time.Time) (before, after []domain.Bar) {
	i := sort.Search(len(bars), func(i int) bool { return !bars[i].Timestamp.Before(at) })
	return bars[:i], bars[i:]
}
