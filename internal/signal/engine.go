// Package signal implements the entry/exit decision rules. The engine is
// stateless across bars except for the per-position Tracker the caller owns;
// every decision is a pure function of the current bar's inputs and that
// tracker.
package signal

import (
	"log/slog"
	"math"
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
	"github.com/aochii2021/rss-sample-sub000/internal/session"
)

// Tick is the per-bar evaluation context handed to the engine. Features is
// nil when no usable feature row aligns with the bar; rules that need book
// features treat that as "no signal" for the bar.
type Tick struct {
	Index     int
	Time      time.Time
	Price     float64
	PrevPrice float64
	HasPrev   bool
	Features  *domain.FeatureRow
}

// Engine evaluates entries and exits for one instrument's parameter set.
type Engine struct {
	cfg    config.SignalConfig
	clock  *session.Clock
	logger *slog.Logger
	exits  []exitRule
}

// NewEngine creates an Engine for one instrument.
func NewEngine(cfg config.SignalConfig, clock *session.Clock, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "signal")),
	}
	e.exits = exitRules()
	return e
}

// CheckEntry evaluates the entry rule against a strength-ordered level set
// and returns the opened position. The first qualifying level wins. Callers
// must only invoke this while flat.
func (e *Engine) CheckEntry(tick Tick, levels []domain.Level) (domain.Position, bool) {
	if !tick.HasPrev || tick.Features == nil || !e.clock.CanEnter(tick.Time) {
		return domain.Position{}, false
	}

	for _, lvl := range levels {
		if math.Abs(lvl.Price-tick.Price) > e.cfg.KTicks {
			continue
		}

		var dir domain.Direction
		switch {
		// Rising into the level from below: fade the approach long off
		// support.
		case tick.PrevPrice < tick.Price && tick.Price <= lvl.Price:
			dir = domain.DirectionLong
		// Falling into the level from above: fade it short off resistance.
		case tick.PrevPrice > tick.Price && tick.Price >= lvl.Price:
			dir = domain.DirectionShort
		default:
			continue
		}

		if agreeing(tick.Features, dir) < 1 {
			continue
		}

		e.logger.Debug("entry signal",
			slog.String("instrument", lvl.Instrument.String()),
			slog.String("direction", string(dir)),
			slog.Float64("level", lvl.Price),
			slog.Float64("price", tick.Price),
		)
		return domain.Position{
			Instrument: lvl.Instrument,
			Direction:  dir,
			EntryPrice: tick.Price,
			EntryTime:  tick.Time,
			EntryIndex: tick.Index,
			Level:      lvl,
		}, true
	}
	return domain.Position{}, false
}

// CheckExit evaluates the exit rules in precedence order and returns the
// first matching reason. The tracker must have observed every bar since
// entry, including the current one.
func (e *Engine) CheckExit(pos domain.Position, tick Tick, tr *Tracker, levels []domain.Level) (domain.ExitReason, bool) {
	ctx := exitContext{
		cfg:    e.cfg,
		clock:  e.clock,
		pos:    pos,
		tick:   tick,
		tr:     tr,
		levels: levels,
		gain:   pos.GainTicks(tick.Price),
		held:   tick.Index - pos.EntryIndex,
	}
	for _, rule := range e.exits {
		if rule.match(ctx) {
			return rule.reason, true
		}
	}
	return "", false
}

// Tracker accumulates per-bar state for one open position. Reset on entry,
// discarded on exit.
type Tracker struct {
	gains []float64
}

// Observe records the direction-adjusted gain for one bar.
func (t *Tracker) Observe(gain float64) {
	t.gains = append(t.gains, gain)
}

// PeakWithin returns the maximum observed gain over the trailing n bars.
func (t *Tracker) PeakWithin(n int) float64 {
	if len(t.gains) == 0 {
		return 0
	}
	start := len(t.gains) - n
	if start < 0 {
		start = 0
	}
	peak := math.Inf(-1)
	for _, g := range t.gains[start:] {
		if g > peak {
			peak = g
		}
	}
	return peak
}

// agreeing counts the book features whose sign matches the direction.
func agreeing(f *domain.FeatureRow, dir domain.Direction) int {
	return countSigns(f, dir.Sign())
}

// opposing counts the book features whose sign opposes the direction.
func opposing(f *domain.FeatureRow, dir domain.Direction) int {
	return countSigns(f, -dir.Sign())
}

func countSigns(f *domain.FeatureRow, want float64) int {
	n := 0
	for _, v := range []float64{f.MicroBias, f.OrderFlowImbalance, f.QueueImbalance, f.DepthImbalance} {
		if math.IsNaN(v) || v == 0 {
			continue
		}
		if v*want > 0 {
			n++
		}
	}
	return n
}
