package signal

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
	"github.com/aochii2021/rss-sample-sub000/internal/session"
)

func testSignalConfig() config.SignalConfig {
	return config.SignalConfig{
		KTicks:          2,
		TakeProfitTicks: 8,
		StopLossTicks:   5,
		MaxHoldBars:     60,
		MinHoldBars:     3,

		ProfitFloorTicks: 2,
		SharpMoveTicks:   6,
		SharpMoveWindow:  5,
		NearLevelTicks:   2,
		OFIStrong:        500,
	}
}

func newTestEngine(t *testing.T) (*Engine, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	clock, err := session.NewClock(config.SessionConfig{
		MorningOpen:        "09:00",
		MorningClose:       "11:30",
		AfternoonOpen:      "12:30",
		AfternoonClose:     "15:00",
		CloseBufferMinutes: 5,
	}, loc)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(testSignalConfig(), clock, logger), loc
}

func feat(microBias, ofi, queueImb, depthImb float64) *domain.FeatureRow {
	return &domain.FeatureRow{
		Mid:                1000,
		MicroBias:          microBias,
		OrderFlowImbalance: ofi,
		QueueImbalance:     queueImb,
		DepthImbalance:     depthImb,
	}
}

func tickAt(loc *time.Location, hour, min, idx int, price, prev float64, f *domain.FeatureRow) Tick {
	return Tick{
		Index:     idx,
		Time:      time.Date(2026, 8, 28, hour, min, 0, 0, loc),
		Price:     price,
		PrevPrice: prev,
		HasPrev:   true,
		Features:  f,
	}
}

func level(price, strength float64) domain.Level {
	return domain.Level{Instrument: "7203", Kind: domain.LevelKindPivotLow, Price: price, Strength: strength}
}

func TestCheckEntryLongFromBelow(t *testing.T) {
	eng, loc := newTestEngine(t)
	tick := tickAt(loc, 10, 0, 5, 999.5, 999, feat(0, 100, 0, 0))

	pos, ok := eng.CheckEntry(tick, []domain.Level{level(1000, 0.8)})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionLong, pos.Direction)
	assert.Equal(t, 999.5, pos.EntryPrice)
	assert.Equal(t, 5, pos.EntryIndex)
	assert.Equal(t, 1000.0, pos.Level.Price)
}

func TestCheckEntryShortFromAbove(t *testing.T) {
	eng, loc := newTestEngine(t)
	tick := tickAt(loc, 10, 0, 5, 1000.5, 1001, feat(-0.2, 0, 0, 0))

	pos, ok := eng.CheckEntry(tick, []domain.Level{level(1000, 0.8)})
	require.True(t, ok)
	assert.Equal(t, domain.DirectionShort, pos.Direction)
}

func TestCheckEntryRejections(t *testing.T) {
	eng, loc := newTestEngine(t)
	lvls := []domain.Level{level(1000, 0.8)}

	// No feature agreement: everything NaN, zero, or opposing.
	tick := tickAt(loc, 10, 0, 5, 999.5, 999, feat(-0.2, -100, math.NaN(), 0))
	_, ok := eng.CheckEntry(tick, lvls)
	assert.False(t, ok)

	// Missing features disable entries for the bar.
	tick = tickAt(loc, 10, 0, 5, 999.5, 999, nil)
	_, ok = eng.CheckEntry(tick, lvls)
	assert.False(t, ok)

	// Price too far from the level.
	tick = tickAt(loc, 10, 0, 5, 990, 989, feat(0, 100, 0, 0))
	_, ok = eng.CheckEntry(tick, lvls)
	assert.False(t, ok)

	// Moving away from the level, not approaching it.
	tick = tickAt(loc, 10, 0, 5, 999, 999.5, feat(0, 100, 0, 0))
	pos, ok := eng.CheckEntry(tick, lvls)
	// Falling toward 1000 from above would be a short, but price < level.
	assert.False(t, ok, "got %+v", pos)

	// Inside the pre-close buffer.
	tick = tickAt(loc, 11, 27, 5, 999.5, 999, feat(0, 100, 0, 0))
	_, ok = eng.CheckEntry(tick, lvls)
	assert.False(t, ok)

	// First bar of the day has no previous price to establish approach.
	tick = tickAt(loc, 10, 0, 0, 999.5, 0, feat(0, 100, 0, 0))
	tick.HasPrev = false
	_, ok = eng.CheckEntry(tick, lvls)
	assert.False(t, ok)
}

func TestCheckEntryFirstLevelWins(t *testing.T) {
	eng, loc := newTestEngine(t)
	// Both levels qualify; the first in strength order must win.
	lvls := []domain.Level{level(1001, 0.9), level(1000, 0.5)}
	tick := tickAt(loc, 10, 0, 5, 999.5, 999, feat(0, 100, 0, 0))

	pos, ok := eng.CheckEntry(tick, lvls)
	require.True(t, ok)
	assert.Equal(t, 1001.0, pos.Level.Price)
}

func longAt(entry float64) domain.Position {
	return domain.Position{
		Instrument: "7203",
		Direction:  domain.DirectionLong,
		EntryPrice: entry,
		EntryIndex: 0,
		Level:      domain.Level{Price: entry, Kind: domain.LevelKindPivotLow},
	}
}

// trackerWith returns a Tracker that has observed the given gain sequence.
func trackerWith(gains ...float64) *Tracker {
	tr := &Tracker{}
	for _, g := range gains {
		tr.Observe(g)
	}
	return tr
}

func TestExitSessionEndBeatsTakeProfit(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	// Gain of 20 would be a clear TP, but the bar is inside the close buffer.
	tick := tickAt(loc, 11, 27, 10, 1020, 1018, feat(0, 100, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(5, 18, 20), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitSessionEnd, reason)
}

func TestExitTakeProfit(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 10, 1008, 1007, feat(0, 100, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(2, 5, 8), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitTakeProfit, reason)
}

func TestExitStopLoss(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 10, 995, 996, feat(0, 0, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(-2, -4, -5), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitStopLoss, reason)
}

func TestExitTimeout(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 60, 1001, 1001, feat(0, 0, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(1), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitTimeout, reason)
}

func TestExitHalfRetrace(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	// A sharp move to +7 gave back more than half, but profit holds above
	// the floor.
	tick := tickAt(loc, 10, 0, 6, 1003, 1004, feat(0, 100, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(1, 2, 7, 5, 3), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitHalfRetrace, reason)
}

func TestExitNearLevel(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	lvls := []domain.Level{pos.Level, level(1006, 0.5)}
	tick := tickAt(loc, 10, 0, 2, 1004.5, 1004, feat(0, 100, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(2, 4, 4.5), lvls)
	require.True(t, ok)
	assert.Equal(t, domain.ExitNearLevel, reason)
}

func TestExitNearLevelNeedsProfitFloor(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	lvls := []domain.Level{pos.Level, level(1002, 0.5)}
	// Next level is close but the gain is still below the floor.
	tick := tickAt(loc, 10, 0, 2, 1001, 1000.5, feat(0, 0, 0, 0))

	_, ok := eng.CheckExit(pos, tick, trackerWith(0.5, 1), lvls)
	assert.False(t, ok)
}

func TestExitMomentum(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	// Two opposing features after the minimum hold, profit above floor.
	tick := tickAt(loc, 10, 0, 4, 1003, 1003, feat(-0.3, -50, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(1, 2, 3, 3), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitMomentum, reason)
}

func TestExitMomentumNeedsMinHold(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 2, 1003, 1003, feat(-0.3, -50, 0, 0))

	_, ok := eng.CheckExit(pos, tick, trackerWith(1, 3), nil)
	assert.False(t, ok)
}

func TestExitEarlyStop(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	// Losing, strong opposing flow, but the stop bound not yet reached.
	tick := tickAt(loc, 10, 0, 4, 998, 998.5, feat(-0.3, -600, 0, 0))

	reason, ok := eng.CheckExit(pos, tick, trackerWith(-1, -1.5, -2, -2), nil)
	require.True(t, ok)
	assert.Equal(t, domain.ExitEarlyStop, reason)
}

func TestExitEarlyStopNeedsStrongFlow(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 4, 998, 998.5, feat(-0.3, -100, 0, 0))

	_, ok := eng.CheckExit(pos, tick, trackerWith(-1, -1.5, -2, -2), nil)
	assert.False(t, ok)
}

func TestNoExitWhenNothingMatches(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	tick := tickAt(loc, 10, 0, 4, 1001, 1001, feat(0.2, 100, 0, 0))

	_, ok := eng.CheckExit(pos, tick, trackerWith(0, 0.5, 1, 1), nil)
	assert.False(t, ok)
}

func TestExitRulesMissingFeaturesDisableBookRules(t *testing.T) {
	eng, loc := newTestEngine(t)
	pos := longAt(1000)
	// Same situation as TestExitEarlyStop but without features for the bar.
	tick := tickAt(loc, 10, 0, 4, 998, 998.5, nil)

	_, ok := eng.CheckExit(pos, tick, trackerWith(-1, -1.5, -2, -2), nil)
	assert.False(t, ok)
}
