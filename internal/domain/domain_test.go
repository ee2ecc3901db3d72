package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewInstrumentID(t *testing.T) {
	cases := []struct {
		raw  string
		want InstrumentID
	}{
		{"7203", "7203"},
		{"7203.T", "7203"},
		{"7203-TSE", "7203"},
		{"  9984.t ", "9984"},
		{"spy", "SPY"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NewInstrumentID(tc.raw), "raw %q", tc.raw)
	}
}

func TestPositionGainTicks(t *testing.T) {
	long := Position{Direction: DirectionLong, EntryPrice: 1000}
	assert.InDelta(t, 10, long.GainTicks(1010), 1e-9)
	assert.InDelta(t, -5, long.GainTicks(995), 1e-9)

	short := Position{Direction: DirectionShort, EntryPrice: 1000}
	assert.InDelta(t, 10, short.GainTicks(990), 1e-9)
	assert.InDelta(t, -5, short.GainTicks(1005), 1e-9)
}

func TestNewTradePnLSigns(t *testing.T) {
	entry := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)
	exit := entry.Add(5 * time.Minute)

	long := Position{
		Instrument: "7203",
		Direction:  DirectionLong,
		EntryPrice: 1000,
		EntryTime:  entry,
		EntryIndex: 3,
		Level:      Level{Price: 999.5, Kind: LevelKindPivotLow},
	}
	tr := NewTrade("t1", long, 1010, exit, 8, ExitTakeProfit)
	assert.InDelta(t, 10, tr.PnLTicks, 1e-9)
	assert.Equal(t, 5, tr.HoldBars)
	assert.Equal(t, ExitTakeProfit, tr.ExitReason)
	assert.Equal(t, 999.5, tr.LevelPrice)

	short := Position{Direction: DirectionShort, EntryPrice: 1000, EntryIndex: 0}
	tr = NewTrade("t2", short, 1010, exit, 4, ExitStopLoss)
	assert.InDelta(t, -10, tr.PnLTicks, 1e-9)
}

func TestQuoteSnapshotTop(t *testing.T) {
	q := QuoteSnapshot{
		Bids: []BookLevel{{Price: 999, Size: 100}},
		Asks: []BookLevel{{Price: 1001, Size: 200}},
	}
	assert.True(t, q.HasTop())
	assert.InDelta(t, 1000, q.Mid(), 1e-9)

	assert.False(t, QuoteSnapshot{Bids: []BookLevel{{Price: 999, Size: 1}}}.HasTop())
	assert.False(t, QuoteSnapshot{}.HasTop())
}
