package lob

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
)

func newTestExtractor(window int) *Extractor {
	return NewExtractor(config.FeatureConfig{OFIWindow: window},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func snap(sec int, bidP, bidS, askP, askS float64) domain.QuoteSnapshot {
	return domain.QuoteSnapshot{
		Timestamp:  time.Date(2026, 8, 28, 9, 0, sec, 0, time.UTC),
		Instrument: "7203",
		Bids:       []domain.BookLevel{{Price: bidP, Size: bidS}},
		Asks:       []domain.BookLevel{{Price: askP, Size: askS}},
	}
}

func TestExtractBasicFeatures(t *testing.T) {
	rows := newTestExtractor(10).Extract([]domain.QuoteSnapshot{
		snap(0, 999, 100, 1001, 300),
	})
	require.Len(t, rows, 1)

	r := rows[0]
	assert.InDelta(t, 1000, r.Mid, 1e-9)
	assert.InDelta(t, 2, r.Spread, 1e-9)
	// (100-300)/(100+300)
	assert.InDelta(t, -0.5, r.QueueImbalance, 1e-9)
	// (999*300 + 1001*100)/400 biases toward the thin ask side.
	assert.InDelta(t, 999.5, r.Microprice, 1e-9)
	assert.InDelta(t, -0.5, r.MicroBias, 1e-9)
	// First update contributes no order flow.
	assert.InDelta(t, 0, r.OrderFlowImbalance, 1e-9)
	assert.InDelta(t, -200, r.DepthImbalance, 1e-9)
}

func TestExtractQueueImbalanceNaNOnEmptyTop(t *testing.T) {
	rows := newTestExtractor(10).Extract([]domain.QuoteSnapshot{
		snap(0, 999, 0, 1001, 0),
	})
	require.Len(t, rows, 1)
	assert.True(t, math.IsNaN(rows[0].QueueImbalance))
	// Microprice degrades to the mid.
	assert.InDelta(t, 1000, rows[0].Microprice, 1e-9)
}

func TestExtractOrderFlowImbalance(t *testing.T) {
	snaps := []domain.QuoteSnapshot{
		snap(0, 999, 100, 1001, 100), // baseline, delta 0
		snap(1, 1000, 150, 1001, 100), // bid price up: +150
		snap(2, 1000, 180, 1001, 100), // bid unchanged: +30
		snap(3, 999, 120, 1001, 100),  // bid price down: -180
		snap(4, 999, 120, 1000, 90),   // ask price down: -90
		snap(5, 999, 120, 1000, 60),   // ask unchanged: -(60-90) = +30
		snap(6, 999, 120, 1001, 80),   // ask price up: +60 (prev ask size)
	}
	rows := newTestExtractor(10).Extract(snaps)
	require.Len(t, rows, 7)

	want := []float64{0, 150, 180, 0, -90, -60, 0}
	for i, w := range want {
		assert.InDelta(t, w, rows[i].OrderFlowImbalance, 1e-9, "row %d", i)
	}
}

func TestExtractOFIWindowRolls(t *testing.T) {
	snaps := []domain.QuoteSnapshot{
		snap(0, 999, 100, 1001, 100),
		snap(1, 1000, 50, 1001, 100), // +50
		snap(2, 1001, 70, 1002, 100), // +70 (+100 from ask rise)
	}
	// Window of 1: only the newest delta survives.
	rows := newTestExtractor(1).Extract(snaps)
	require.Len(t, rows, 3)
	assert.InDelta(t, 0, rows[0].OrderFlowImbalance, 1e-9)
	assert.InDelta(t, 50, rows[1].OrderFlowImbalance, 1e-9)
	assert.InDelta(t, 170, rows[2].OrderFlowImbalance, 1e-9)
}

func TestExtractDropsSnapshotsWithoutTop(t *testing.T) {
	snaps := []domain.QuoteSnapshot{
		snap(0, 999, 100, 1001, 100),
		{Timestamp: time.Date(2026, 8, 28, 9, 0, 1, 0, time.UTC), Instrument: "7203"},
		snap(2, 1000, 150, 1001, 100),
	}
	rows := newTestExtractor(10).Extract(snaps)
	require.Len(t, rows, 2)
	// Flow is still accumulated across the dropped snapshot.
	assert.InDelta(t, 150, rows[1].OrderFlowImbalance, 1e-9)
}
