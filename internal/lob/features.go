// Package lob computes microstructure features from limit order book
// snapshots. Every feature is a pure function of the snapshot stream; the
// extractor keeps only the trailing state needed for the order-flow window.
package lob

import (
	"log/slog"
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// Extractor turns a day's quote snapshots into feature rows. It is not safe
// for concurrent use; create one per instrument per day.
type Extractor struct {
	window int
	logger *slog.Logger
}

// NewExtractor creates an Extractor with the configured OFI window.
func NewExtractor(cfg config.FeatureConfig, logger *slog.Logger) *Extractor {
	return &Extractor{
		window: cfg.OFIWindow,
		logger: logger.With(slog.String("component", "lob")),
	}
}

// Extract computes one FeatureRow per usable snapshot, in input order.
// Snapshots without a full top of book are dropped and counted; order flow
// is accumulated across the gap from the last usable snapshot.
func (e *Extractor) Extract(snaps []domain.QuoteSnapshot) []domain.FeatureRow {
	rows := make([]domain.FeatureRow, 0, len(snaps))

	var (
		prev    domain.QuoteSnapshot
		hasPrev bool
		deltas  = make([]float64, 0, e.window)
		ofiSum  float64
		dropped int
	)

	for _, s := range snaps {
		if !s.HasTop() {
			dropped++
			continue
		}

		// First usable update contributes zero order flow by definition.
		var d float64
		if hasPrev {
			d = flowDelta(prev, s)
		}
		deltas = append(deltas, d)
		ofiSum += d
		if len(deltas) > e.window {
			ofiSum -= deltas[0]
			deltas = deltas[1:]
		}

		rows = append(rows, e.row(s, ofiSum))
		prev = s
		hasPrev = true
	}

	if dropped > 0 {
		l := e.logger
		if len(snaps) > 0 {
			l = l.With(slog.String("instrument", snaps[0].Instrument.String()))
		}
		l.Warn("dropped snapshots without top of book", slog.Int("count", dropped))
	}
	return rows
}

func (e *Extractor) row(s domain.QuoteSnapshot, ofi float64) domain.FeatureRow {
	bid, ask := s.BestBid(), s.BestAsk()
	mid := s.Mid()

	qi := math.NaN()
	micro := mid
	if total := bid.Size + ask.Size; total > 0 {
		qi = (bid.Size - ask.Size) / total
		// Microprice weights each side's price by the opposite side's
		// queue, pulling toward the thinner queue.
		micro = (bid.Price*ask.Size + ask.Price*bid.Size) / total
	}

	var depthBid, depthAsk float64
	for _, lvl := range s.Bids {
		depthBid += lvl.Size
	}
	for _, lvl := range s.Asks {
		depthAsk += lvl.Size
	}

	return domain.FeatureRow{
		Timestamp:          s.Timestamp,
		Instrument:         s.Instrument,
		Mid:                mid,
		Spread:             ask.Price - bid.Price,
		QueueImbalance:     qi,
		Microprice:         micro,
		MicroBias:          micro - mid,
		OrderFlowImbalance: ofi,
		DepthImbalance:     depthBid - depthAsk,
	}
}

// flowDelta is the per-update order-flow contribution between two consecutive
// usable snapshots. Buying pressure is positive.
//
// Bid side: a price improvement counts the full new queue as arriving flow, a
// price retreat counts the full old queue as cancelled, an unchanged price
// counts the queue-size change. The ask side mirrors with opposite sign.
func flowDelta(prev, cur domain.QuoteSnapshot) float64 {
	pb, cb := prev.BestBid(), cur.BestBid()
	pa, ca := prev.BestAsk(), cur.BestAsk()

	var d float64
	switch {
	case cb.Price > pb.Price:
		d += cb.Size
	case cb.Price == pb.Price:
		d += cb.Size - pb.Size
	default:
		d -= pb.Size
	}
	switch {
	case ca.Price < pa.Price:
		d -= ca.Size
	case ca.Price == pa.Price:
		d -= ca.Size - pa.Size
	default:
		d += pa.Size
	}
	return d
}
