package domain

import (
	"math"
	"time"
)

// FeatureRow is the fixed, strongly typed microstructure feature record
// derived from one QuoteSnapshot. It is a pure function of the snapshot and
// its predecessors inside a trailing window; rows are recomputed fresh each
// run and never persisted as authoritative state.
//
// QueueImbalance is NaN when the top-of-book sizes sum to zero; consumers
// must treat NaN as "no signal" for that row.
type FeatureRow struct {
	Timestamp  time.Time
	Instrument InstrumentID

	Mid    float64
	Spread float64

	QueueImbalance float64
	Microprice     float64
	MicroBias      float64

	// OrderFlowImbalance is the rolling sum of per-update order-flow
	// contributions over the extractor's window (a sum, not an average).
	OrderFlowImbalance float64

	// DepthImbalance is total bid size minus total ask size across the
	// top-k book levels.
	DepthImbalance float64
}

// Valid reports whether the row carries a usable mid price.
func (f FeatureRow) Valid() bool {
	return !math.IsNaN(f.Mid) && f.Mid > 0
}
