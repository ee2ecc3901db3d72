package domain

import "time"

// BookLevel is a single price+size entry on one side of the book.
type BookLevel struct {
	Price float64
	Size  float64
}

// QuoteSnapshot is a best-k snapshot of the limit order book for one
// instrument. Bids[0] / Asks[0] are the best quotes; deeper levels follow in
// price order away from the touch. Sizes are never negative.
type QuoteSnapshot struct {
	Timestamp  time.Time
	Instrument InstrumentID
	Bids       []BookLevel
	Asks       []BookLevel
}

// HasTop reports whether the snapshot carries both a best bid and a best ask
// with positive prices. Snapshots without a full top of book are dropped
// before feature computation.
func (q QuoteSnapshot) HasTop() bool {
	return len(q.Bids) > 0 && len(q.Asks) > 0 && q.Bids[0].Price > 0 && q.Asks[0].Price > 0
}

// BestBid returns the best bid level. Callers must check HasTop first.
func (q QuoteSnapshot) BestBid() BookLevel { return q.Bids[0] }

// BestAsk returns the best ask level. Callers must check HasTop first.
func (q QuoteSnapshot) BestAsk() BookLevel { return q.Asks[0] }

// Mid returns the mid price, the average of best bid and best ask.
func (q QuoteSnapshot) Mid() float64 {
	return (q.Bids[0].Price + q.Asks[0].Price) / 2
}
