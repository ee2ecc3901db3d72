package domain

import "time"

// ExitReason tags why a position was closed. Exactly one reason is recorded
// per trade.
type ExitReason string

const (
	// ExitSessionEnd is a forced exit at a session boundary or when the
	// session close buffer is reached. It takes precedence over every
	// other exit condition.
	ExitSessionEnd ExitReason = "SESSION_END"
	// ExitTakeProfit fires when the unrealized gain reaches the
	// take-profit distance.
	ExitTakeProfit ExitReason = "TP"
	// ExitStopLoss fires when the unrealized loss reaches the stop-loss
	// distance.
	ExitStopLoss ExitReason = "SL"
	// ExitTimeout fires when the position has been held for the maximum
	// number of bars.
	ExitTimeout ExitReason = "TO"
	// ExitHalfRetrace takes profit after a sharp favourable move gives
	// back half of its peak gain.
	ExitHalfRetrace ExitReason = "HALF_RETRACE"
	// ExitNearLevel takes profit when price closes in on the next level in
	// the trade's direction.
	ExitNearLevel ExitReason = "NEAR_LEVEL"
	// ExitMomentum takes profit when opposing book pressure appears after
	// the minimum hold.
	ExitMomentum ExitReason = "MOMENTUM"
	// ExitEarlyStop cuts a losing position early on strong opposing book
	// pressure, before the configured stop distance is reached.
	ExitEarlyStop ExitReason = "EARLY_STOP"
	// ExitEndOfData is the forced liquidation at the end of an
	// instrument's bar sequence.
	ExitEndOfData ExitReason = "EOD"
)

// Trade is one closed round trip. Immutable once appended to the ledger.
// PnLTicks is exit-entry for longs and entry-exit for shorts, in price ticks.
type Trade struct {
	ID         string
	Instrument InstrumentID
	Direction  Direction
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	PnLTicks   float64
	HoldBars   int
	ExitReason ExitReason
	LevelPrice float64
	LevelKind  LevelKind
}

// NewTrade closes the given position at the given price/time and produces the
// immutable ledger record.
func NewTrade(id string, pos Position, exitPrice float64, exitTime time.Time, exitIndex int, reason ExitReason) Trade {
	return Trade{
		ID:         id,
		Instrument: pos.Instrument,
		Direction:  pos.Direction,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		ExitPrice:  exitPrice,
		ExitTime:   exitTime,
		PnLTicks:   pos.GainTicks(exitPrice),
		HoldBars:   exitIndex - pos.EntryIndex,
		ExitReason: reason,
		LevelPrice: pos.Level.Price,
		LevelKind:  pos.Level.Kind,
	}
}
