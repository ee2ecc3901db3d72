package domain

import "time"

// Direction is the side of a position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Sign returns +1 for long and -1 for short, the multiplier that converts a
// raw price move into a direction-adjusted gain.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Position is one open position. The backtest engine owns at most one open
// Position per instrument at any simulated instant; it is created on an entry
// signal and converted to a Trade on exit.
type Position struct {
	Instrument InstrumentID
	Direction  Direction
	EntryPrice float64
	EntryTime  time.Time
	EntryIndex int
	Level      Level
}

// GainTicks returns the direction-adjusted unrealized gain at the given mark
// price, in price ticks.
func (p Position) GainTicks(mark float64) float64 {
	return (mark - p.EntryPrice) * p.Direction.Sign()
}
