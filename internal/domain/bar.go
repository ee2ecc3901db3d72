package domain

import "time"

// Bar is a single OHLCV bar for one instrument. Within one instrument's
// series timestamps are strictly increasing after de-duplication; the loader
// enforces this before any bar reaches a consumer.
type Bar struct {
	Timestamp  time.Time
	Instrument InstrumentID
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}
