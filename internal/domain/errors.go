package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoLevels      = errors.New("no usable levels")
	ErrContextDone   = errors.New("context cancelled")
)

// DataIntegrityError reports a violation of the causal cutoff or of the
// ordering/uniqueness invariants on bars and quotes. It is always fatal:
// callers must abort before any trade is recorded rather than proceed with
// partially leaked or corrupted data.
type DataIntegrityError struct {
	Instrument InstrumentID
	Timestamp  time.Time
	Reason     string
}

func (e *DataIntegrityError) Error() string {
	if e.Timestamp.IsZero() {
		return fmt.Sprintf("data integrity: %s: %s", e.Instrument, e.Reason)
	}
	return fmt.Sprintf("data integrity: %s at %s: %s",
		e.Instrument, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// InsufficientDataError marks an instrument with fewer bars than the hard
// minimum. The instrument is skipped; the run as a whole continues.
type InsufficientDataError struct {
	Instrument InstrumentID
	Have       int
	Want       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s: %d bars, need %d", e.Instrument, e.Have, e.Want)
}
