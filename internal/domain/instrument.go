package domain

import "strings"

// InstrumentID is the canonical identifier for a traded instrument. It is
// produced once at ingestion by NewInstrumentID; every downstream map and
// lookup is keyed by this type so that no component needs to re-normalize
// broker-flavoured identifiers.
type InstrumentID string

// NewInstrumentID canonicalizes a raw instrument identifier as exported by the
// broker terminal. Exchange suffixes ("7203.T", "7203-TSE") and surrounding
// whitespace are stripped; the remainder is upper-cased.
func NewInstrumentID(raw string) InstrumentID {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, ".-"); i > 0 {
		s = s[:i]
	}
	return InstrumentID(strings.ToUpper(s))
}

func (id InstrumentID) String() string { return string(id) }
