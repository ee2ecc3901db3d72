// Package loader reads broker-exported bar and quote CSV tables and enforces
// the causal cutoff: no record at or after the simulated instant ever reaches
// a consumer. Violations surface as DataIntegrityError rather than being
// silently filtered, so a caller can never proceed with partially leaked
// data.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// Loader reads market data from a directory of CSV exports. It is safe for
// concurrent use; all state is immutable after construction.
type Loader struct {
	dir               string
	loc               *time.Location
	depth             int
	maxBadRowFraction float64
	calendar          *Calendar
	logger            *slog.Logger
}

// New creates a Loader from the data configuration.
func New(cfg config.DataConfig, logger *slog.Logger) (*Loader, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loader: load timezone %q: %w", cfg.Timezone, err)
	}
	return &Loader{
		dir:               cfg.Dir,
		loc:               loc,
		depth:             cfg.Depth,
		maxBadRowFraction: cfg.MaxBadRowFraction,
		calendar:          NewCalendar(loc, nil),
		logger:            logger.With(slog.String("component", "loader")),
	}, nil
}

// Calendar returns the trading-day calendar used by this loader.
func (l *Loader) Calendar() *Calendar { return l.calendar }

// barFile returns the bar CSV path for an instrument.
func (l *Loader) barFile(id domain.InstrumentID) string {
	return filepath.Join(l.dir, fmt.Sprintf("bars_%s.csv", id))
}

// quoteFile returns the quote CSV path for an instrument and calendar date.
func (l *Loader) quoteFile(id domain.InstrumentID, date time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("quotes_%s_%s.csv", id, date.In(l.loc).Format("20060102")))
}

// LoadBars reads, normalizes, de-duplicates, and sorts the bar series for
// each instrument. It fails closed: any record timestamped at or after
// cutoff aborts the call with a DataIntegrityError. An instrument with no
// bar file yields an empty series so the caller can skip it without
// aborting the others.
func (l *Loader) LoadBars(ctx context.Context, ids []domain.InstrumentID, cutoff time.Time) (map[domain.InstrumentID][]domain.Bar, error) {
	out := make(map[domain.InstrumentID][]domain.Bar, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loader: %w", domain.ErrContextDone)
		}
		bars, err := l.loadBarFile(id, cutoff)
		if err != nil {
			return nil, err
		}
		out[id] = bars
	}
	return out, nil
}

func (l *Loader) loadBarFile(id domain.InstrumentID, cutoff time.Time) ([]domain.Bar, error) {
	path := l.barFile(id)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// An instrument without a bar export is skippable, like one
			// with too few bars; it must not abort the other instruments.
			l.logger.Warn("no bar file", slog.String("instrument", id.String()), slog.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("loader: open bars for %s: %w", id, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, &domain.DataIntegrityError{Instrument: id, Reason: fmt.Sprintf("bars: read header: %v", err)}
	}
	cols := normalizeBarHeader(header)
	idx := columnIndex(cols)
	for _, need := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := idx[need]; !ok {
			return nil, &domain.DataIntegrityError{Instrument: id, Reason: fmt.Sprintf("bars: missing column %q", need)}
		}
	}

	byTS := make(map[time.Time]domain.Bar)
	var total, bad, dupes int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			total++
			bad++
			continue
		}
		total++

		bar, perr := l.parseBarRow(id, rec, idx)
		if perr != nil {
			bad++
			continue
		}
		// Fail closed on the causal cutoff before anything else sees the
		// record.
		if !bar.Timestamp.Before(cutoff) {
			return nil, &domain.DataIntegrityError{
				Instrument: id,
				Timestamp:  bar.Timestamp,
				Reason:     fmt.Sprintf("bar at or after cutoff %s", cutoff.Format(time.RFC3339)),
			}
		}
		if _, seen := byTS[bar.Timestamp]; seen {
			dupes++
		}
		byTS[bar.Timestamp] = bar
	}

	if total > 0 && float64(bad)/float64(total) > l.maxBadRowFraction {
		return nil, &domain.DataIntegrityError{
			Instrument: id,
			Reason:     fmt.Sprintf("bars: %d of %d rows unparseable", bad, total),
		}
	}
	if bad > 0 || dupes > 0 {
		l.logger.Warn("dropped bar rows",
			slog.String("instrument", id.String()),
			slog.Int("unparseable", bad),
			slog.Int("duplicates", dupes),
		)
	}

	bars := make([]domain.Bar, 0, len(byTS))
	for _, b := range byTS {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func (l *Loader) parseBarRow(id domain.InstrumentID, rec []string, idx map[string]int) (domain.Bar, error) {
	cell := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	ts, err := parseTimestamp(cell("timestamp"), l.loc)
	if err != nil {
		return domain.Bar{}, err
	}
	bar := domain.Bar{Timestamp: ts, Instrument: id}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	} {
		v, err := parseFloat(cell(f.name))
		if err != nil {
			return domain.Bar{}, err
		}
		*f.dst = v
	}
	if bar.High < bar.Low || bar.Volume < 0 {
		return domain.Bar{}, fmt.Errorf("inconsistent OHLCV row")
	}
	return bar, nil
}

// LoadQuotes reads the quote snapshots for each instrument on one calendar
// date. A snapshot timestamped outside that date aborts the call with a
// DataIntegrityError; malformed rows are dropped and counted.
func (l *Loader) LoadQuotes(ctx context.Context, ids []domain.InstrumentID, date time.Time) (map[domain.InstrumentID][]domain.QuoteSnapshot, error) {
	dayStart := time.Date(date.In(l.loc).Year(), date.In(l.loc).Month(), date.In(l.loc).Day(), 0, 0, 0, 0, l.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	out := make(map[domain.InstrumentID][]domain.QuoteSnapshot, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("loader: %w", domain.ErrContextDone)
		}
		quotes, err := l.loadQuoteFile(id, date, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		out[id] = quotes
	}
	return out, nil
}

func (l *Loader) loadQuoteFile(id domain.InstrumentID, date, dayStart, dayEnd time.Time) ([]domain.QuoteSnapshot, error) {
	path := l.quoteFile(id, date)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Quotes are optional per day; bars alone still allow
			// session simulation without LOB-gated entries.
			l.logger.Debug("no quote file", slog.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("loader: open quotes for %s: %w", id, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, &domain.DataIntegrityError{Instrument: id, Reason: fmt.Sprintf("quotes: read header: %v", err)}
	}
	idx := columnIndex(normalizeQuoteHeader(header))
	if _, ok := idx["timestamp"]; !ok {
		return nil, &domain.DataIntegrityError{Instrument: id, Reason: "quotes: missing timestamp column"}
	}

	byTS := make(map[time.Time]domain.QuoteSnapshot)
	var total, bad, dupes int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			total++
			bad++
			continue
		}
		total++

		snap, perr := l.parseQuoteRow(id, rec, idx)
		if perr != nil {
			bad++
			continue
		}
		if snap.Timestamp.Before(dayStart) || !snap.Timestamp.Before(dayEnd) {
			return nil, &domain.DataIntegrityError{
				Instrument: id,
				Timestamp:  snap.Timestamp,
				Reason:     fmt.Sprintf("quote outside requested date %s", dayStart.Format("2006-01-02")),
			}
		}
		if _, seen := byTS[snap.Timestamp]; seen {
			dupes++
		}
		byTS[snap.Timestamp] = snap
	}

	if total > 0 && float64(bad)/float64(total) > l.maxBadRowFraction {
		return nil, &domain.DataIntegrityError{
			Instrument: id,
			Reason:     fmt.Sprintf("quotes: %d of %d rows unparseable", bad, total),
		}
	}
	if bad > 0 || dupes > 0 {
		l.logger.Warn("dropped quote rows",
			slog.String("instrument", id.String()),
			slog.Int("unparseable", bad),
			slog.Int("duplicates", dupes),
		)
	}

	quotes := make([]domain.QuoteSnapshot, 0, len(byTS))
	for _, q := range byTS {
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Timestamp.Before(quotes[j].Timestamp) })
	return quotes, nil
}

func (l *Loader) parseQuoteRow(id domain.InstrumentID, rec []string, idx map[string]int) (domain.QuoteSnapshot, error) {
	cell := func(name string) (string, bool) {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return rec[i], true
	}

	raw, _ := cell("timestamp")
	ts, err := parseTimestamp(raw, l.loc)
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}

	snap := domain.QuoteSnapshot{Timestamp: ts, Instrument: id}
	for d := 1; d <= l.depth; d++ {
		bp, bs, err := l.parseSide(cell, "bid", d)
		if err != nil {
			return domain.QuoteSnapshot{}, err
		}
		ap, as, err := l.parseSide(cell, "ask", d)
		if err != nil {
			return domain.QuoteSnapshot{}, err
		}
		if bp > 0 {
			snap.Bids = append(snap.Bids, domain.BookLevel{Price: bp, Size: bs})
		}
		if ap > 0 {
			snap.Asks = append(snap.Asks, domain.BookLevel{Price: ap, Size: as})
		}
	}

	// Levels must be ordered away from the touch with non-negative sizes;
	// a row violating that is malformed, not a usable book.
	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price > snap.Bids[i-1].Price {
			return domain.QuoteSnapshot{}, fmt.Errorf("bids out of order")
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price < snap.Asks[i-1].Price {
			return domain.QuoteSnapshot{}, fmt.Errorf("asks out of order")
		}
	}
	return snap, nil
}

// parseSide reads one depth level of one side. A completely absent level is
// fine (zero price); a present but unparseable cell is an error for the row.
func (l *Loader) parseSide(cell func(string) (string, bool), side string, depth int) (price, size float64, err error) {
	ps, ok := cell(fmt.Sprintf("%s_price_%d", side, depth))
	if ok && ps != "" {
		price, err = parseFloat(ps)
		if err != nil {
			return 0, 0, err
		}
	}
	ss, ok := cell(fmt.Sprintf("%s_size_%d", side, depth))
	if ok && ss != "" {
		size, err = parseFloat(ss)
		if err != nil {
			return 0, 0, err
		}
	}
	if size < 0 {
		return 0, 0, fmt.Errorf("negative size")
	}
	return price, size, nil
}

// columnIndex maps canonical column names to their first position.
func columnIndex(cols []string) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if c == "" {
			continue
		}
		if _, ok := idx[c]; !ok {
			idx[c] = i
		}
	}
	return idx
}
