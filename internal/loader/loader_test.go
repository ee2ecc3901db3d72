package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

func newTestLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	l, err := New(config.DataConfig{
		Dir:               dir,
		Timezone:          "Asia/Tokyo",
		Depth:             2,
		MaxBadRowFraction: 0.2,
		MinBars:           1,
		LookbackDays:      3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return l
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadBarsFailClosedOnCutoff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"timestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n"+
			"2026-08-28 09:01:00,1000,1001,999,1000,500\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	_, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	var ierr *domain.DataIntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, domain.InstrumentID("7203"), ierr.Instrument)
	assert.Contains(t, ierr.Reason, "cutoff")
}

func TestLoadBarsFullCountWhenAllBeforeCutoff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"timestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n"+
			"2026-08-27 09:02:00,1000,1002,999,1001,300\n"+
			"2026-08-27 09:03:00,1001,1003,1000,1002,200\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	bars, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	require.NoError(t, err)
	assert.Len(t, bars["7203"], 3)
}

func TestLoadBarsDedupeKeepLastAndSort(t *testing.T) {
	dir := t.TempDir()
	// Out of order, with a duplicated timestamp whose later row must win.
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"timestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:03:00,1001,1003,1000,1002,200\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000.5,600\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	require.NoError(t, err)
	bars := out["7203"]
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
	assert.Equal(t, 1000.5, bars[0].Close)
	assert.Equal(t, 600.0, bars[0].Volume)
}

func TestLoadBarsJapaneseHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"日時,始値,高値,安値,終値,出来高\n"+
			"2026/08/27 09:01,1000,1001,999,1000,\"1,500\"\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	require.NoError(t, err)
	require.Len(t, out["7203"], 1)
	b := out["7203"][0]
	assert.Equal(t, 1000.0, b.Open)
	assert.Equal(t, 1500.0, b.Volume)
	assert.Equal(t, 9, b.Timestamp.Hour())
}

func TestLoadBarsBadRowFractionExceeded(t *testing.T) {
	dir := t.TempDir()
	content := "timestamp,open,high,low,close,volume\n" +
		"2026-08-27 09:01:00,1000,1001,999,1000,500\n"
	for i := 0; i < 5; i++ {
		content += fmt.Sprintf("garbage-%d,x,y,z,w,v\n", i)
	}
	writeFile(t, filepath.Join(dir, "bars_7203.csv"), content)

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	_, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	var ierr *domain.DataIntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Reason, "unparseable")
}

func TestLoadBarsToleratedBadRowsDropped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"timestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n"+
			"not-a-time,1,2,3,4,5\n"+
			"2026-08-27 09:02:00,1000,1002,999,1001,300\n"+
			"2026-08-27 09:03:00,1001,1003,1000,1002,200\n"+
			"2026-08-27 09:04:00,1001,1003,1000,1002,200\n"+
			"2026-08-27 09:05:00,1001,1003,1000,1002,200\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	require.NoError(t, err)
	assert.Len(t, out["7203"], 5)
}

func TestLoadQuotesDepthAndAliases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "quotes_7203_20260827.csv"),
		"時刻,買気配値1,買気配数量1,売気配値1,売気配数量1,買気配値2,買気配数量2,売気配値2,売気配数量2\n"+
			"2026-08-27 09:01:00,999,100,1001,120,998,300,1002,250\n")

	l := newTestLoader(t, dir)
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadQuotes(context.Background(), []domain.InstrumentID{"7203"}, date)
	require.NoError(t, err)
	require.Len(t, out["7203"], 1)

	q := out["7203"][0]
	require.Len(t, q.Bids, 2)
	require.Len(t, q.Asks, 2)
	assert.Equal(t, 999.0, q.BestBid().Price)
	assert.Equal(t, 100.0, q.BestBid().Size)
	assert.Equal(t, 1001.0, q.BestAsk().Price)
	assert.Equal(t, 998.0, q.Bids[1].Price)
}

func TestLoadQuotesOutsideDateFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "quotes_7203_20260827.csv"),
		"timestamp,bid_price_1,bid_size_1,ask_price_1,ask_size_1\n"+
			"2026-08-28 09:01:00,999,100,1001,120\n")

	l := newTestLoader(t, dir)
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, l.Calendar().Location())

	_, err := l.LoadQuotes(context.Background(), []domain.InstrumentID{"7203"}, date)
	var ierr *domain.DataIntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, ierr.Reason, "outside requested date")
}

func TestLoadQuotesMissingFileIsEmpty(t *testing.T) {
	l := newTestLoader(t, t.TempDir())
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadQuotes(context.Background(), []domain.InstrumentID{"7203"}, date)
	require.NoError(t, err)
	assert.Empty(t, out["7203"])
}

func TestLoadQuotesDropsDisorderedBook(t *testing.T) {
	dir := t.TempDir()
	// Second row's bids are ordered toward the touch, which is malformed.
	writeFile(t, filepath.Join(dir, "quotes_7203_20260827.csv"),
		"timestamp,bid_price_1,bid_size_1,ask_price_1,ask_size_1,bid_price_2,bid_size_2,ask_price_2,ask_size_2\n"+
			"2026-08-27 09:01:00,999,100,1001,120,998,300,1002,250\n"+
			"2026-08-27 09:01:05,998,100,1001,120,999,300,1002,250\n"+
			"2026-08-27 09:01:10,999,110,1001,130,998,280,1002,260\n"+
			"2026-08-27 09:01:15,999,105,1001,140,998,280,1002,260\n"+
			"2026-08-27 09:01:20,999,100,1001,150,998,280,1002,260\n")

	l := newTestLoader(t, dir)
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadQuotes(context.Background(), []domain.InstrumentID{"7203"}, date)
	require.NoError(t, err)
	assert.Len(t, out["7203"], 4)
}

func TestLoadBarsMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"timestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	// A file-less instrument yields an empty series; the one with data is
	// unaffected.
	out, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203", "9984"}, cutoff)
	require.NoError(t, err)
	assert.Empty(t, out["9984"])
	assert.Len(t, out["7203"], 1)
}

func TestLoadBarsBOMHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bars_7203.csv"),
		"\ufefftimestamp,open,high,low,close,volume\n"+
			"2026-08-27 09:01:00,1000,1001,999,1000,500\n")

	l := newTestLoader(t, dir)
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, l.Calendar().Location())

	out, err := l.LoadBars(context.Background(), []domain.InstrumentID{"7203"}, cutoff)
	require.NoError(t, err)
	require.Len(t, out["7203"], 1)
	assert.Equal(t, 1000.0, out["7203"][0].Open)
}
