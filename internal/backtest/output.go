package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// tradeCSVHeader is the ledger CSV column layout, stable across versions so
// downstream notebooks can rely on it.
var tradeCSVHeader = []string{
	"trade_id", "instrument", "direction",
	"entry_time", "entry_price", "exit_time", "exit_price",
	"pnl_ticks", "hold_bars", "exit_reason", "level_price", "level_kind",
}

// WriteTrades writes the run's concatenated trade ledger as CSV under dir
// and returns the file path.
func WriteTrades(res *RunResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backtest: create output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("trades_%s.csv", res.RunID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("backtest: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tradeCSVHeader); err != nil {
		return "", fmt.Errorf("backtest: write header: %w", err)
	}
	for _, t := range res.Trades {
		rec := []string{
			t.ID,
			t.Instrument.String(),
			string(t.Direction),
			t.EntryTime.Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			t.ExitTime.Format(time.RFC3339),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.PnLTicks, 'f', -1, 64),
			strconv.Itoa(t.HoldBars),
			string(t.ExitReason),
			strconv.FormatFloat(t.LevelPrice, 'f', -1, 64),
			string(t.LevelKind),
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("backtest: write trade %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("backtest: flush %s: %w", path, err)
	}
	return path, nil
}

// WriteSummary writes the run summary as indented JSON under dir and
// returns the file path.
func WriteSummary(sum Summary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("backtest: create output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("summary_%s.json", sum.RunID))

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("backtest: marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("backtest: write %s: %w", path, err)
	}
	return path, nil
}
