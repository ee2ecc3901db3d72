package backtest

import (
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// Summary aggregates a run's trade ledger into headline metrics. PnL figures
// are in price ticks; fees and slippage are out of scope.
type Summary struct {
	RunID       string    `json:"run_id"`
	Cutoff      time.Time `json:"cutoff"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Instruments int       `json:"instruments"`
	Skipped     int       `json:"skipped"`

	TradeCount int     `json:"trade_count"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRate    float64 `json:"win_rate"`

	TotalPnLTicks float64 `json:"total_pnl_ticks"`
	AvgPnLTicks   float64 `json:"avg_pnl_ticks"`
	MaxDrawdown   float64 `json:"max_drawdown_ticks"`
	AvgHoldBars   float64 `json:"avg_hold_bars"`

	ByExitReason map[domain.ExitReason]int `json:"by_exit_reason"`
	Skips        []Skip                    `json:"skips,omitempty"`
}

// Summarize computes the Summary for a completed run. Drawdown is measured
// on the cumulative PnL curve in ledger order.
func Summarize(res *RunResult) Summary {
	s := Summary{
		RunID:        res.RunID,
		Cutoff:       res.Cutoff,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		Instruments:  len(res.Results),
		Skipped:      len(res.Skips),
		TradeCount:   len(res.Trades),
		ByExitReason: make(map[domain.ExitReason]int),
		Skips:        res.Skips,
	}

	var equity, peak, holdSum float64
	for _, t := range res.Trades {
		s.TotalPnLTicks += t.PnLTicks
		holdSum += float64(t.HoldBars)
		s.ByExitReason[t.ExitReason]++
		if t.PnLTicks > 0 {
			s.Wins++
		} else if t.PnLTicks < 0 {
			s.Losses++
		}

		equity += t.PnLTicks
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}

	if s.TradeCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TradeCount)
		s.AvgPnLTicks = s.TotalPnLTicks / float64(s.TradeCount)
		s.AvgHoldBars = holdSum / float64(s.TradeCount)
	}
	return s
}
