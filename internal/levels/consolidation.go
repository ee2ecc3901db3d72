package levels

import (
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// consolidations finds maximal runs of bars whose total high-low range stays
// within a relative tolerance of the run's midpoint. The midpoint of each
// run becomes a level whose strength grows with the run's duration.
func (d *Detector) consolidations(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	w := d.cfg.ConsolidationWindow
	if len(bars) < w {
		return nil
	}

	var out []domain.Level
	i := 0
	for i+w <= len(bars) {
		if !rangeTight(bars[i:i+w], d.cfg.ConsolidationTolerance) {
			i++
			continue
		}
		// Extend the window to the longest run still under tolerance.
		end := i + w
		for end < len(bars) && rangeTight(bars[i:end+1], d.cfg.ConsolidationTolerance) {
			end++
		}
		hi, lo := rangeOf(bars[i:end])
		out = append(out, domain.Level{
			Instrument: id,
			Kind:       domain.LevelKindConsolidation,
			Price:      (hi + lo) / 2,
			Strength:   consolidationStrength(end-i, w),
		})
		i = end
	}
	return out
}

// consolidationStrength maps a run length to [0, 1]. The minimum qualifying
// window scores 0.4 and each extra window-length doubles toward 1.
func consolidationStrength(runLen, window int) float64 {
	return math.Min(1, 0.4+0.3*float64(runLen-window)/float64(window))
}

func rangeTight(bars []domain.Bar, tol float64) bool {
	hi, lo := rangeOf(bars)
	mid := (hi + lo) / 2
	if mid <= 0 {
		return false
	}
	return (hi-lo)/mid <= tol
}

func rangeOf(bars []domain.Bar) (hi, lo float64) {
	hi, lo = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	return hi, lo
}
