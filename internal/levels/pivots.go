package levels

import (
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// pivots finds local maxima of the high series and local minima of the low
// series using a prominence test with a minimum bar separation. The strength
// of a pivot grows with the number of bars that re-touched its price.
func (d *Detector) pivots(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	var out []domain.Level
	for _, i := range peakIndexes(highs, d.cfg.PivotSeparation, d.cfg.PivotProminence) {
		price := highs[i]
		out = append(out, domain.Level{
			Instrument: id,
			Kind:       domain.LevelKindPivotHigh,
			Price:      price,
			Strength:   pivotStrength(touches(highs, price, d.cfg.PivotTouchBand)),
		})
	}

	inverted := make([]float64, len(lows))
	for i, v := range lows {
		inverted[i] = -v
	}
	for _, i := range peakIndexes(inverted, d.cfg.PivotSeparation, d.cfg.PivotProminence) {
		price := lows[i]
		out = append(out, domain.Level{
			Instrument: id,
			Kind:       domain.LevelKindPivotLow,
			Price:      price,
			Strength:   pivotStrength(touches(lows, price, d.cfg.PivotTouchBand)),
		})
	}
	return out
}

// pivotStrength maps a touch count to [0, 1]. A single touch (the pivot
// itself) scores 0.5.
func pivotStrength(touchCount int) float64 {
	return math.Min(1, 0.4+0.1*float64(touchCount))
}

// touches counts series values within a relative band of price.
func touches(series []float64, price, band float64) int {
	n := 0
	for _, v := range series {
		if math.Abs(v-price) <= price*band {
			n++
		}
	}
	return n
}

// peakIndexes returns indexes of local maxima that clear the relative
// prominence threshold, with at least minSep bars between accepted peaks.
// When two candidates are closer than minSep the higher one wins.
func peakIndexes(series []float64, minSep int, prominence float64) []int {
	var cands []int
	for i := 1; i < len(series)-1; i++ {
		if series[i] >= series[i-1] && series[i] > series[i+1] {
			if peakProminence(series, i) >= math.Abs(series[i])*prominence {
				cands = append(cands, i)
			}
		}
	}

	var out []int
	for _, c := range cands {
		if n := len(out); n > 0 && c-out[n-1] < minSep {
			if series[c] > series[out[n-1]] {
				out[n-1] = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// peakProminence is the height of series[i] above the higher of the two
// valley minima between it and the nearest strictly taller value on each
// side (or the series edge).
func peakProminence(series []float64, i int) float64 {
	leftMin := series[i]
	for j := i - 1; j >= 0; j-- {
		if series[j] > series[i] {
			break
		}
		if series[j] < leftMin {
			leftMin = series[j]
		}
	}
	rightMin := series[i]
	for j := i + 1; j < len(series); j++ {
		if series[j] > series[i] {
			break
		}
		if series[j] < rightMin {
			rightMin = series[j]
		}
	}
	return series[i] - math.Max(leftMin, rightMin)
}
