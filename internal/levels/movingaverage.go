package levels

import (
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// movingAverages emits the latest simple moving average of closes for each
// configured period. Periods longer than the available history are skipped;
// longer periods score higher strength.
func (d *Detector) movingAverages(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	var out []domain.Level
	for _, period := range d.cfg.MAPeriods {
		if period < 1 || len(bars) < period {
			continue
		}
		var sum float64
		for _, b := range bars[len(bars)-period:] {
			sum += b.Close
		}
		out = append(out, domain.Level{
			Instrument: id,
			Kind:       domain.LevelKindMovingAverage,
			Price:      sum / float64(period),
			Strength:   math.Min(0.7, 0.3+0.01*float64(period)),
		})
	}
	return out
}
