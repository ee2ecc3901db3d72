package levels

import (
	"math"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// psychological emits round-number levels within a relative band around the
// last close. Steps are tried largest first and a price already claimed by a
// larger step is not emitted again; larger steps score higher strength.
func (d *Detector) psychological(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return nil
	}
	lo := last * (1 - d.cfg.PsychologicalBand)
	hi := last * (1 + d.cfg.PsychologicalBand)

	seen := make(map[float64]bool)
	var out []domain.Level
	for rank, step := range d.cfg.PsychologicalSteps {
		if step <= 0 {
			continue
		}
		strength := psychStrength(rank, len(d.cfg.PsychologicalSteps))
		for p := math.Ceil(lo/step) * step; p <= hi; p += step {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, domain.Level{
				Instrument: id,
				Kind:       domain.LevelKindPsychological,
				Price:      p,
				Strength:   strength,
			})
		}
	}
	return out
}

// psychStrength scores a step by its rank among the configured steps: the
// largest step scores 0.6, the smallest 0.3, intermediates interpolate.
func psychStrength(rank, total int) float64 {
	if total <= 1 {
		return 0.6
	}
	return 0.6 - 0.3*float64(rank)/float64(total-1)
}
