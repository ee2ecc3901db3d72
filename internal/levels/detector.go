// Package levels derives candidate support/resistance prices from bar
// history and clusters them into a ranked set per instrument. All methods
// consume only data strictly before the simulated instant; the caller is
// responsible for handing in a causally cut series.
package levels

import (
	"log/slog"
	"sort"

	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// Detector runs every detection method over a bar series and merges the
// results. It is safe for concurrent use.
type Detector struct {
	cfg    config.LevelConfig
	logger *slog.Logger
}

// NewDetector creates a Detector with the given parameters.
func NewDetector(cfg config.LevelConfig, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "levels")),
	}
}

// Detect returns the clustered, strength-ranked level set for one
// instrument's bar series. The returned slice may be empty; callers skip
// such instruments rather than treating them as errors.
func (d *Detector) Detect(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	if len(bars) == 0 {
		return nil
	}

	var cands []domain.Level
	cands = append(cands, d.pivots(id, bars)...)
	cands = append(cands, d.consolidations(id, bars)...)
	cands = append(cands, d.psychological(id, bars)...)
	cands = append(cands, d.movingAverages(id, bars)...)
	cands = append(cands, d.volumeNodes(id, bars)...)

	merged := cluster(cands, d.cfg.MergeTolerance)

	kept := merged[:0]
	for _, lvl := range merged {
		if lvl.Strength >= d.cfg.MinStrength {
			kept = append(kept, lvl)
		}
	}

	// Rank by strength, strongest first; price breaks ties so the ordering
	// is deterministic across runs.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Strength != kept[j].Strength {
			return kept[i].Strength > kept[j].Strength
		}
		return kept[i].Price < kept[j].Price
	})
	if len(kept) > d.cfg.MaxPerInstrument {
		kept = kept[:d.cfg.MaxPerInstrument]
	}

	d.logger.Debug("detected levels",
		slog.String("instrument", id.String()),
		slog.Int("candidates", len(cands)),
		slog.Int("kept", len(kept)),
	)
	return kept
}
