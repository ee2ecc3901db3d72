package levels

import (
	"math"
	"sort"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// volumeNodes builds a volume-at-price profile with fixed-width bins, each
// bar's volume spread proportionally over the bins its high-low range
// covers, and emits the top-N bins as levels with strength relative to the
// largest bin.
func (d *Detector) volumeNodes(id domain.InstrumentID, bars []domain.Bar) []domain.Level {
	width := d.cfg.VolumeBinWidth
	profile := make(map[int]float64)

	for _, b := range bars {
		lo, hi := b.Low, b.High
		if b.Volume <= 0 || hi < lo {
			continue
		}
		if hi == lo {
			profile[int(math.Floor(lo/width))] += b.Volume
			continue
		}
		span := hi - lo
		for bin := int(math.Floor(lo / width)); float64(bin)*width < hi; bin++ {
			binLo := math.Max(lo, float64(bin)*width)
			binHi := math.Min(hi, float64(bin+1)*width)
			if binHi > binLo {
				profile[bin] += b.Volume * (binHi - binLo) / span
			}
		}
	}
	if len(profile) == 0 {
		return nil
	}

	type node struct {
		bin int
		vol float64
	}
	nodes := make([]node, 0, len(profile))
	var maxVol float64
	for bin, vol := range profile {
		nodes = append(nodes, node{bin, vol})
		if vol > maxVol {
			maxVol = vol
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].vol != nodes[j].vol {
			return nodes[i].vol > nodes[j].vol
		}
		return nodes[i].bin < nodes[j].bin
	})
	if len(nodes) > d.cfg.VolumeTopN {
		nodes = nodes[:d.cfg.VolumeTopN]
	}

	out := make([]domain.Level, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, domain.Level{
			Instrument: id,
			Kind:       domain.LevelKindVolumeNode,
			Price:      (float64(n.bin) + 0.5) * width,
			Strength:   n.vol / maxVol,
		})
	}
	return out
}
