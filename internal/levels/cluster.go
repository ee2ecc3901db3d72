package levels

import (
	"math"
	"sort"

	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

// cluster greedily merges levels whose price lies within a relative
// tolerance of the current group's representative price. Candidates are
// walked in ascending price order; each group collapses to one level whose
// price is the strength-weighted mean of its members and whose strength is
// the capped sum. Clustering an already-clustered set with the same
// tolerance is a no-op.
func cluster(cands []domain.Level, tol float64) []domain.Level {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]domain.Level, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	var (
		out   []domain.Level
		group []domain.Level
		rep   float64
	)
	flush := func() {
		if len(group) > 0 {
			out = append(out, collapse(group))
			group = nil
		}
	}
	for _, lvl := range sorted {
		if len(group) > 0 && math.Abs(lvl.Price-rep) <= rep*tol {
			group = append(group, lvl)
			rep = weightedMean(group)
			continue
		}
		flush()
		group = []domain.Level{lvl}
		rep = lvl.Price
	}
	flush()
	return out
}

// collapse merges one group into a single level. The kind of the strongest
// member becomes the cluster kind; every member kind is recorded.
func collapse(group []domain.Level) domain.Level {
	if len(group) == 1 {
		lvl := group[0]
		if len(lvl.Members) == 0 {
			lvl.Members = []domain.LevelKind{lvl.Kind}
		}
		return lvl
	}

	strongest := group[0]
	var sum float64
	members := make([]domain.LevelKind, 0, len(group))
	for _, lvl := range group {
		if lvl.Strength > strongest.Strength {
			strongest = lvl
		}
		sum += lvl.Strength
		if len(lvl.Members) > 0 {
			members = append(members, lvl.Members...)
		} else {
			members = append(members, lvl.Kind)
		}
	}
	return domain.Level{
		Instrument: strongest.Instrument,
		Kind:       strongest.Kind,
		Price:      weightedMean(group),
		Strength:   math.Min(1, sum),
		Members:    members,
	}
}

// weightedMean is the strength-weighted mean price of a group. Zero total
// strength falls back to the plain mean.
func weightedMean(group []domain.Level) float64 {
	var wsum, psum float64
	for _, lvl := range group {
		wsum += lvl.Strength
		psum += lvl.Price * lvl.Strength
	}
	if wsum == 0 {
		for _, lvl := range group {
			psum += lvl.Price
		}
		return psum / float64(len(group))
	}
	return psum / wsum
}
