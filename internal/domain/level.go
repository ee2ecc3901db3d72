package domain

// LevelKind identifies the detection method that produced a level.
type LevelKind string

const (
	LevelKindPivotHigh     LevelKind = "pivot_high"
	LevelKindPivotLow      LevelKind = "pivot_low"
	LevelKindConsolidation LevelKind = "consolidation"
	LevelKindPsychological LevelKind = "psychological"
	LevelKindMovingAverage LevelKind = "moving_average"
	LevelKindVolumeNode    LevelKind = "volume_node"
)

// Level is a candidate support/resistance price derived from history strictly
// before a simulated instant. Levels are immutable once emitted for an
// instant; a new instant produces a new set.
//
// After clustering, Kind is the kind of the strongest merged member and
// Members records the kinds that contributed to the cluster.
type Level struct {
	Instrument InstrumentID
	Kind       LevelKind
	Price      float64
	// Strength ranks the level in [0, 1]; cluster strength is the capped
	// sum of member strengths.
	Strength float64
	Members  []LevelKind
}
