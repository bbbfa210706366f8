package types

// StressCategory is the ordinal classification of aquifer health derived
// from the annual decline rate of the water table.
type StressCategory string

const (
	StressSafe          StressCategory = "safe"
	StressSemiCritical  StressCategory = "semi_critical"
	StressCritical      StressCategory = "critical"
	StressOverExploited StressCategory = "over_exploited"
)

// severityRanks orders categories from least to most severe.
var severityRanks = map[StressCategory]int{
	StressSafe:          0,
	StressSemiCritical:  1,
	StressCritical:      2,
	StressOverExploited: 3,
}

// SeverityRank returns the position of the category in severity order,
// 0 (Safe) through 3 (Over-exploited). Unknown categories rank as -1.
func (c StressCategory) SeverityRank() int {
	if r, ok := severityRanks[c]; ok {
		return r
	}
	return -1
}

// MoreSevereThan reports whether c is strictly more severe than other.
func (c StressCategory) MoreSevereThan(other StressCategory) bool {
	return c.SeverityRank() > other.SeverityRank()
}

// ConfidenceTier is the qualitative reliability label attached to every
// forecast, derived from fit quality and data sufficiency.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Season identifies one of the two fixed seasonal analysis windows.
type Season string

const (
	SeasonPreMonsoon  Season = "pre_monsoon"
	SeasonPostMonsoon Season = "post_monsoon"
)
