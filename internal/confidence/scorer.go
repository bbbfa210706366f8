// Package confidence derives the qualitative reliability tier shared by all
// forecast types from fit quality and data sufficiency.
package confidence

import "groundwatch/internal/types"

// Tier thresholds. All three criteria must pass for a tier; low is the
// default and is always assignable.
const (
	HighRSquared  = 0.7
	HighSpanYears = 5.0
	HighPoints    = 8

	MediumRSquared  = 0.4
	MediumSpanYears = 3.0
	MediumPoints    = 5
)

// Score maps (R², data span in years, point count) to a confidence tier.
// For fixed span and points the result is monotonically non-decreasing in R².
func Score(rSquared, spanYears float64, points int) types.ConfidenceTier {
	switch {
	case rSquared >= HighRSquared && spanYears >= HighSpanYears && points >= HighPoints:
		return types.ConfidenceHigh
	case rSquared >= MediumRSquared && spanYears >= MediumSpanYears && points >= MediumPoints:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
