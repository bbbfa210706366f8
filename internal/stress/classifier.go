// Package stress maps annual water-table decline rates to aquifer stress
// categories and predicts when the classification will next worsen.
package stress

import (
	"fmt"
	"math"
	"time"

	"groundwatch/internal/types"
)

// Category thresholds, in meters/year of decline. Positive rates mean the
// water table is deepening (worsening). The thresholds are fixed policy.
const (
	SemiCriticalRate  = 0.1
	CriticalRate      = 0.5
	OverExploitedRate = 1.0
)

// TransitionWarningYears is the fixed policy horizon below which a predicted
// category transition carries a warning.
const TransitionWarningYears = 5.0

const hoursPerYear = 24 * 365.25

// Classify returns the stress category for an annual decline rate.
// The mapping is a monotonic, deterministic function of the rate.
func Classify(rate float64) types.StressCategory {
	switch {
	case rate < SemiCriticalRate:
		return types.StressSafe
	case rate < CriticalRate:
		return types.StressSemiCritical
	case rate < OverExploitedRate:
		return types.StressCritical
	default:
		return types.StressOverExploited
	}
}

// nextBoundary returns the lower boundary of the next more severe category,
// or false when the category is already the most severe.
func nextBoundary(cat types.StressCategory) (types.StressCategory, float64, bool) {
	switch cat {
	case types.StressSafe:
		return types.StressSemiCritical, SemiCriticalRate, true
	case types.StressSemiCritical:
		return types.StressCritical, CriticalRate, true
	case types.StressCritical:
		return types.StressOverExploited, OverExploitedRate, true
	default:
		return "", 0, false
	}
}

// Transition describes the current classification and, when the trend is
// worsening, the predicted change to the next more severe category.
type Transition struct {
	CurrentCategory types.StressCategory `json:"current_category"`
	DeclineRate     float64              `json:"decline_rate_m_per_year"`
	Next            *NextTransition      `json:"next,omitempty"`
	Message         string               `json:"message,omitempty"`
}

// NextTransition is the predicted crossing into the next more severe
// category, assuming the current decline rate holds constant.
type NextTransition struct {
	Category types.StressCategory `json:"category"`
	Years    float64              `json:"years_until"`
	Date     time.Time            `json:"date"`
	Warning  string               `json:"warning,omitempty"`
}

// PredictTransition classifies the rate and linearly extrapolates the
// cumulative decline to find the smallest positive Δt at which it crosses
// the next more severe category's lower boundary. No re-fit is performed.
//
// Returns nil Next with a stable message when the rate is non-positive
// (improving or stable water table) or the category is already the most
// severe. Fails with computation_error when the rate is non-finite.
func PredictTransition(rate float64, asOf time.Time) (*Transition, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, types.NewAppError(types.ErrCodeComputation,
			"decline rate is non-finite; cannot classify stress", nil)
	}

	t := &Transition{
		CurrentCategory: Classify(rate),
		DeclineRate:     rate,
	}

	if rate <= 0 {
		t.Message = "water table is stable or recovering; no category transition expected"
		return t, nil
	}
	// Rates inside the safe band carry no transition forecast: the decline is
	// too small to treat a linear extrapolation as meaningful.
	if rate < SemiCriticalRate {
		t.Message = "decline rate is within the safe band; no category transition expected"
		return t, nil
	}

	next, boundary, ok := nextBoundary(t.CurrentCategory)
	if !ok {
		t.Message = "already in the most severe category"
		return t, nil
	}

	years := boundary / rate
	nt := &NextTransition{
		Category: next,
		Years:    years,
		Date:     asOf.Add(time.Duration(years * hoursPerYear * float64(time.Hour))),
	}
	if years <= TransitionWarningYears {
		nt.Warning = fmt.Sprintf("projected to become %s within %.1f years at the current decline rate",
			next, years)
	}
	t.Next = nt
	return t, nil
}
