package stress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundwatch/internal/types"
)

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		rate float64
		want types.StressCategory
	}{
		{-0.5, types.StressSafe},
		{0, types.StressSafe},
		{0.05, types.StressSafe},
		{0.0999, types.StressSafe},
		{0.1, types.StressSemiCritical},
		{0.3, types.StressSemiCritical},
		{0.4999, types.StressSemiCritical},
		{0.5, types.StressCritical},
		{0.75, types.StressCritical},
		{0.9999, types.StressCritical},
		{1.0, types.StressOverExploited},
		{2.5, types.StressOverExploited},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.rate), "rate %v", tt.rate)
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev := -1
	for rate := -1.0; rate <= 2.0; rate += 0.01 {
		got := Classify(rate).SeverityRank()
		assert.GreaterOrEqual(t, got, prev, "severity regressed at rate %.2f", rate)
		prev = got
	}
}

func TestPredictTransitionSemiCritical(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tr, err := PredictTransition(0.3, asOf)
	require.NoError(t, err)
	assert.Equal(t, types.StressSemiCritical, tr.CurrentCategory)
	require.NotNil(t, tr.Next)
	assert.Equal(t, types.StressCritical, tr.Next.Category)
	// Boundary 0.5 crossed at 0.5/0.3 years.
	assert.InDelta(t, 0.5/0.3, tr.Next.Years, 1e-9)
	assert.NotEmpty(t, tr.Next.Warning, "under 5 years warrants a warning")
	assert.True(t, tr.Next.Date.After(asOf))
}

func TestPredictTransitionWarningAtHorizonEdge(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// The slowest semi-critical rate, 0.1, crosses the 0.5 boundary in exactly
	// 5 years, the edge of the warning horizon.
	tr, err := PredictTransition(0.1, asOf)
	require.NoError(t, err)
	require.NotNil(t, tr.Next)
	assert.InDelta(t, 5.0, tr.Next.Years, 1e-9)
	assert.NotEmpty(t, tr.Next.Warning, "exactly 5 years is inside the warning horizon")
}

func TestPredictTransitionStableForNonPositiveRate(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, rate := range []float64{0, -0.2} {
		tr, err := PredictTransition(rate, asOf)
		require.NoError(t, err)
		assert.Equal(t, types.StressSafe, tr.CurrentCategory)
		assert.Nil(t, tr.Next)
		assert.Contains(t, tr.Message, "stable")
	}
}

func TestPredictTransitionSafeBandHasNoForecast(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tr, err := PredictTransition(0.05, asOf)
	require.NoError(t, err)
	assert.Equal(t, types.StressSafe, tr.CurrentCategory)
	assert.Nil(t, tr.Next)
	assert.NotEmpty(t, tr.Message)
}

func TestPredictTransitionMostSevereCategory(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tr, err := PredictTransition(1.4, asOf)
	require.NoError(t, err)
	assert.Equal(t, types.StressOverExploited, tr.CurrentCategory)
	assert.Nil(t, tr.Next)
	assert.Contains(t, tr.Message, "most severe")
}

func TestPredictTransitionNonFiniteRate(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, rate := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := PredictTransition(rate, asOf)
		require.Error(t, err)
		assert.Equal(t, types.ErrCodeComputation, types.CodeOf(err))
	}
}
