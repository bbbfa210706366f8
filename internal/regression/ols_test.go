package regression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundwatch/internal/types"
)

// yearlySeries builds n observations spaced exactly one Julian year apart so
// that t_i == i and expected slopes come out exact.
func yearlySeries(start time.Time, n int, depthAt func(i int) float64) []types.Observation {
	obs := make([]types.Observation, n)
	for i := 0; i < n; i++ {
		obs[i] = types.Observation{
			Date:  start.Add(time.Duration(i) * time.Duration(hoursPerYear) * time.Hour),
			Depth: depthAt(i),
		}
	}
	return obs
}

func TestFitSeriesRecoversKnownSlope(t *testing.T) {
	start := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 6, func(i int) float64 { return 10.0 + 0.5*float64(i) })

	f, err := FitSeries(obs)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f.Slope, 1e-9)
	assert.InDelta(t, 10.0, f.Intercept, 1e-9)
	assert.InDelta(t, 1.0, f.RSquared, 1e-9)
	assert.Zero(t, f.StdError)
	assert.Equal(t, 6, f.Points)
	assert.InDelta(t, 5.0, f.SpanYears, 1e-9)
}

func TestFitSeriesFlatSeriesHasPerfectFit(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 4, func(int) float64 { return 7.25 })

	f, err := FitSeries(obs)
	require.NoError(t, err)
	assert.Zero(t, f.Slope)
	assert.InDelta(t, 7.25, f.Intercept, 1e-9)
	assert.Equal(t, 1.0, f.RSquared)
}

func TestFitSeriesNoisyDataBoundsRSquared(t *testing.T) {
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	noise := []float64{0.3, -0.4, 0.2, -0.1, 0.35, -0.25}
	obs := yearlySeries(start, 6, func(i int) float64 { return 12.0 + 0.4*float64(i) + noise[i] })

	f, err := FitSeries(obs)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, f.RSquared, 0.0)
	assert.LessOrEqual(t, f.RSquared, 1.0)
	assert.Greater(t, f.StdError, 0.0)
	assert.InDelta(t, 0.4, f.Slope, 0.15)
}

func TestFitSeriesTooFewPoints(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 2, func(i int) float64 { return float64(i) })

	_, err := FitSeries(obs)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInsufficientData, types.CodeOf(err))
}

func TestFitWindowAcceptsTwoPoints(t *testing.T) {
	start := time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 2, func(i int) float64 { return 5.0 + float64(i) })

	f, err := FitWindow(obs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f.Slope, 1e-9)
	// Two points are fit exactly.
	assert.Equal(t, 1.0, f.RSquared)
}

func TestFitZeroDateVarianceFails(t *testing.T) {
	date := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	obs := []types.Observation{
		{Date: date, Depth: 1},
		{Date: date, Depth: 2},
		{Date: date, Depth: 3},
	}

	_, err := FitSeries(obs)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeComputation, types.CodeOf(err))
}

func TestExtrapolateProjectsFromLastObservation(t *testing.T) {
	start := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 6, func(i int) float64 { return 10.0 + 0.5*float64(i) })

	f, err := FitSeries(obs)
	require.NoError(t, err)

	date, depth := f.Extrapolate(2)
	assert.Equal(t, f.LastDate.AddDate(2, 0, 0), date)
	// Last depth 12.5, plus 2 years at 0.5 m/yr.
	assert.InDelta(t, 13.5, depth, 1e-9)
}

func TestPredictOnMatchesPredictAt(t *testing.T) {
	start := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 5, func(i int) float64 { return 8.0 + 0.2*float64(i) })

	f, err := FitSeries(obs)
	require.NoError(t, err)

	target := start.Add(time.Duration(2.5 * hoursPerYear * float64(time.Hour)))
	assert.InDelta(t, f.PredictAt(2.5), f.PredictOn(target), 1e-9)
}

func TestFitIsDeterministic(t *testing.T) {
	start := time.Date(2014, 9, 1, 0, 0, 0, 0, time.UTC)
	obs := yearlySeries(start, 8, func(i int) float64 { return 9.0 + 0.33*float64(i) })

	a, err := FitSeries(obs)
	require.NoError(t, err)
	b, err := FitSeries(obs)
	require.NoError(t, err)
	assert.Equal(t, *a, *b)
}
