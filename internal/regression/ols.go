// Package regression fits depth-versus-time trend lines over normalized
// observation series using ordinary least squares and extrapolates them to
// the fixed forecast horizons.
package regression

import (
	"fmt"
	"math"
	"time"

	"groundwatch/internal/series"
	"groundwatch/internal/types"
)

// hoursPerYear converts observation spacing to fractional years (Julian year).
const hoursPerYear = 24 * 365.25

// Horizons is the closed set of forecast horizons, in years from the most
// recent observation. The set is a deliberate policy choice so forecast
// cards remain comparable across users; it is not user-configurable.
var Horizons = [4]int{1, 2, 3, 5}

// minWindowPoints is the floor for seasonal-window fits; two points still
// define a line, with zero residual by construction.
const minWindowPoints = 2

// Fit holds the ordinary-least-squares parameters of a depth trend line,
// depth = Slope*t + Intercept, with t measured in years from Origin.
// A Fit is immutable once computed and bit-for-bit reproducible for the same
// input series.
type Fit struct {
	Slope     float64 `json:"slope_m_per_year"`
	Intercept float64 `json:"intercept_m"`
	RSquared  float64 `json:"r_squared"`
	StdError  float64 `json:"std_error"`

	Origin    time.Time `json:"-"`
	LastDate  time.Time `json:"-"`
	LastT     float64   `json:"-"`
	Points    int       `json:"points"`
	SpanYears float64   `json:"span_years"`
}

// FitSeries fits the full normalized series. It requires at least
// series.MinPoints observations.
func FitSeries(obs []types.Observation) (*Fit, error) {
	return fit(obs, series.MinPoints)
}

// FitWindow fits a seasonal subseries, which only needs two points to carry
// a next-occurrence forecast.
func FitWindow(obs []types.Observation) (*Fit, error) {
	return fit(obs, minWindowPoints)
}

func fit(obs []types.Observation, minPoints int) (*Fit, error) {
	n := len(obs)
	if n < minPoints {
		return nil, types.NewAppError(types.ErrCodeInsufficientData,
			fmt.Sprintf("need at least %d observations for a fit, have %d", minPoints, n), nil)
	}

	origin := obs[0].Date
	ts := make([]float64, n)
	var sumT, sumD float64
	for i, o := range obs {
		ts[i] = o.Date.Sub(origin).Hours() / hoursPerYear
		sumT += ts[i]
		sumD += o.Depth
	}
	meanT := sumT / float64(n)
	meanD := sumD / float64(n)

	var sxx, sxy float64
	for i, o := range obs {
		dt := ts[i] - meanT
		sxx += dt * dt
		sxy += dt * (o.Depth - meanD)
	}
	if sxx == 0 {
		return nil, types.NewAppError(types.ErrCodeComputation,
			"observation dates have zero variance; cannot fit a trend", nil)
	}

	slope := sxy / sxx
	intercept := meanD - slope*meanT

	var ssRes, ssTot float64
	for i, o := range obs {
		resid := o.Depth - (slope*ts[i] + intercept)
		ssRes += resid * resid
		dev := o.Depth - meanD
		ssTot += dev * dev
	}

	// A perfectly flat series is fit exactly by the zero-slope line.
	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	if rSquared < 0 {
		rSquared = 0
	} else if rSquared > 1 {
		rSquared = 1
	}

	stdErr := 0.0
	if n > 2 {
		stdErr = math.Sqrt((ssRes / float64(n-2)) / sxx)
	}

	return &Fit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  rSquared,
		StdError:  stdErr,
		Origin:    origin,
		LastDate:  obs[n-1].Date,
		LastT:     ts[n-1],
		Points:    n,
		SpanYears: ts[n-1],
	}, nil
}

// PredictAt evaluates the fit line at t years from Origin.
func (f *Fit) PredictAt(t float64) float64 {
	return f.Slope*t + f.Intercept
}

// PredictOn evaluates the fit line on a calendar date.
func (f *Fit) PredictOn(date time.Time) float64 {
	return f.PredictAt(date.Sub(f.Origin).Hours() / hoursPerYear)
}

// Extrapolate projects the fit line horizonYears past the most recent
// observation, returning the target date and the predicted depth there.
func (f *Fit) Extrapolate(horizonYears int) (time.Time, float64) {
	target := f.LastDate.AddDate(horizonYears, 0, 0)
	return target, f.PredictAt(f.LastT + float64(horizonYears))
}
