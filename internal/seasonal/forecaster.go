// Package seasonal builds pre- and post-monsoon depth forecasts from the
// normalized historical series.
package seasonal

import (
	"fmt"
	"time"

	"groundwatch/internal/confidence"
	"groundwatch/internal/regression"
	"groundwatch/internal/types"
)

// Window is one fixed seasonal analysis window. Anchor is the month used as
// the target date of the window's next occurrence.
type Window struct {
	Season types.Season
	Months []time.Month
	Anchor time.Month
}

// DefaultWindows are the fixed calendar windows used for seasonal analysis:
// pre-monsoon January through May, post-monsoon October through December.
// The slice order is the tie-break order for the nearest-season fallback.
func DefaultWindows() []Window {
	return []Window{
		{
			Season: types.SeasonPreMonsoon,
			Months: []time.Month{time.January, time.February, time.March, time.April, time.May},
			Anchor: time.March,
		},
		{
			Season: types.SeasonPostMonsoon,
			Months: []time.Month{time.October, time.November, time.December},
			Anchor: time.November,
		},
	}
}

// minWindowPoints is the minimum subseries size for a window forecast.
const minWindowPoints = 2

// WindowForecast is the trend-adjusted forecast for one window's next
// occurrence. ExpectedRechargeM is the predicted change in water level
// relative to the most recent observation in that season; negative means
// net depletion (the water table is predicted to end up deeper).
type WindowForecast struct {
	Season             types.Season         `json:"season"`
	TargetDate         time.Time            `json:"target_date"`
	HistoricalAvgDepth float64              `json:"historical_avg_depth_m"`
	PredictedDepth     float64              `json:"predicted_depth_m"`
	ExpectedRechargeM  float64              `json:"expected_recharge_m"`
	Confidence         types.ConfidenceTier `json:"confidence"`
	Points             int                  `json:"points"`
}

// OmittedWindow records a window whose forecast could not be built. The
// other window may still succeed; omission is a diagnostic, not a failure.
type OmittedWindow struct {
	Season types.Season    `json:"season"`
	Code   types.ErrorCode `json:"code"`
	Reason string          `json:"reason"`
}

// Outlook is the seasonal portion of an analysis: the season the as-of date
// falls in, plus forecasts for the next and following seasonal windows in
// chronological order.
type Outlook struct {
	CurrentSeason types.Season    `json:"current_season"`
	Next          *WindowForecast `json:"next,omitempty"`
	Following     *WindowForecast `json:"following,omitempty"`
	Omitted       []OmittedWindow `json:"omitted,omitempty"`
}

// Forecaster splits observation series into seasonal windows and forecasts
// each window's next occurrence.
type Forecaster struct {
	windows []Window
}

// NewForecaster creates a Forecaster over the default monsoon windows.
func NewForecaster() *Forecaster {
	return &Forecaster{windows: DefaultWindows()}
}

// NewForecasterWithWindows creates a Forecaster over custom windows. The
// window order determines the tie-break for the nearest-season fallback.
func NewForecasterWithWindows(windows []Window) *Forecaster {
	return &Forecaster{windows: windows}
}

// CurrentSeason maps a month to a season. Months inside a window map to that
// window; any month outside both windows (June through September) reports
// the nearer window by circular calendar distance, ties broken by window
// order.
func (f *Forecaster) CurrentSeason(month time.Month) types.Season {
	for _, w := range f.windows {
		for _, m := range w.Months {
			if m == month {
				return w.Season
			}
		}
	}

	best := f.windows[0].Season
	bestDist := 13
	for _, w := range f.windows {
		for _, m := range w.Months {
			d := circularMonthDistance(month, m)
			if d < bestDist {
				bestDist = d
				best = w.Season
			}
		}
	}
	return best
}

// circularMonthDistance returns the distance between two months on the
// 12-month calendar wheel.
func circularMonthDistance(a, b time.Month) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}

// Forecast builds the seasonal outlook for the series as of asOf. Each
// window fails independently: a window with fewer than two observations, or
// with degenerate dates, is recorded in Omitted while the other may still
// produce a forecast.
func (f *Forecaster) Forecast(obs []types.Observation, asOf time.Time) Outlook {
	out := Outlook{CurrentSeason: f.CurrentSeason(asOf.Month())}

	var forecasts []*WindowForecast
	for _, w := range f.windows {
		wf, omit := f.forecastWindow(w, obs, asOf)
		if omit != nil {
			out.Omitted = append(out.Omitted, *omit)
			continue
		}
		forecasts = append(forecasts, wf)
	}

	// Order by next occurrence: the chronologically nearer window is "next".
	if len(forecasts) == 2 && forecasts[1].TargetDate.Before(forecasts[0].TargetDate) {
		forecasts[0], forecasts[1] = forecasts[1], forecasts[0]
	}
	if len(forecasts) > 0 {
		out.Next = forecasts[0]
	}
	if len(forecasts) > 1 {
		out.Following = forecasts[1]
	}
	return out
}

func (f *Forecaster) forecastWindow(w Window, obs []types.Observation, asOf time.Time) (*WindowForecast, *OmittedWindow) {
	sub := filterByMonths(obs, w.Months)
	if len(sub) < minWindowPoints {
		return nil, &OmittedWindow{
			Season: w.Season,
			Code:   types.ErrCodeInsufficientData,
			Reason: fmt.Sprintf("need at least %d observations in the %s window, have %d", minWindowPoints, w.Season, len(sub)),
		}
	}

	fit, err := regression.FitWindow(sub)
	if err != nil {
		return nil, &OmittedWindow{
			Season: w.Season,
			Code:   types.CodeOf(err),
			Reason: err.Error(),
		}
	}

	target := nextOccurrence(w.Anchor, asOf)
	predicted := fit.PredictOn(target)

	var sum float64
	for _, o := range sub {
		sum += o.Depth
	}
	last := sub[len(sub)-1]

	return &WindowForecast{
		Season:             w.Season,
		TargetDate:         target,
		HistoricalAvgDepth: sum / float64(len(sub)),
		PredictedDepth:     predicted,
		// Depth shrinks when the aquifer recharges, so the expected change in
		// water level is last depth minus predicted depth.
		ExpectedRechargeM: last.Depth - predicted,
		Confidence:        confidence.Score(fit.RSquared, fit.SpanYears, fit.Points),
		Points:            len(sub),
	}, nil
}

// filterByMonths returns the subseries whose calendar months fall in months,
// preserving chronological order.
func filterByMonths(obs []types.Observation, months []time.Month) []types.Observation {
	set := make(map[time.Month]bool, len(months))
	for _, m := range months {
		set[m] = true
	}
	var sub []types.Observation
	for _, o := range obs {
		if set[o.Date.Month()] {
			sub = append(sub, o)
		}
	}
	return sub
}

// nextOccurrence returns the first of the anchor month strictly after asOf.
func nextOccurrence(anchor time.Month, asOf time.Time) time.Time {
	t := time.Date(asOf.Year(), anchor, 1, 0, 0, 0, 0, time.UTC)
	if !t.After(asOf) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}
