// Package engine orchestrates the groundwater analysis pipeline: nearest
// station resolution, upstream series fetch (through the result cache),
// normalization, trend regression, stress classification, and seasonal
// forecasting, assembled into a single response with per-prediction
// diagnostics.
//
// The partial-failure contract is load-bearing for callers: only a
// validation error on the request parameters (or an empty station
// directory) aborts the response. Every other failure is scoped to the
// prediction types it affects and captured as a structured diagnostic while
// the rest of the result is still returned.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"groundwatch/internal/cache"
	"groundwatch/internal/confidence"
	"groundwatch/internal/geo"
	"groundwatch/internal/regression"
	"groundwatch/internal/seasonal"
	"groundwatch/internal/series"
	"groundwatch/internal/stress"
	"groundwatch/internal/types"
	"groundwatch/internal/upstream"
)

// Prediction names used in diagnostics to identify what a failure affected.
const (
	PredCurrentLevel      = "current_level"
	PredFutureWaterLevels = "future_water_levels"
	PredStressTransition  = "stress_category_transition"
	PredSeasonal          = "seasonal_predictions"
	PredRechargePattern   = "recharge_pattern"
)

// allPredictions lists every prediction type, for diagnostics that affect
// the whole pipeline (e.g. the upstream fetch failing with no stale entry).
var allPredictions = []string{
	PredCurrentLevel,
	PredFutureWaterLevels,
	PredStressTransition,
	PredSeasonal,
	PredRechargePattern,
}

// StationDirectory supplies the station reference data for nearest-station
// resolution. Implementations are external collaborators (a database
// repository or a static file).
type StationDirectory interface {
	Stations(ctx context.Context) ([]types.StationRecord, error)
}

// Recorder receives engine telemetry; a nil Recorder disables recording.
type Recorder interface {
	ObserveAnalysis(d time.Duration)
	AnalysisError(code string)
	StaleFallback()
}

// Diagnostic is one structured error entry in the analysis response.
type Diagnostic struct {
	Type                types.ErrorCode `json:"type"`
	Message             string          `json:"message"`
	AffectedPredictions []string        `json:"affected_predictions"`
}

// LevelPrediction is one extrapolated depth at a fixed horizon.
type LevelPrediction struct {
	HorizonYears int       `json:"horizon_years"`
	Date         time.Time `json:"date"`
	Level        float64   `json:"level_m"`
}

// FutureWaterLevels carries the multi-horizon depth forecasts derived from
// the full-series trend fit.
type FutureWaterLevels struct {
	Predictions []LevelPrediction    `json:"predictions"`
	DeclineRate float64              `json:"decline_rate_m_per_year"`
	RSquared    float64              `json:"r_squared"`
	Confidence  types.ConfidenceTier `json:"confidence"`
}

// Predictions groups the per-type forecast results. A nil field means that
// prediction could not be computed; the reason is in Errors.
type Predictions struct {
	FutureWaterLevels        *FutureWaterLevels `json:"future_water_levels,omitempty"`
	StressCategoryTransition *stress.Transition `json:"stress_category_transition,omitempty"`
	SeasonalPredictions      *seasonal.Outlook  `json:"seasonal_predictions,omitempty"`
	Errors                   []Diagnostic       `json:"errors,omitempty"`
}

// AnalysisResult is the full response for one analysis request. It is
// created per request, never mutated afterwards, and safe to cache.
type AnalysisResult struct {
	GeneratedAt time.Time `json:"generated_at"`

	Station    types.StationRecord `json:"station"`
	DistanceKm float64             `json:"distance_km"`
	Advisory   string              `json:"advisory,omitempty"`

	// Status is "fresh" for a normal run and "degraded" when a stale cache
	// entry was served because the upstream source was unavailable.
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`

	CurrentLevel    *float64             `json:"current_level_m,omitempty"`
	StressCategory  types.StressCategory `json:"stress_category,omitempty"`
	History         []types.Observation  `json:"history,omitempty"`
	RechargePattern []types.RechargeEntry `json:"recharge_pattern,omitempty"`
	Dropped         []series.Drop        `json:"dropped_observations,omitempty"`

	Predictions Predictions `json:"predictions"`
}

// Engine wires the pipeline components together. Construct once at process
// start and share across requests; the engine holds no per-request state.
type Engine struct {
	directory StationDirectory
	fetcher   upstream.Fetcher
	resolver  *geo.Resolver
	seasonal  *seasonal.Forecaster
	cache     *cache.Cache
	logger    *slog.Logger
	clock     types.Clock
	rec       Recorder
}

// New creates an Engine. logger and clock fall back to defaults when nil;
// rec may be nil to disable telemetry.
func New(
	directory StationDirectory,
	fetcher upstream.Fetcher,
	resolver *geo.Resolver,
	resultCache *cache.Cache,
	logger *slog.Logger,
	clock types.Clock,
	rec Recorder,
) (*Engine, error) {
	if directory == nil {
		return nil, fmt.Errorf("station directory must not be nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("upstream fetcher must not be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("geo resolver must not be nil")
	}
	if resultCache == nil {
		return nil, fmt.Errorf("result cache must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Engine{
		directory: directory,
		fetcher:   fetcher,
		resolver:  resolver,
		seasonal:  seasonal.NewForecaster(),
		cache:     resultCache,
		logger:    logger,
		clock:     clock,
		rec:       rec,
	}, nil
}

// ComputeAnalysis runs the full pipeline for a query point as of a date.
//
// Errors returned from this method abort the whole response: validation of
// the request parameters and an empty station directory. All other failures
// are folded into the result's diagnostics.
func (e *Engine) ComputeAnalysis(ctx context.Context, point types.Location, asOf time.Time) (*AnalysisResult, error) {
	if err := validateRequest(point, asOf); err != nil {
		return nil, err
	}

	start := e.clock.Now()
	asOfDay := asOf.UTC().Format("2006-01-02")

	resultKey := cache.Key("compute_analysis", map[string]any{
		"lat":   roundCoord(point.Lat),
		"lon":   roundCoord(point.Lon),
		"as_of": asOfDay,
	})
	if v, ok := e.cache.Get(resultKey); ok {
		if cached, ok := v.(*AnalysisResult); ok {
			return cached, nil
		}
	}

	match, err := e.resolveStation(ctx, point)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		GeneratedAt: start,
		Station:     match.Station,
		DistanceKm:  match.DistanceKm,
		Advisory:    match.Advisory,
		Status:      "fresh",
	}

	data, stale, fetchErr := e.fetchStationData(ctx, match.Station.ID, asOf, asOfDay)
	if fetchErr != nil {
		// No fresh data and no stale entry: every prediction is affected,
		// but the resolved station is still reported.
		e.addDiagnostic(ctx, result, fetchErr, allPredictions...)
		e.finish(result, resultKey, start)
		return result, nil
	}
	if stale {
		result.Status = "degraded"
		result.Warnings = append(result.Warnings,
			"observation source unavailable; served last cached series past its expiry")
		if e.rec != nil {
			e.rec.StaleFallback()
		}
	}

	result.RechargePattern = data.Recharge

	normalized, drops, normErr := series.Normalize(data.Observations)
	result.History = normalized
	result.Dropped = drops

	if len(normalized) > 0 {
		last := normalized[len(normalized)-1]
		level := last.Depth
		result.CurrentLevel = &level
	} else {
		e.addDiagnostic(ctx, result,
			types.NewAppError(types.ErrCodeInsufficientData, "no valid observations for this station", nil),
			PredCurrentLevel)
	}

	if normErr != nil {
		// Too few points for any trend statistic; current level (if any)
		// has already been reported above.
		e.addDiagnostic(ctx, result, normErr, PredFutureWaterLevels, PredStressTransition, PredSeasonal)
		e.finish(result, resultKey, start)
		return result, nil
	}

	fit, fitErr := regression.FitSeries(normalized)
	if fitErr != nil {
		e.addDiagnostic(ctx, result, fitErr, PredFutureWaterLevels, PredStressTransition)
	} else {
		result.Predictions.FutureWaterLevels = buildFutureLevels(fit)

		transition, trErr := stress.PredictTransition(fit.Slope, asOf)
		if trErr != nil {
			e.addDiagnostic(ctx, result, trErr, PredStressTransition)
		} else {
			result.StressCategory = transition.CurrentCategory
			result.Predictions.StressCategoryTransition = transition
		}
	}

	outlook := e.seasonal.Forecast(normalized, asOf)
	for _, omitted := range outlook.Omitted {
		e.addDiagnostic(ctx, result,
			types.NewAppError(omitted.Code, omitted.Reason, nil), PredSeasonal)
	}
	if outlook.Next != nil || outlook.Following != nil {
		result.Predictions.SeasonalPredictions = &outlook
	}

	e.finish(result, resultKey, start)
	return result, nil
}

// NearestStation resolves the nearest monitoring station to a query point
// without running the analysis pipeline.
func (e *Engine) NearestStation(ctx context.Context, point types.Location) (geo.Match, error) {
	if err := validateRequest(point, e.clock.Now()); err != nil {
		return geo.Match{}, err
	}
	return e.resolveStation(ctx, point)
}

// resolveStation loads the station directory (through the long-TTL cache
// tier) and resolves the nearest station.
func (e *Engine) resolveStation(ctx context.Context, point types.Location) (geo.Match, error) {
	key := cache.Key("station_directory", map[string]any{})

	var stations []types.StationRecord
	if v, ok := e.cache.Get(key); ok {
		stations, _ = v.([]types.StationRecord)
	}
	if stations == nil {
		loaded, err := e.directory.Stations(ctx)
		if err != nil {
			// The directory is reference data; an expired copy beats failing.
			if v, ok := e.cache.GetStale(key); ok {
				stations, _ = v.([]types.StationRecord)
			}
			if stations == nil {
				return geo.Match{}, types.NewAppError(types.ErrCodeUpstreamUnavailable,
					"station directory is unavailable", err)
			}
		} else {
			stations = loaded
			e.cache.Set(key, stations, cache.ClassStatic)
		}
	}

	return e.resolver.Nearest(point, stations)
}

// fetchStationData returns the station's series from cache or upstream.
// The bool result reports whether a stale entry was served after a fetch
// failure. A non-nil error means no data at all was obtainable.
func (e *Engine) fetchStationData(ctx context.Context, stationID string, asOf time.Time, asOfDay string) (*types.StationData, bool, error) {
	key := cache.Key("station_levels", map[string]any{
		"station": stationID,
		"as_of":   asOfDay,
	})

	if v, ok := e.cache.Get(key); ok {
		if data, ok := v.(*types.StationData); ok {
			return data, false, nil
		}
	}

	data, err := e.fetcher.Fetch(ctx, stationID, asOf)
	if err != nil {
		e.logger.WarnContext(ctx, "upstream fetch failed",
			"station", stationID, "error", err)
		if v, ok := e.cache.GetStale(key); ok {
			if cached, ok := v.(*types.StationData); ok {
				return cached, true, nil
			}
		}
		return nil, false, err
	}

	e.cache.Set(key, data, cache.ClassUpstream)
	return data, false, nil
}

func buildFutureLevels(fit *regression.Fit) *FutureWaterLevels {
	fw := &FutureWaterLevels{
		DeclineRate: fit.Slope,
		RSquared:    fit.RSquared,
		Confidence:  confidence.Score(fit.RSquared, fit.SpanYears, fit.Points),
	}
	for _, h := range regression.Horizons {
		date, level := fit.Extrapolate(h)
		fw.Predictions = append(fw.Predictions, LevelPrediction{
			HorizonYears: h,
			Date:         date,
			Level:        level,
		})
	}
	return fw
}

// addDiagnostic appends a structured error entry and logs it. The failure is
// scoped to the named predictions; the pipeline keeps going.
func (e *Engine) addDiagnostic(ctx context.Context, result *AnalysisResult, err error, affected ...string) {
	code := types.CodeOf(err)
	result.Predictions.Errors = append(result.Predictions.Errors, Diagnostic{
		Type:                code,
		Message:             err.Error(),
		AffectedPredictions: affected,
	})
	if e.rec != nil {
		e.rec.AnalysisError(string(code))
	}
	e.logger.WarnContext(ctx, "analysis stage failed",
		"code", string(code), "affected", affected, "error", err)
}

// finish records the run duration and caches the result when it is safe to
// replay.
func (e *Engine) finish(result *AnalysisResult, resultKey string, start time.Time) {
	if isCacheable(result) {
		e.cache.Set(resultKey, result, cache.ClassComputed)
	}
	if e.rec != nil {
		e.rec.ObserveAnalysis(e.clock.Now().Sub(start))
	}
}

// isCacheable reports whether a result is a pure function of its inputs.
// Responses shaped by upstream availability, a failed fetch or a stale-served
// series, are not cached so recovery shows up on the next request instead of
// after the computed TTL.
func isCacheable(result *AnalysisResult) bool {
	if result.Status != "fresh" {
		return false
	}
	for _, d := range result.Predictions.Errors {
		if d.Type == types.ErrCodeUpstreamTimeout || d.Type == types.ErrCodeUpstreamUnavailable {
			return false
		}
	}
	return true
}

func validateRequest(point types.Location, asOf time.Time) error {
	if math.IsNaN(point.Lat) || point.Lat < -90 || point.Lat > 90 {
		return types.NewAppError(types.ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %v is outside [-90, 90]", point.Lat), nil)
	}
	if math.IsNaN(point.Lon) || point.Lon < -180 || point.Lon > 180 {
		return types.NewAppError(types.ErrCodeValidationInvalidLon,
			fmt.Sprintf("longitude %v is outside [-180, 180]", point.Lon), nil)
	}
	if asOf.IsZero() {
		return types.NewAppError(types.ErrCodeValidationInvalidDate,
			"as-of date is required", nil)
	}
	return nil
}

// roundCoord rounds a coordinate to 4 decimal places (~11 m) so jittered
// duplicate requests share a cache entry.
func roundCoord(v float64) float64 {
	return math.Round(v*10000) / 10000
}
