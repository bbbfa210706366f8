// Package handlers implements the HTTP handlers for the analysis API.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"groundwatch/internal/core"
	"groundwatch/internal/engine"
	"groundwatch/internal/types"
)

// maxRequestBodySize bounds batch request bodies (1 MB).
const maxRequestBodySize = 1 << 20

// AnalysisHandler serves the analysis endpoints.
type AnalysisHandler struct {
	Engine    *engine.Engine
	Validator *core.Validator
	Logger    *slog.Logger
	Clock     types.Clock
}

// NewAnalysisHandler creates the handler. A nil clock defaults to the real
// clock.
func NewAnalysisHandler(eng *engine.Engine, validator *core.Validator, logger *slog.Logger, clock types.Clock) *AnalysisHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AnalysisHandler{Engine: eng, Validator: validator, Logger: logger, Clock: clock}
}

// RegisterRoutes mounts the analysis routes on the v1 router.
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analysis", h.HandleGetAnalysis)
	r.Post("/analysis/batch", h.HandleBatchAnalysis)
	r.Get("/stations/nearest", h.HandleNearestStation)
}

// HandleGetAnalysis runs the full pipeline for one point.
// GET /v1/analysis?lat=..&lon=..&as_of=YYYY-MM-DD (as_of defaults to today).
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	point, asOf, err := h.parsePointQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.Engine.ComputeAnalysis(r.Context(), point, asOf)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleBatchAnalysis runs the pipeline for up to 50 points with per-point
// error isolation. POST /v1/analysis/batch.
func (h *AnalysisHandler) HandleBatchAnalysis(w http.ResponseWriter, r *http.Request) {
	var req engine.BatchRequest
	body := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"request body is not valid JSON", err))
		return
	}
	if err := h.Validator.Struct(&req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.AsOf.IsZero() {
		req.AsOf = h.Clock.Now()
	}

	result, err := h.Engine.ComputeBatch(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleNearestStation resolves the nearest station without running the
// pipeline. GET /v1/stations/nearest?lat=..&lon=..
func (h *AnalysisHandler) HandleNearestStation(w http.ResponseWriter, r *http.Request) {
	point, _, err := h.parsePointQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	match, err := h.Engine.NearestStation(r.Context(), point)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: match})
}

// parsePointQuery extracts lat/lon/as_of from query parameters. as_of
// defaults to the current date when omitted.
func (h *AnalysisHandler) parsePointQuery(r *http.Request) (types.Location, time.Time, error) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return types.Location{}, time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidLat,
			fmt.Sprintf("lat %q is not a valid number", q.Get("lat")), err)
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return types.Location{}, time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidLon,
			fmt.Sprintf("lon %q is not a valid number", q.Get("lon")), err)
	}

	asOf := h.Clock.Now()
	if raw := q.Get("as_of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return types.Location{}, time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidDate,
				fmt.Sprintf("as_of %q is not a valid YYYY-MM-DD date", raw), err)
		}
	}

	return types.Location{Lat: lat, Lon: lon}, asOf, nil
}
