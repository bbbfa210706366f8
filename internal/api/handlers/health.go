package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"groundwatch/internal/cache"
	"groundwatch/internal/core"
	"groundwatch/internal/types"
)

// BreakerStater reports the upstream circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

// HealthHandler serves the liveness/health endpoint.
type HealthHandler struct {
	Cache    *cache.Cache
	Upstream BreakerStater
	Clock    types.Clock
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	UpstreamBreaker string    `json:"upstream_breaker"`
	CacheEntries    int       `json:"cache_entries"`
}

// NewHealthHandler creates the handler. A nil clock defaults to the real
// clock.
func NewHealthHandler(c *cache.Cache, upstream BreakerStater, clock types.Clock) *HealthHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &HealthHandler{Cache: c, Upstream: upstream, Clock: clock}
}

// RegisterRoutes mounts /health at the router root.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
}

// HandleHealth reports service health. A degraded upstream breaker does not
// fail the check: the engine still serves cached and partial results.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:       "ok",
		Timestamp:    h.Clock.Now(),
		CacheEntries: h.Cache.Len(),
	}
	if h.Upstream != nil {
		status.UpstreamBreaker = h.Upstream.BreakerState()
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: status})
}
