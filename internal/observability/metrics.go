// Package observability defines the Prometheus metrics exposed by the
// analysis service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters and histograms for the analysis
// pipeline. It satisfies cache.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups   *prometheus.CounterVec // labels: class={computed,upstream,static,none}, result={hit,miss,expired}
	StaleFallbacks prometheus.Counter

	AnalysisDuration prometheus.Histogram
	AnalysisErrors   *prometheus.CounterVec // labels: code

	UpstreamRequests *prometheus.CounterVec // labels: outcome={success,error,timeout}
	UpstreamDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundwatch",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by data class and result.",
		}, []string{"class", "result"}),
		StaleFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groundwatch",
			Name:      "cache_stale_fallbacks_total",
			Help:      "Times an expired cache entry was served because the upstream fetch failed.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "groundwatch",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of a full analysis pipeline run.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundwatch",
			Name:      "analysis_errors_total",
			Help:      "Analysis diagnostics by error code.",
		}, []string{"code"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundwatch",
			Name:      "upstream_requests_total",
			Help:      "Upstream observation fetches by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "groundwatch",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream observation fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CacheLookups,
		m.StaleFallbacks,
		m.AnalysisDuration,
		m.AnalysisErrors,
		m.UpstreamRequests,
		m.UpstreamDuration,
	)
	return m
}

// CacheLookup implements cache.Recorder.
func (m *Metrics) CacheLookup(class, result string) {
	m.CacheLookups.WithLabelValues(class, result).Inc()
}

// ObserveAnalysis records one pipeline run.
func (m *Metrics) ObserveAnalysis(d time.Duration) {
	m.AnalysisDuration.Observe(d.Seconds())
}

// AnalysisError counts one diagnostic emitted by the pipeline.
func (m *Metrics) AnalysisError(code string) {
	m.AnalysisErrors.WithLabelValues(code).Inc()
}

// StaleFallback counts one expired cache entry served in place of a failed
// upstream fetch.
func (m *Metrics) StaleFallback() {
	m.StaleFallbacks.Inc()
}

// ObserveUpstream records one upstream fetch.
func (m *Metrics) ObserveUpstream(outcome string, d time.Duration) {
	m.UpstreamRequests.WithLabelValues(outcome).Inc()
	m.UpstreamDuration.Observe(d.Seconds())
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
