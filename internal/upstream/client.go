// Package upstream implements the HTTP client for the external groundwater
// observation source. All outbound calls are routed through a shared
// resilience layer: circuit breaking, bounded retries with exponential
// backoff and jitter, a per-request timeout, and error mapping to the
// service's upstream_* error codes.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"groundwatch/internal/types"
)

// RetryPolicy configures the retry behavior for upstream fetches.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns sensible defaults for the observation source.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Recorder receives fetch telemetry; a nil Recorder disables recording.
type Recorder interface {
	ObserveUpstream(outcome string, d time.Duration)
}

// Client fetches station series from the upstream levels API. It implements
// Fetcher.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	baseURL string
	timeout time.Duration
	retry   RetryPolicy
	rec     Recorder
	sleepFn func(time.Duration) // injected for tests; defaults to time.Sleep
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithSleepFunc overrides the sleep function used between retries. Intended
// for tests to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleepFn = fn }
}

// WithRecorder attaches fetch telemetry.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) { c.rec = rec }
}

// NewClient creates a Client for the given base URL. timeout bounds each
// Fetch call end to end, retries included; exceeding it yields
// upstream_timeout.
func NewClient(httpClient *http.Client, baseURL string, timeout time.Duration, retry RetryPolicy, opts ...Option) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "groundwater-levels-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	c := &Client{
		http:    httpClient,
		breaker: cb,
		baseURL: baseURL,
		timeout: timeout,
		retry:   retry,
		sleepFn: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState reports the circuit breaker state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Fetch retrieves the observation series and recharge entries for a station.
// Recharge amounts are recomputed from the pre/post depths on ingest so the
// rechargeAmount invariant always holds within tolerance.
func (c *Client) Fetch(ctx context.Context, stationID string, asOf time.Time) (*types.StationData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/stations/%s/levels?as_of=%s",
		c.baseURL, url.PathEscape(stationID), asOf.UTC().Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build upstream request", err)
	}

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		c.observe(outcomeOf(err), start)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.observe("error", start)
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("observation source returned status %d for station %s", resp.StatusCode, stationID), nil)
	}

	var data types.StationData
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&data); err != nil {
		c.observe("error", start)
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"failed to decode observation source response", err)
	}

	for i := range data.Recharge {
		r := &data.Recharge[i]
		computed := r.PreMonsoonDepth - r.PostMonsoonDepth
		if math.Abs(r.RechargeAmount-computed) > 1e-3 {
			r.RechargeAmount = computed
		}
	}

	c.observe("success", start)
	return &data, nil
}

// do executes the request through the circuit breaker, retrying on 429/5xx
// and network errors with exponential backoff (Retry-After respected).
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retry.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.http.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// A tripped breaker or an expired deadline will not recover within
		// this request; stop retrying.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if req.Context().Err() != nil {
			lastErr = req.Context().Err()
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastErr)
}

// computeBackoff determines the wait before the next attempt. Retry-After is
// honored when present; otherwise exponential backoff with full jitter
// clamped to [0, min(MaxWait, MinWait*2^attempt)].
func (c *Client) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if t, err := http.ParseTime(retryAfter); err == nil {
				if wait := time.Until(t); wait > 0 {
					return min(wait, c.retry.MaxWait)
				}
				return c.retry.MinWait
			}
			var seconds int
			if _, err := fmt.Sscanf(retryAfter, "%d", &seconds); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retry.MaxWait)
			}
		}
	}

	base := float64(c.retry.MinWait) * math.Pow(2, float64(attempt))
	capped := math.Min(base, float64(c.retry.MaxWait))
	return time.Duration(rand.Float64() * capped)
}

// mapError translates transport failures into the service's error taxonomy.
func (c *Client) mapError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(types.ErrCodeUpstreamTimeout,
			"observation source did not respond within the fetch timeout", err)
	case errors.Is(err, context.Canceled):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"observation fetch canceled", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"observation source circuit breaker is open", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"observation source is unavailable", err)
	}
}

func outcomeOf(err error) string {
	if types.CodeOf(err) == types.ErrCodeUpstreamTimeout {
		return "timeout"
	}
	return "error"
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.rec != nil {
		c.rec.ObserveUpstream(outcome, time.Since(start))
	}
}
