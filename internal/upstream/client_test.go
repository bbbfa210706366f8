package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundwatch/internal/types"
)

func noSleep(time.Duration) {}

func testClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithSleepFunc(noSleep)}, opts...)
	return NewClient(server.Client(), server.URL, 5*time.Second, RetryPolicy{
		MaxRetries: 3,
		MinWait:    time.Millisecond,
		MaxWait:    10 * time.Millisecond,
	}, opts...)
}

func stationPayload() types.StationData {
	return types.StationData{
		Observations: []types.Observation{
			{Date: time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), Depth: 10.5},
			{Date: time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC), Depth: 8.2},
		},
		Recharge: []types.RechargeEntry{
			{Year: 2023, PreMonsoonDepth: 10.5, PostMonsoonDepth: 8.2, RechargeAmount: 2.3},
		},
	}
}

func TestFetchSuccess(t *testing.T) {
	var gotPath, gotAsOf string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAsOf = r.URL.Query().Get("as_of")
		json.NewEncoder(w).Encode(stationPayload())
	}))
	defer server.Close()

	c := testClient(t, server)
	asOf := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	data, err := c.Fetch(context.Background(), "ST-001", asOf)
	require.NoError(t, err)

	assert.Equal(t, "/stations/ST-001/levels", gotPath)
	assert.Equal(t, "2025-06-01", gotAsOf)
	require.Len(t, data.Observations, 2)
	assert.Equal(t, 10.5, data.Observations[0].Depth)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(stationPayload())
	}))
	defer server.Close()

	c := testClient(t, server)
	data, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, data.Observations, 2)
}

func TestFetchRetriesRateLimiting(t *testing.T) {
	var calls atomic.Int32
	var slept []time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(stationPayload())
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, 5*time.Second, DefaultRetryPolicy(),
		WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }))
	_, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 2*time.Second, slept[0], "Retry-After seconds are honored")
}

func TestFetchExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(t, server)
	_, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	assert.Equal(t, int32(4), calls.Load(), "initial attempt plus three retries")
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(t, server)
	_, err := c.Fetch(context.Background(), "ST-404", time.Now())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, 50*time.Millisecond, RetryPolicy{
		MaxRetries: 3,
		MinWait:    time.Millisecond,
		MaxWait:    10 * time.Millisecond,
	}, WithSleepFunc(noSleep))

	_, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamTimeout, types.CodeOf(err))
}

func TestFetchRecomputesInconsistentRecharge(t *testing.T) {
	payload := stationPayload()
	payload.Recharge[0].RechargeAmount = 99.0 // violates pre - post
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	c := testClient(t, server)
	data, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.NoError(t, err)
	require.Len(t, data.Recharge, 1)
	assert.InDelta(t, 10.5-8.2, data.Recharge[0].RechargeAmount, 1e-9)
}

func TestFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	c := testClient(t, server)
	_, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(t, server)
	assert.Equal(t, "closed", c.BreakerState())

	// Two fetches of four attempts each push consecutive failures past the
	// trip threshold.
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), "ST-001", time.Now())
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.BreakerState())

	// With the breaker open the server is not even contacted.
	_, err := c.Fetch(context.Background(), "ST-001", time.Now())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
}
