package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestHTTPClient_Get(t *testing.T) {
	var gotUA, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotHeader = r.Header.Get("Accept")
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, zaptest.NewLogger(t))
	defer client.Close()

	resp, err := client.Get(context.Background(), srv.URL, map[string]string{"Accept": "text/csv"})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, UserAgent, gotUA)
	assert.Equal(t, "text/csv", gotHeader)

	stats := client.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, float64(100), stats.SuccessRate)
	assert.Equal(t, "closed", stats.CircuitState)
}

func TestHTTPClient_CloseLogsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	client := NewHTTPClient(nil, zap.New(core))
	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}
	require.NoError(t, client.Close())

	entries := logs.FilterMessage("http client closed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["requests"])
	assert.Equal(t, int64(2), fields["failed"])
	assert.Equal(t, "closed", fields["circuit"])
}

func TestHTTPClient_ConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(nil, zaptest.NewLogger(t))
	_, err := client.Get(context.Background(), url, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.True(t, errors.IsRetryable(err))
}

func TestHTTPClient_CircuitOpensOnServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	client := NewHTTPClient(cfg, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	_, err := client.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, 2, calls)
}

func TestHTTPClient_StandardClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(nil, zaptest.NewLogger(t))
	resp, err := client.StandardClient().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(1), client.GetStats().TotalRequests)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	}, zaptest.NewLogger(t))
	cb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, "open", cb.GetState().State)
	assert.False(t, cb.Allow())

	now = now.Add(time.Minute)
	require.True(t, cb.Allow())
	assert.Equal(t, "half_open", cb.GetState().State)
	assert.False(t, cb.Allow(), "only one trial request while half-open")

	cb.RecordFailure()
	assert.Equal(t, "open", cb.GetState().State)

	now = now.Add(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, "closed", cb.GetState().State)
	assert.Equal(t, 0, cb.GetState().ConsecutiveFailures)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, nil)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, "closed", cb.GetState().State)
}

func TestTokenBucketRateLimiter(t *testing.T) {
	rl := NewTokenBucketRateLimiter(100, 2)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTokenBucketRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewTokenBucketRateLimiter(0.001, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded)
}
