package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordHTTP(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("api.test", "200"))
	RecordHTTP("api.test", &http.Response{StatusCode: 200}, 20*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("api.test", "200")))

	beforeErr := testutil.ToFloat64(HTTPRequests.WithLabelValues("api.test", "error"))
	RecordHTTP("api.test", nil, time.Millisecond)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("api.test", "error")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("parse")
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveStage()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), d)
}

func TestHandler_ExposesSyncMetrics(t *testing.T) {
	RowsFetched.Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cbase2influxdb_rows_fetched_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	Runs.WithLabelValues("success").Inc()
	require.NoError(t, Push(context.Background(), srv.URL, "cbase2influxdb"))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/cbase2influxdb"))
	assert.NotEmpty(t, gotBody)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", zap.NewNop()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
