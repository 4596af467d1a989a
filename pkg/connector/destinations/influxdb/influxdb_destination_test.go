package influxdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeInflux records write requests and lets tests decide the response
type fakeInflux struct {
	mu       sync.Mutex
	requests []writeRequest
	respond  func(body string) int
}

type writeRequest struct {
	query writeQuery
	auth  string
	body  string
}

type writeQuery struct{ org, bucket, precision string }

func newFakeInflux(t *testing.T, respond func(body string) int) (*fakeInflux, *httptest.Server) {
	t.Helper()
	f := &fakeInflux{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.Header().Set("X-Influxdb-Version", "1.8.10")
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			b, _ := io.ReadAll(r.Body)
			q := r.URL.Query()
			f.mu.Lock()
			f.requests = append(f.requests, writeRequest{
				query: writeQuery{q.Get("org"), q.Get("bucket"), q.Get("precision")},
				auth:  r.Header.Get("Authorization"),
				body:  string(b),
			})
			f.mu.Unlock()

			status := http.StatusNoContent
			if f.respond != nil {
				status = f.respond(string(b))
			}
			if status >= 400 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{"code":"invalid","message":"rejected by test"}`)
				return
			}
			w.WriteHeader(status)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeInflux) all() []writeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeRequest(nil), f.requests...)
}

func testConfig(srv *httptest.Server) *config.InfluxDBConfig {
	cfg := config.Default().InfluxDB
	cfg.URL = srv.URL
	cfg.Database = "cbase"
	cfg.RetentionPolicy = "autogen"
	cfg.Username = "writer"
	cfg.Password = "pw"
	cfg.BatchSize = 2
	return &cfg
}

var fastRetry = config.RetryConfig{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}

func points(n int) []models.Point {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.Point, n)
	for i := range pts {
		pts[i] = models.Point{
			Measurement: "cbase",
			Tags:        map[string]string{"system": "home"},
			Fields:      map[string]float64{"pv_po": float64(i), "temp_avg": 12.5},
			Time:        base.Add(time.Duration(i) * time.Hour),
		}
	}
	return pts
}

func TestInfluxDBDestination_WriteV1Compat(t *testing.T) {
	fake, srv := newFakeInflux(t, nil)
	dest, err := NewInfluxDBDestination(testConfig(srv), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()

	result, err := dest.Write(context.Background(), points(5))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Written)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 3, result.Batches)

	reqs := fake.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, "cbase/autogen", reqs[0].query.bucket)
	assert.Equal(t, "s", reqs[0].query.precision)
	assert.Equal(t, "Token writer:pw", reqs[0].auth)

	lines := strings.Split(strings.TrimSpace(reqs[0].body), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "cbase,system=home pv_po=0,temp_avg=12.5 1717200000", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " 1717203600"))
}

func TestInfluxDBDestination_V2(t *testing.T) {
	fake, srv := newFakeInflux(t, nil)
	cfg := testConfig(srv)
	cfg.APIVersion = 2
	cfg.Org = "home"
	cfg.Bucket = "solar"
	cfg.Token = "tok"

	dest, err := NewInfluxDBDestination(cfg, fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()

	_, err = dest.Write(context.Background(), points(1))
	require.NoError(t, err)

	reqs := fake.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, writeQuery{"home", "solar", "s"}, reqs[0].query)
	assert.Equal(t, "Token tok", reqs[0].auth)
}

func TestInfluxDBDestination_PartialFailure(t *testing.T) {
	// the second batch holds pv_po=2 and pv_po=3
	fake, srv := newFakeInflux(t, func(body string) int {
		if strings.Contains(body, "pv_po=2,") {
			return http.StatusServiceUnavailable
		}
		return http.StatusNoContent
	})
	dest, err := NewInfluxDBDestination(testConfig(srv), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()

	result, err := dest.Write(context.Background(), points(5))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWrite))

	assert.Equal(t, 3, result.Written)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 1, result.FailedBatches)
	assert.Len(t, fake.all(), 4, "failing batch retried once, others written once")
}

func TestInfluxDBDestination_ClientErrorNotRetried(t *testing.T) {
	fake, srv := newFakeInflux(t, func(string) int { return http.StatusBadRequest })
	dest, err := NewInfluxDBDestination(testConfig(srv), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()

	result, err := dest.Write(context.Background(), points(1))
	require.Error(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, fake.all(), 1)
	assert.Contains(t, err.Error(), "validation")
}

func TestInfluxDBDestination_Empty(t *testing.T) {
	fake, srv := newFakeInflux(t, nil)
	dest, err := NewInfluxDBDestination(testConfig(srv), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()

	result, err := dest.Write(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Written)
	assert.Empty(t, fake.all())
}

func TestInfluxDBDestination_Health(t *testing.T) {
	_, srv := newFakeInflux(t, nil)
	dest, err := NewInfluxDBDestination(testConfig(srv), fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, dest.Health(context.Background()))
	require.NoError(t, dest.Close())

	down := testConfig(srv)
	srv.Close()
	dest, err = NewInfluxDBDestination(down, fastRetry, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer dest.Close()
	err = dest.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNewInfluxDBDestination_Validation(t *testing.T) {
	cfg := config.Default().InfluxDB
	_, err := NewInfluxDBDestination(&cfg, fastRetry, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg.Host = "influx"
	cfg.Database = ""
	_, err = NewInfluxDBDestination(&cfg, fastRetry, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLineProtocol(t *testing.T) {
	p := points(1)[0]
	assert.Equal(t, "cbase,system=home pv_po=0,temp_avg=12.5 1717200000", LineProtocol(p, time.Second))
	assert.Equal(t, "cbase,system=home pv_po=0,temp_avg=12.5 1717200000000", LineProtocol(p, time.Millisecond))
}

func TestInfluxDBDestination_Registered(t *testing.T) {
	cfg := config.Default()
	cfg.InfluxDB.Host = "influx.local"

	dest, err := registry.CreateDestination(Name, registry.Options{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, Name, dest.Name())
	assert.NoError(t, dest.Close())
}
