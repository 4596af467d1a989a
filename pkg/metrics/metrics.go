// Package metrics provides sync observability for cbase2influxdb using
// Prometheus metrics.
//
// # Overview
//
// All collectors are registered on a dedicated Registry rather than the
// global default one, so the process exposes exactly the sync metrics
// plus Go runtime metrics. They can be scraped while a scheduled sync is
// running (Serve) or pushed to a Pushgateway after each run (Push), which
// suits one-shot container invocations.
//
// # Basic Usage
//
//	metrics.RowsFetched.Add(float64(len(rows)))
//
//	timer := metrics.NewTimer("write")
//	result, err := dest.Write(ctx, points)
//	timer.ObserveStage()
//
//	metrics.Runs.WithLabelValues("success").Inc()
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const namespace = "cbase2influxdb"

// Registry holds every cbase2influxdb collector
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// RowsFetched counts forecast rows parsed from source payloads.
	RowsFetched = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Total number of forecast rows parsed",
		},
	)

	// PointsWritten counts points accepted by a destination.
	// Labels: destination (influxdb, dryrun, json)
	PointsWritten = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_written_total",
			Help:      "Total number of points written",
		},
		[]string{"destination"},
	)

	// PointsFailed counts points in batches that failed after retries.
	PointsFailed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_failed_total",
			Help:      "Total number of points that could not be written",
		},
		[]string{"destination"},
	)

	// Runs counts completed sync runs by outcome.
	// Labels: status (success, failed)
	Runs = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of sync runs",
		},
		[]string{"status"},
	)

	// StageDuration tracks how long each pipeline stage takes.
	// Labels: stage (fetch, archive, parse, transform, write, run)
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of sync pipeline stages in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	// LastSuccess is the unix time of the last successful run
	LastSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful sync run",
		},
	)

	// ArchiveFailures counts raw payloads that could not be archived
	ArchiveFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "Total number of raw payload archive failures",
		},
	)

	// HTTPRequests counts outbound HTTP requests.
	// Labels: host, code ("error" for transport failures)
	HTTPRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"host", "code"},
	)

	// HTTPDuration tracks outbound HTTP request latency
	HTTPDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outbound HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"host"},
	)
)

// RecordHTTP records the outcome of one outbound request. A nil resp
// means the transport failed.
func RecordHTTP(host string, resp *http.Response, d time.Duration) {
	code := "error"
	if resp != nil {
		code = strconv.Itoa(resp.StatusCode)
	}
	HTTPRequests.WithLabelValues(host, code).Inc()
	HTTPDuration.WithLabelValues(host).Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring stage durations.
type Timer struct {
	start time.Time
	stage string
}

// NewTimer creates a new timer for a pipeline stage and starts it.
func NewTimer(stage string) *Timer {
	return &Timer{
		start: time.Now(),
		stage: stage,
	}
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveStage records the elapsed time in StageDuration and returns it.
func (t *Timer) ObserveStage() time.Duration {
	d := t.Stop()
	StageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}

// Handler returns the HTTP handler exposing Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Push sends the current values of Registry to a Prometheus Pushgateway
// under the given job name.
func Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).
		Gatherer(Registry).
		PushContext(ctx)
}
