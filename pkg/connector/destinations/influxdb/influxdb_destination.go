// Package influxdb implements the destination writing points to InfluxDB.
//
// Both server generations are reached through the v2 write API. Version 1
// servers (1.8 and later) accept it with bucket "database/retention_policy"
// and token "username:password".
package influxdb

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/clients"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/base"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/heiparta/cbase2influxdb/pkg/observability"
)

// Name is the registry name of the destination
const Name = "influxdb"

func init() {
	_ = registry.RegisterDestination(Name, func(opts registry.Options) (core.Destination, error) {
		return NewInfluxDBDestination(&opts.Config.InfluxDB, opts.Config.Sync.Retry, opts.Logger)
	})
}

// InfluxDBDestination writes points in batches through the blocking write API
type InfluxDBDestination struct {
	config     *config.InfluxDBConfig
	client     influxdb2.Client
	writeAPI   api.WriteAPIBlocking
	httpClient *clients.HTTPClient
	retry      *base.RetryPolicy
	logger     *zap.Logger
}

// NewInfluxDBDestination creates the destination. Its HTTP client honours
// the timeout and tls_skip_verify settings.
func NewInfluxDBDestination(cfg *config.InfluxDBConfig, retry config.RetryConfig, log *zap.Logger) (*InfluxDBDestination, error) {
	if cfg.URL == "" && cfg.Host == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "influxdb.host or influxdb.url is required")
	}
	if cfg.BucketName() == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "influxdb database or bucket is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "influxdb_destination"))

	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Timeout
	}
	httpCfg.InsecureSkipVerify = cfg.TLSSkipVerify
	d := &InfluxDBDestination{
		config:     cfg,
		httpClient: clients.NewHTTPClient(httpCfg, log),
		logger:     log,
	}

	opts := influxdb2.DefaultOptions().
		SetPrecision(cfg.PrecisionDuration()).
		SetUseGZip(cfg.Gzip).
		SetApplicationName("cbase2influxdb").
		SetHTTPClient(d.httpClient.StandardClient())
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}

	d.client = influxdb2.NewClientWithOptions(cfg.ServerURL(), cfg.AuthToken(), opts)
	d.writeAPI = d.client.WriteAPIBlocking(cfg.Org, cfg.BucketName())

	d.retry = base.NewRetryPolicy(retry).WithOnRetry(func(attempt int, delay time.Duration, err error) {
		log.Warn("batch write failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	})

	return d, nil
}

// Name implements core.Destination
func (d *InfluxDBDestination) Name() string { return Name }

// Write sends points in batches of batch_size. Each batch is retried on its
// own; a failed batch does not stop the remaining ones. The returned error
// aggregates every failed batch.
func (d *InfluxDBDestination) Write(ctx context.Context, points []models.Point) (*core.WriteResult, error) {
	start := time.Now()
	result := &core.WriteResult{}
	log := logger.FromContext(ctx, d.logger)

	var failures *multierror.Error
	for i, batch := range models.Batches(points, d.config.BatchSize) {
		result.Batches++

		if err := ctx.Err(); err != nil {
			result.Failed += len(batch)
			result.FailedBatches++
			failures = multierror.Append(failures, errors.Wrap(err, errors.ErrorTypeTimeout, "write cancelled"))
			continue
		}

		err := d.writeBatch(ctx, i, batch)
		if err != nil {
			result.Failed += len(batch)
			result.FailedBatches++
			failures = multierror.Append(failures, err)
			metrics.PointsFailed.WithLabelValues(Name).Add(float64(len(batch)))
			log.Error("batch write failed",
				zap.Int("batch", i),
				zap.Int("points", len(batch)),
				zap.Error(err))
			continue
		}

		result.Written += len(batch)
		metrics.PointsWritten.WithLabelValues(Name).Add(float64(len(batch)))
		log.Debug("batch written", zap.Int("batch", i), zap.Int("points", len(batch)))
	}
	result.Duration = time.Since(start)

	if err := failures.ErrorOrNil(); err != nil {
		return result, errors.Wrap(err, errors.ErrorTypeWrite, "failed to write points").
			WithDetail("failed_batches", result.FailedBatches).
			WithDetail("failed_points", result.Failed)
	}

	log.Info("points written",
		zap.Int("points", result.Written),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (d *InfluxDBDestination) writeBatch(ctx context.Context, index int, batch []models.Point) error {
	ctx, span := observability.StartSpan(ctx, "influxdb.write_batch")
	span.SetAttribute("batch.index", index)
	span.SetAttribute("batch.size", len(batch))
	defer span.End()

	pts := make([]*write.Point, len(batch))
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			span.RecordError(err)
			return err
		}
		pts[i] = ToWritePoint(batch[i])
	}

	err := d.retry.Execute(ctx, func(ctx context.Context) error {
		return classify(d.writeAPI.WritePoint(ctx, pts...))
	})
	span.RecordError(err)
	if err != nil {
		return errors.Wrap(err, errors.TypeOf(err), "batch write failed").
			WithDetail("batch", index)
	}
	return nil
}

// Health pings the server
func (d *InfluxDBDestination) Health(ctx context.Context) error {
	ok, err := d.client.Ping(ctx)
	if err != nil {
		return errors.Wrap(classify(err), errors.ErrorTypeConnection, "influxdb ping failed").
			WithDetail("url", d.config.ServerURL())
	}
	if !ok {
		return errors.New(errors.ErrorTypeConnection, "influxdb is not ready").
			WithDetail("url", d.config.ServerURL())
	}
	return nil
}

// Close releases the client and its connections
func (d *InfluxDBDestination) Close() error {
	d.client.Close()
	return d.httpClient.Close()
}

// ToWritePoint converts a point for the client library
func ToWritePoint(p models.Point) *write.Point {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return influxdb2.NewPoint(p.Measurement, p.Tags, fields, p.Time)
}

// LineProtocol renders a point the way it is sent to the server
func LineProtocol(p models.Point, precision time.Duration) string {
	return strings.TrimSuffix(write.PointToLineProtocol(ToWritePoint(p), precision), "\n")
}

// classify maps client library errors onto error types so the retry
// policy can tell transient failures from permanent ones.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var typed *errors.Error
	var herr *ihttp.Error
	if stderrors.As(err, &herr) && herr.StatusCode > 0 {
		e := errors.Wrap(err, errors.FromHTTPStatus(herr.StatusCode), "influxdb rejected write").
			WithDetail("status", herr.StatusCode)
		if herr.Code != "" {
			e = e.WithDetail("code", herr.Code)
		}
		return e
	}
	if stderrors.As(err, &typed) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "influxdb request aborted")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "influxdb request failed")
}
