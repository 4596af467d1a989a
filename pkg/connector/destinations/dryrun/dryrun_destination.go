// Package dryrun implements a destination that only logs what would be
// written.
package dryrun

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/destinations/influxdb"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"github.com/heiparta/cbase2influxdb/pkg/models"
)

// Name is the registry name of the destination
const Name = "dryrun"

func init() {
	_ = registry.RegisterDestination(Name, func(opts registry.Options) (core.Destination, error) {
		cfg := opts.Config.InfluxDB
		return NewDryRunDestination(cfg.BatchSize, cfg.PrecisionDuration(), opts.Logger), nil
	})
}

// DryRunDestination logs every point in line protocol at debug level
type DryRunDestination struct {
	batchSize int
	precision time.Duration
	logger    *zap.Logger
}

// NewDryRunDestination creates a dry-run destination
func NewDryRunDestination(batchSize int, precision time.Duration, log *zap.Logger) *DryRunDestination {
	if log == nil {
		log = zap.NewNop()
	}
	if precision <= 0 {
		precision = time.Second
	}
	return &DryRunDestination{
		batchSize: batchSize,
		precision: precision,
		logger:    log.With(zap.String("component", "dryrun_destination")),
	}
}

// Name implements core.Destination
func (d *DryRunDestination) Name() string { return Name }

// Write reports every point as written without sending anything
func (d *DryRunDestination) Write(ctx context.Context, points []models.Point) (*core.WriteResult, error) {
	log := logger.FromContext(ctx, d.logger)

	if log.Core().Enabled(zap.DebugLevel) {
		for i := range points {
			log.Debug("would write point", zap.String("line", influxdb.LineProtocol(points[i], d.precision)))
		}
	}

	result := &core.WriteResult{
		Written: len(points),
		Batches: len(models.Batches(points, d.batchSize)),
	}
	metrics.PointsWritten.WithLabelValues(Name).Add(float64(len(points)))

	log.Info("dry run, nothing written",
		zap.Int("points", result.Written),
		zap.Int("batches", result.Batches),
		zap.Time("latest", models.LatestPointTime(points)))
	return result, nil
}

// Health implements core.Destination
func (d *DryRunDestination) Health(context.Context) error { return nil }

// Close implements core.Destination
func (d *DryRunDestination) Close() error { return nil }
