// Package json implements a destination printing points as a JSON array.
// It backs the --csv-file mode, which inspects a saved forecast without
// touching the database.
package json

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"github.com/heiparta/cbase2influxdb/pkg/models"
)

// Name is the registry name of the destination
const Name = "json"

func init() {
	_ = registry.RegisterDestination(Name, func(opts registry.Options) (core.Destination, error) {
		return NewJSONDestination(opts.Output, true, opts.Logger), nil
	})
}

// JSONDestination encodes each Write call as one JSON array
type JSONDestination struct {
	out    io.Writer
	pretty bool
	logger *zap.Logger
	mu     sync.Mutex
}

// NewJSONDestination writes to out, or stdout when out is nil
func NewJSONDestination(out io.Writer, pretty bool, logger *zap.Logger) *JSONDestination {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONDestination{
		out:    out,
		pretty: pretty,
		logger: logger.With(zap.String("component", "json_destination")),
	}
}

// Name implements core.Destination
func (d *JSONDestination) Name() string { return Name }

// Write implements core.Destination
func (d *JSONDestination) Write(ctx context.Context, points []models.Point) (*core.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return &core.WriteResult{Failed: len(points)}, err
	}
	if points == nil {
		points = []models.Point{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	enc := json.NewEncoder(d.out)
	if d.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(points); err != nil {
		return &core.WriteResult{Failed: len(points), Batches: 1, FailedBatches: 1},
			errors.Wrap(err, errors.ErrorTypeWrite, "failed to encode points")
	}

	metrics.PointsWritten.WithLabelValues(Name).Add(float64(len(points)))
	d.logger.Debug("points printed", zap.Int("points", len(points)))
	return &core.WriteResult{Written: len(points), Batches: 1}, nil
}

// Health implements core.Destination
func (d *JSONDestination) Health(context.Context) error { return nil }

// Close implements core.Destination
func (d *JSONDestination) Close() error { return nil }
