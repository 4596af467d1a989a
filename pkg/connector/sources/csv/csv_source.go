// Package csv implements a source reading a forecast CSV from the local
// filesystem. It replays saved API responses without calling the API.
// Archived documents ending in .gz, .zst, .lz4 or .sz are decompressed.
package csv

import (
	"context"
	"os"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/compression"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"go.uber.org/zap"
)

// Name is the registry name of the file source
const Name = "csv"

func init() {
	_ = registry.RegisterSource(Name, func(opts registry.Options) (core.Source, error) {
		return NewCSVSource(opts.Path, opts.Logger)
	})
}

// CSVSource reads one forecast document from a file
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource creates a file source for path
func NewCSVSource(path string, logger *zap.Logger) (*CSVSource, error) {
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "csv source requires a file path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{
		path:   path,
		logger: logger.With(zap.String("component", "csv_source")),
	}, nil
}

// Name implements core.Source
func (s *CSVSource) Name() string { return Name }

// Fetch reads the whole file
func (s *CSVSource) Fetch(ctx context.Context) (*core.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open forecast file").
			WithDetail("path", s.path)
	}
	if info.IsDir() {
		return nil, errors.New(errors.ErrorTypeFile, "forecast path is a directory").
			WithDetail("path", s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read forecast file").
			WithDetail("path", s.path)
	}

	algo := compression.AlgorithmForPath(s.path)
	if algo != compression.None {
		if data, err = decompress(algo, data); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decompress forecast file").
				WithDetail("path", s.path).
				WithDetail("compression", string(algo))
		}
	}

	s.logger.Debug("forecast file read",
		zap.String("path", s.path),
		zap.String("compression", string(algo)),
		zap.Int("bytes", len(data)))

	return &core.Payload{
		Data:      data,
		FetchedAt: time.Now().UTC(),
		Origin:    s.path,
		Metadata: map[string]string{
			"modified": info.ModTime().UTC().Format(time.RFC3339),
		},
	}, nil
}

func decompress(algo compression.Algorithm, data []byte) ([]byte, error) {
	c, err := compression.NewCompressor(&compression.Config{Algorithm: algo, Level: compression.Default})
	if err != nil {
		return nil, err
	}
	return c.Decompress(data)
}

// Close implements core.Source
func (s *CSVSource) Close() error { return nil }
