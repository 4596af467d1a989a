// Package archive stores the raw forecast documents fetched from the API so
// that a run can be replayed later with --csv-file.
//
// Objects are named {prefix}{YYYY/MM/DD}/{run_id}.csv{ext} where ext is the
// suffix of the configured compression algorithm. Three backends are
// available: a local directory tree, Amazon S3 and Google Cloud Storage.
package archive

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/compression"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
)

// Store is an object store the archiver writes to
type Store interface {
	// Put stores body under key, replacing any existing object
	Put(ctx context.Context, key string, body io.Reader, meta Metadata) error
	// Location describes where key ends up, for logging
	Location(key string) string
	Close() error
}

// Metadata describes an archived object
type Metadata struct {
	ContentType     string
	ContentEncoding string
	RunID           string
}

// Archiver compresses payloads and hands them to a Store
type Archiver struct {
	store      Store
	compressor compression.Compressor
	algorithm  compression.Algorithm
	prefix     string
	logger     *zap.Logger
}

// New builds an archiver for cfg, or returns nil when archiving is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig, log *zap.Logger) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "file":
		store, err = NewFileStore(cfg.Path)
	case "s3":
		store, err = NewS3Store(ctx, cfg.Bucket, cfg.Region)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
	default:
		err = errors.Newf(errors.ErrorTypeConfig, "unknown archive backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewArchiver(store, cfg.Prefix, cfg.Compression, log)
}

// NewArchiver wraps an existing store
func NewArchiver(store Store, prefix, algorithm string, log *zap.Logger) (*Archiver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	algo, err := compression.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: algo, Level: compression.Default})
	if err != nil {
		return nil, err
	}
	return &Archiver{
		store:      store,
		compressor: comp,
		algorithm:  algo,
		prefix:     prefix,
		logger:     log.With(zap.String("component", "archive")),
	}, nil
}

// Key returns the object name for a payload fetched at the given time
func Key(prefix string, fetchedAt time.Time, runID string, algo compression.Algorithm) string {
	return prefix + path.Join(fetchedAt.UTC().Format("2006/01/02"), runID+".csv"+algo.Extension())
}

// Store compresses data and writes it under the key for runID. It returns
// the object key.
func (a *Archiver) Store(ctx context.Context, runID string, fetchedAt time.Time, data []byte) (string, error) {
	log := logger.FromContext(ctx, a.logger)
	key := Key(a.prefix, fetchedAt, runID, a.algorithm)

	var buf bytes.Buffer
	if err := a.compressor.CompressStream(&buf, bytes.NewReader(data)); err != nil {
		metrics.ArchiveFailures.Inc()
		return key, errors.Wrap(err, errors.ErrorTypeFile, "failed to compress archive").
			WithDetail("key", key)
	}

	meta := Metadata{
		ContentType:     "text/csv",
		ContentEncoding: contentEncoding(a.algorithm),
		RunID:           runID,
	}
	if err := a.store.Put(ctx, key, &buf, meta); err != nil {
		metrics.ArchiveFailures.Inc()
		return key, err
	}

	log.Info("forecast archived",
		zap.String("location", a.store.Location(key)),
		zap.Int("raw_bytes", len(data)),
		zap.String("compression", string(a.algorithm)))
	return key, nil
}

// Close releases the backend
func (a *Archiver) Close() error {
	return a.store.Close()
}

func contentEncoding(algo compression.Algorithm) string {
	if algo == compression.None {
		return ""
	}
	return string(algo)
}
