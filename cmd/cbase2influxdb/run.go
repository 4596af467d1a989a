package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/internal/pipeline"
	"github.com/heiparta/cbase2influxdb/pkg/archive"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/destinations/dryrun"
	"github.com/heiparta/cbase2influxdb/pkg/connector/destinations/influxdb"
	jsondest "github.com/heiparta/cbase2influxdb/pkg/connector/destinations/json"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/connector/sources/cbase"
	csvsource "github.com/heiparta/cbase2influxdb/pkg/connector/sources/csv"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"github.com/heiparta/cbase2influxdb/pkg/observability"
	"github.com/heiparta/cbase2influxdb/pkg/state"
)

// runOptions collects the root command flags
type runOptions struct {
	ConfigPath string
	DryRun     bool
	CSVFile    string
	Schedule   string
	Once       bool
	LogLevel   string
	LogFormat  string
	Stdout     io.Writer
}

// runSync executes the sync with the given options
func runSync(ctx context.Context, opts runOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := validateForMode(cfg, opts); err != nil {
		return err
	}

	applyLogFlags(cfg, opts)
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	}); err != nil {
		return err
	}
	log := logger.Get().With(zap.String("component", "cli"))
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Init(observability.TracingConfig{
		Enabled:        cfg.Observability.Tracing,
		ServiceName:    "cbase2influxdb",
		ServiceVersion: version,
		SamplingRate:   1.0,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if cfg.Observability.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Observability.MetricsAddr, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	source, destination, err := buildConnectors(cfg, opts, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
		if err := destination.Close(); err != nil {
			log.Warn("failed to close destination", zap.Error(err))
		}
	}()

	var pipelineOpts []pipeline.Option
	if opts.CSVFile == "" {
		arch, err := archive.New(ctx, cfg.Archive, log)
		if err != nil {
			return err
		}
		if arch != nil {
			defer arch.Close()
			pipelineOpts = append(pipelineOpts, pipeline.WithArchiver(arch))
		}
		if !opts.DryRun {
			pipelineOpts = append(pipelineOpts, pipeline.WithHealthCheck())
			if cfg.Sync.StateFile != "" {
				pipelineOpts = append(pipelineOpts, pipeline.WithStateStore(state.NewStore(cfg.Sync.StateFile)))
			}
		}
	}
	p := pipeline.NewSyncPipeline(source, destination, cfg, log, pipelineOpts...)

	schedule := cfg.Sync.Schedule
	if opts.Schedule != "" {
		schedule = opts.Schedule
	}
	if schedule == "" || opts.Once || opts.CSVFile != "" {
		_, err := p.RunOnce(ctx)
		return err
	}

	scheduler, err := pipeline.NewScheduler(schedule, p, log)
	if err != nil {
		return err
	}
	return scheduler.Run(ctx)
}

func loadConfig(opts runOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		// only reachable with --csv-file
		return config.Default(), nil
	}
	return config.Load(opts.ConfigPath)
}

// validateForMode checks the sections the chosen mode uses. --csv-file
// needs neither the API nor the database, and --dry-run skips the database.
func validateForMode(cfg *config.Config, opts runOptions) error {
	switch {
	case opts.CSVFile != "":
		return cfg.Sync.Validate()
	case opts.DryRun:
		if err := cfg.CBase.Validate(); err != nil {
			return err
		}
		if err := cfg.Sync.Validate(); err != nil {
			return err
		}
		return cfg.Archive.Validate()
	default:
		return cfg.Validate()
	}
}

func applyLogFlags(cfg *config.Config, opts runOptions) {
	if opts.LogLevel != "" {
		cfg.Observability.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Observability.LogFormat = opts.LogFormat
	}
}

func buildConnectors(cfg *config.Config, opts runOptions, log *zap.Logger) (core.Source, core.Destination, error) {
	regOpts := registry.Options{
		Config: cfg,
		Logger: log,
		Path:   opts.CSVFile,
		Output: opts.Stdout,
	}

	sourceName, destName := cbase.Name, influxdb.Name
	switch {
	case opts.CSVFile != "":
		sourceName, destName = csvsource.Name, jsondest.Name
	case opts.DryRun:
		destName = dryrun.Name
	}

	source, err := registry.CreateSource(sourceName, regOpts)
	if err != nil {
		return nil, nil, err
	}
	destination, err := registry.CreateDestination(destName, regOpts)
	if err != nil {
		_ = source.Close()
		return nil, nil, err
	}
	return source, destination, nil
}
