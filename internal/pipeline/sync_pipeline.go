package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/archive"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/sources/cbase"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/heiparta/cbase2influxdb/pkg/observability"
	"github.com/heiparta/cbase2influxdb/pkg/state"
	"github.com/heiparta/cbase2influxdb/pkg/transform"
)

// PushJob is the Pushgateway job name
const PushJob = "cbase2influxdb"

// SyncPipeline moves one forecast from a source into a destination.
//
// The execution flow:
// 0. The destination health is checked when enabled
// 1. Source fetches the raw CSV
// 2. The payload is archived when an archiver is configured
// 3. The CSV is parsed into forecast rows
// 4. Rows become points, filtered by the watermark on incremental syncs
// 5. The destination writes the points in batches
// 6. The run outcome is saved to the state file and pushed as metrics
type SyncPipeline struct {
	source      core.Source
	destination core.Destination
	archiver    *archive.Archiver
	state       *state.Store
	healthCheck bool

	transform   transform.Options
	incremental bool
	pushGateway string

	logger *zap.Logger
	now    func() time.Time
}

// Option configures a SyncPipeline
type Option func(*SyncPipeline)

// WithArchiver archives every fetched payload
func WithArchiver(a *archive.Archiver) Option {
	return func(p *SyncPipeline) { p.archiver = a }
}

// WithStateStore persists run outcomes and enables the watermark
func WithStateStore(s *state.Store) Option {
	return func(p *SyncPipeline) { p.state = s }
}

// WithHealthCheck checks the destination before fetching so an unreachable
// database fails the run before the API is called
func WithHealthCheck() Option {
	return func(p *SyncPipeline) { p.healthCheck = true }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *SyncPipeline) { p.now = now }
}

// NewSyncPipeline creates a pipeline for the sync settings in cfg
func NewSyncPipeline(source core.Source, destination core.Destination, cfg *config.Config, log *zap.Logger, opts ...Option) *SyncPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &SyncPipeline{
		source:      source,
		destination: destination,
		transform: transform.Options{
			Measurement:   cfg.Sync.Measurement,
			Tags:          cfg.Sync.Tags,
			ExcludeFields: cfg.Sync.ExcludeFields,
		},
		incremental: cfg.Sync.Incremental,
		pushGateway: cfg.Observability.PushGateway,
		logger:      log.With(zap.String("component", "pipeline")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOnce performs a complete sync. The report is returned even when the
// run fails so callers can see how far it got.
func (p *SyncPipeline) RunOnce(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}
	ctx = logger.WithRunID(ctx, report.RunID)
	log := logger.FromContext(ctx, p.logger)

	ctx, span := observability.StartSpan(ctx, "sync")
	span.SetAttribute("run_id", report.RunID)
	defer span.End()

	log.Info("sync started",
		zap.String("source", p.source.Name()),
		zap.String("destination", p.destination.Name()))

	prev, err := p.loadState()
	if err != nil {
		log.Warn("ignoring unreadable state file", zap.Error(err))
		prev = &state.RunState{}
	}
	report.Watermark = prev.Watermark

	runErr := p.run(ctx, report, prev)
	report.FinishedAt = p.now().UTC()
	span.RecordError(runErr)

	status := state.StatusSuccess
	if runErr != nil {
		status = state.StatusFailed
	}
	metrics.Runs.WithLabelValues(string(status)).Inc()
	if runErr == nil {
		metrics.LastSuccess.SetToCurrentTime()
	}

	if err := p.saveState(ctx, report, status, runErr); err != nil {
		log.Error("failed to save state", zap.Error(err))
		if runErr == nil {
			runErr = err
			report.FailedStage = StageState
		}
	}
	p.push(ctx, log)

	if runErr != nil {
		log.Error("sync failed",
			zap.String("stage", report.FailedStage),
			zap.Duration("duration", report.Duration()),
			zap.Error(runErr))
		return report, runErr
	}

	written := 0
	if report.Write != nil {
		written = report.Write.Written
	}
	log.Info("sync completed",
		zap.Int("rows", report.Rows),
		zap.Int("points", report.Points),
		zap.Int("skipped", report.Skipped),
		zap.Int("written", written),
		zap.Time("watermark", report.Watermark),
		zap.Duration("duration", report.Duration()))
	return report, nil
}

func (p *SyncPipeline) run(ctx context.Context, report *RunReport, prev *state.RunState) error {
	log := logger.FromContext(ctx, p.logger)

	if p.healthCheck {
		if err := p.stage(ctx, report, StageHealth, p.destination.Health); err != nil {
			return err
		}
	}

	var payload *core.Payload
	if err := p.stage(ctx, report, StageFetch, func(ctx context.Context) error {
		var err error
		payload, err = p.source.Fetch(ctx)
		return err
	}); err != nil {
		return err
	}
	report.Origin = payload.Origin

	if p.archiver != nil {
		// archive failures never fail the run
		_ = observability.Trace(ctx, StageArchive, func(ctx context.Context) error {
			timer := metrics.NewTimer(StageArchive)
			defer timer.ObserveStage()

			key, err := p.archiver.Store(ctx, report.RunID, payload.FetchedAt, payload.Data)
			if err != nil {
				log.Warn("failed to archive forecast", zap.String("key", key), zap.Error(err))
				return err
			}
			report.ArchiveKey = key
			return nil
		})
	}

	var rows []models.ForecastRow
	if err := p.stage(ctx, report, StageParse, func(context.Context) error {
		var err error
		rows, err = cbase.ParseForecast(payload.Data)
		return err
	}); err != nil {
		return err
	}
	report.Rows = len(rows)
	metrics.RowsFetched.Add(float64(len(rows)))

	var points []models.Point
	_ = p.stage(ctx, report, StageTransform, func(context.Context) error {
		all := transform.ToPoints(rows, p.transform)
		points = all
		if p.incremental {
			points = transform.FilterAfter(all, prev.Watermark)
		}
		report.Points = len(points)
		report.Skipped = len(all) - len(points)
		return nil
	})

	if len(points) == 0 {
		log.Info("no new points to write", zap.Int("skipped", report.Skipped))
	}

	// destinations are called with empty slices too; stream outputs print []
	err := p.stage(ctx, report, StageWrite, func(ctx context.Context) error {
		result, err := p.destination.Write(ctx, points)
		report.Write = result
		return err
	})
	if err != nil {
		return err
	}
	report.Watermark = prev.Advance(models.LatestPointTime(points))
	return nil
}

// stage runs fn in its own span and timer, and records which stage failed
func (p *SyncPipeline) stage(ctx context.Context, report *RunReport, name string, fn func(context.Context) error) error {
	timer := metrics.NewTimer(name)
	err := observability.Trace(ctx, name, fn)
	d := timer.ObserveStage()

	logger.FromContext(ctx, p.logger).Debug("stage finished",
		zap.String("stage", name),
		zap.Duration("duration", d),
		zap.Bool("ok", err == nil))
	if err != nil {
		report.FailedStage = name
		var typed *errors.Error
		if !errors.As(err, &typed) {
			errType := errors.ErrorTypeInternal
			if ctx.Err() != nil {
				errType = errors.ErrorTypeTimeout
			}
			err = errors.Wrap(err, errType, name+" failed")
		}
	}
	return err
}

func (p *SyncPipeline) loadState() (*state.RunState, error) {
	if p.state == nil {
		return &state.RunState{}, nil
	}
	return p.state.Load()
}

func (p *SyncPipeline) saveState(ctx context.Context, report *RunReport, status state.Status, runErr error) error {
	if p.state == nil {
		return nil
	}
	return observability.Trace(ctx, StageState, func(context.Context) error {
		st := &state.RunState{
			RunID:      report.RunID,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Status:     status,
			Rows:       report.Rows,
			Watermark:  report.Watermark,
		}
		if report.Write != nil {
			st.PointsWritten = report.Write.Written
			st.PointsFailed = report.Write.Failed
		}
		if runErr != nil {
			st.Error = runErr.Error()
		}
		return p.state.Save(st)
	})
}

func (p *SyncPipeline) push(ctx context.Context, log *zap.Logger) {
	if p.pushGateway == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := metrics.Push(pushCtx, p.pushGateway, PushJob); err != nil {
		log.Warn("failed to push metrics", zap.String("gateway", p.pushGateway), zap.Error(err))
	}
}
