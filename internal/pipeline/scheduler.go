package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// cronParser accepts five field expressions plus descriptors such as
// @hourly and @every 30m
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a cron expression
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid schedule").
			WithDetail("schedule", spec)
	}
	return schedule, nil
}

// Scheduler repeats a Runner on a cron schedule. Runs never overlap: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	runner   Runner
	logger   *zap.Logger

	mu       sync.Mutex
	runs     int
	failures int
}

// NewScheduler validates spec and binds it to runner
func NewScheduler(spec string, runner Runner, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		runner:   runner,
		logger:   log.With(zap.String("component", "scheduler")),
	}, nil
}

// Run performs one run immediately, then follows the schedule until ctx is
// cancelled. It returns after the in-flight run has finished. Failed runs
// are logged and do not stop the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	cronLog := zapCronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runOnce(ctx) }))

	s.logger.Info("scheduler started", zap.String("schedule", s.spec))
	s.runOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	c.Start()
	s.logger.Info("next run scheduled", zap.Time("at", s.schedule.Next(time.Now())))

	<-ctx.Done()
	s.logger.Info("scheduler stopping, waiting for the current run")
	<-c.Stop().Done()

	runs, failures := s.Stats()
	s.logger.Info("scheduler stopped", zap.Int("runs", runs), zap.Int("failures", failures))
	return nil
}

// Stats returns how many runs were attempted and how many failed
func (s *Scheduler) Stats() (runs, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.failures
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.RunOnce(ctx)

	s.mu.Lock()
	s.runs++
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("scheduled run failed, waiting for the next one", zap.Error(err))
	}
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	s *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
