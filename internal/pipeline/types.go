// Package pipeline defines the sync run and the scheduler that repeats it
package pipeline

import (
	"context"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
)

// Stage names used for spans, timers and log fields
const (
	StageHealth    = "health"
	StageFetch     = "fetch"
	StageArchive   = "archive"
	StageParse     = "parse"
	StageTransform = "transform"
	StageWrite     = "write"
	StageState     = "state"
)

// RunReport summarizes one sync run
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Origin is where the forecast came from, without credentials
	Origin string `json:"origin"`
	// ArchiveKey is empty when archiving is disabled or failed
	ArchiveKey string `json:"archive_key,omitempty"`
	Rows       int    `json:"rows"`
	Points     int    `json:"points"`
	// Skipped counts points at or before the previous watermark
	Skipped   int               `json:"skipped"`
	Write     *core.WriteResult `json:"write,omitempty"`
	Watermark time.Time         `json:"watermark"`
	// FailedStage names the stage that failed, if any
	FailedStage string `json:"failed_stage,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runner performs one sync run
type Runner interface {
	RunOnce(ctx context.Context) (*RunReport, error)
}
