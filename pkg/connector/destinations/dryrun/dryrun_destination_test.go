package dryrun

import (
	"context"
	"testing"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDryRunDestination_Write(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dest := NewDryRunDestination(2, time.Second, zap.New(core))

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []models.Point{
		{Measurement: "cbase", Tags: map[string]string{"system": "home"}, Fields: map[string]float64{"pv_po": 1}, Time: base},
		{Measurement: "cbase", Tags: map[string]string{"system": "home"}, Fields: map[string]float64{"pv_po": 2}, Time: base.Add(time.Hour)},
		{Measurement: "cbase", Tags: map[string]string{"system": "home"}, Fields: map[string]float64{"pv_po": 3}, Time: base.Add(2 * time.Hour)},
	}

	result, err := dest.Write(context.Background(), points)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Written)
	assert.Equal(t, 2, result.Batches)

	lines := logs.FilterMessage("would write point").All()
	require.Len(t, lines, 3)
	assert.Equal(t, "cbase,system=home pv_po=1 1717200000", lines[0].ContextMap()["line"])

	summary := logs.FilterMessage("dry run, nothing written").All()
	require.Len(t, summary, 1)
	assert.Equal(t, int64(3), summary[0].ContextMap()["points"])
}

func TestDryRunDestination_SkipsLinesAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dest := NewDryRunDestination(0, 0, zap.New(core))

	_, err := dest.Write(context.Background(), []models.Point{{Measurement: "cbase", Fields: map[string]float64{"x": 1}, Time: time.Now()}})
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("would write point").Len())
	assert.Equal(t, 1, logs.FilterMessage("dry run, nothing written").Len())
}
