package transform

import (
	"testing"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func rows() []models.ForecastRow {
	return []models.ForecastRow{
		{Time: t0, Values: map[string]float64{"temp_avg": 12.4, "pv_po": 0}},
		{Time: t0.Add(time.Hour), Values: map[string]float64{}},
		{Time: t0.Add(2 * time.Hour), Values: map[string]float64{"pv_po": 1830.5, "pv_T": 24.6}},
	}
}

func TestToPoints(t *testing.T) {
	tags := map[string]string{"system": "home"}
	points := ToPoints(rows(), Options{Measurement: "cbase", Tags: tags})

	require.Len(t, points, 2, "row without values is skipped")
	assert.Equal(t, models.Point{
		Measurement: "cbase",
		Tags:        map[string]string{"system": "home"},
		Fields:      map[string]float64{"temp_avg": 12.4, "pv_po": 0},
		Time:        t0,
	}, points[0])
	assert.Equal(t, t0.Add(2*time.Hour), points[1].Time)

	points[0].Tags["system"] = "cabin"
	assert.Equal(t, "home", tags["system"], "tags are copied per point")
	assert.Equal(t, "home", points[1].Tags["system"])
}

func TestToPoints_ExcludeFields(t *testing.T) {
	points := ToPoints(rows(), Options{
		Measurement:   "cbase",
		ExcludeFields: []string{"pv_po", "pv_T"},
	})

	require.Len(t, points, 1, "a row whose only fields are excluded is skipped")
	assert.Equal(t, map[string]float64{"temp_avg": 12.4}, points[0].Fields)
	assert.Nil(t, points[0].Tags)
}

func TestFilterAfter(t *testing.T) {
	points := ToPoints(rows(), Options{Measurement: "cbase"})

	tests := []struct {
		name      string
		watermark time.Time
		want      int
	}{
		{"zero watermark keeps all", time.Time{}, 2},
		{"strictly after", t0, 1},
		{"before everything", t0.Add(-time.Hour), 2},
		{"after everything", t0.Add(3 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, FilterAfter(points, tt.watermark), tt.want)
		})
	}
}
