// Package transform turns parsed forecast rows into InfluxDB points.
//
// Example:
//
//	points := transform.ToPoints(rows, transform.Options{
//	    Measurement: "cbase",
//	    Tags:        map[string]string{"system": "home"},
//	})
//	points = transform.FilterAfter(points, watermark)
package transform

import (
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/models"
)

// Options controls how rows become points
type Options struct {
	Measurement string
	Tags        map[string]string
	// ExcludeFields names columns that are never written
	ExcludeFields []string
}

// ToPoints converts each row into one point. Rows left without any field
// are dropped since InfluxDB rejects field-less points. Every point gets
// its own copy of the tags.
func ToPoints(rows []models.ForecastRow, opts Options) []models.Point {
	exclude := make(map[string]struct{}, len(opts.ExcludeFields))
	for _, name := range opts.ExcludeFields {
		exclude[name] = struct{}{}
	}

	points := make([]models.Point, 0, len(rows))
	for i := range rows {
		fields := make(map[string]float64, len(rows[i].Values))
		for name, v := range rows[i].Values {
			if _, skip := exclude[name]; skip {
				continue
			}
			fields[name] = v
		}
		if len(fields) == 0 {
			continue
		}

		points = append(points, models.Point{
			Measurement: opts.Measurement,
			Tags:        copyTags(opts.Tags),
			Fields:      fields,
			Time:        rows[i].Time,
		})
	}
	return points
}

// FilterAfter keeps the points strictly newer than watermark. A zero
// watermark keeps everything.
func FilterAfter(points []models.Point, watermark time.Time) []models.Point {
	if watermark.IsZero() {
		return points
	}
	kept := make([]models.Point, 0, len(points))
	for i := range points {
		if points[i].Time.After(watermark) {
			kept = append(kept, points[i])
		}
	}
	return kept
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
