package models

import (
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// Point is a single time-series sample destined for InfluxDB.
type Point struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags,omitempty"`
	Fields      map[string]float64 `json:"fields"`
	Time        time.Time          `json:"time"`
}

// Validate rejects points InfluxDB would refuse to store.
func (p *Point) Validate() error {
	if p.Measurement == "" {
		return errors.New(errors.ErrorTypeData, "point has no measurement")
	}
	if len(p.Fields) == 0 {
		return errors.New(errors.ErrorTypeData, "point has no fields").
			WithDetail("time", p.Time)
	}
	if p.Time.IsZero() {
		return errors.New(errors.ErrorTypeData, "point has no timestamp").
			WithDetail("measurement", p.Measurement)
	}
	return nil
}

// Batches splits points into consecutive slices of at most size points.
// The slices share the backing array of points.
func Batches(points []Point, size int) [][]Point {
	if size <= 0 || len(points) <= size {
		if len(points) == 0 {
			return nil
		}
		return [][]Point{points}
	}

	batches := make([][]Point, 0, (len(points)+size-1)/size)
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		batches = append(batches, points[start:end:end])
	}
	return batches
}

// LatestPointTime returns the newest point timestamp, or the zero time
func LatestPointTime(points []Point) time.Time {
	var latest time.Time
	for i := range points {
		if points[i].Time.After(latest) {
			latest = points[i].Time
		}
	}
	return latest
}
