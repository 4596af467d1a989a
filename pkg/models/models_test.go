package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePoints(n int) []Point {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			Measurement: "cbase",
			Fields:      map[string]float64{"pv_po": float64(i)},
			Time:        base.Add(time.Duration(i) * time.Hour),
		}
	}
	return points
}

func TestBatches(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 10, nil},
		{"single partial", 3, 10, []int{3}},
		{"exact", 10, 5, []int{5, 5}},
		{"remainder", 11, 5, []int{5, 5, 1}},
		{"unbounded", 7, 0, []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Batches(makePoints(tt.n), tt.size)
			var sizes []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tt.sizes, sizes)
		})
	}
}

func TestBatches_PreserveOrder(t *testing.T) {
	points := makePoints(7)
	batches := Batches(points, 3)
	require.Len(t, batches, 3)
	assert.Equal(t, points[3].Time, batches[1][0].Time)
	assert.Equal(t, points[6].Time, batches[2][0].Time)
}

func TestPoint_Validate(t *testing.T) {
	p := makePoints(1)[0]
	assert.NoError(t, p.Validate())

	noFields := p
	noFields.Fields = nil
	assert.Error(t, noFields.Validate())

	noName := p
	noName.Measurement = ""
	assert.Error(t, noName.Validate())

	noTime := p
	noTime.Time = time.Time{}
	assert.Error(t, noTime.Validate())
}

func TestLatestPointTime(t *testing.T) {
	points := makePoints(4)
	points[0], points[3] = points[3], points[0]
	assert.Equal(t, points[0].Time, LatestPointTime(points))
	assert.True(t, LatestPointTime(nil).IsZero())
}
