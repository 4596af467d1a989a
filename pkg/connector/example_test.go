package connector_test

import (
	"context"
	"log"
	"os"

	"github.com/heiparta/cbase2influxdb/pkg/connector/destinations/json"
	"github.com/heiparta/cbase2influxdb/pkg/connector/sources/cbase"
	"github.com/heiparta/cbase2influxdb/pkg/models"
	"github.com/heiparta/cbase2influxdb/pkg/testutil"
	"github.com/heiparta/cbase2influxdb/pkg/transform"
)

// Example parses a forecast document, keeps only the PV output and prints
// the resulting points as JSON.
func Example() {
	rows, err := cbase.ParseForecast([]byte(testutil.ForecastCSV(testutil.NoonRow)))
	if err != nil {
		log.Fatal(err)
	}

	var exclude []string
	for _, column := range models.ForecastColumns {
		if column != "pv_po" {
			exclude = append(exclude, column)
		}
	}
	points := transform.ToPoints(rows, transform.Options{
		Measurement:   "cbase",
		Tags:          map[string]string{"system": "home"},
		ExcludeFields: exclude,
	})

	dest := json.NewJSONDestination(os.Stdout, false, nil)
	defer dest.Close()
	if _, err := dest.Write(context.Background(), points); err != nil {
		log.Fatal(err)
	}
	// Output:
	// [{"measurement":"cbase","tags":{"system":"home"},"fields":{"pv_po":1830.5},"time":"2024-06-01T08:00:00Z"}]
}
