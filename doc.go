// Package cbase2influxdb syncs photovoltaic production forecasts from the
// CBASE API into InfluxDB.
//
// Each sync requests the hourly forecast for one configured PV system,
// parses the CSV response, converts every row into a point of the cbase
// measurement and writes the points in batches. Runs can be one-off or
// driven by a cron schedule, and the raw response can be archived to a
// directory, S3 or GCS.
//
// # Usage
//
//	cbase2influxdb /app/config.yaml
//	cbase2influxdb /app/config.yaml --dry-run --log-level debug
//	cbase2influxdb --csv-file forecast.csv
//
// See config.example.yaml for every option. Secrets such as the API key
// and the InfluxDB password can also come from the environment.
//
// # Layout
//
//   - cmd/cbase2influxdb: the command line
//   - internal/pipeline: a single sync run and the scheduler
//   - pkg/connector: sources, destinations and their registry
//   - pkg/config, pkg/errors, pkg/logger, pkg/metrics, pkg/observability:
//     configuration and the ambient stack
//   - pkg/archive, pkg/compression, pkg/state: raw payload archiving and
//     run state
package cbase2influxdb
