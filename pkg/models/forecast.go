// Package models provides the data structures that flow through a sync:
// forecast rows parsed from the CBASE API and the time-series points
// written to InfluxDB.
package models

import "time"

// TimeColumn is the CSV column holding the UTC timestamp of a row
const TimeColumn = "Time.UTC"

// ForecastColumns lists the numeric columns of a forecast response in
// the order the API emits them.
var ForecastColumns = []string{
	"temp_avg",
	"wind_avg",
	"cl_tot",
	"cl_low",
	"cl_med",
	"cl_high",
	"prec_amt",
	"s_glob",
	"s_dif",
	"s_dir_hor",
	"s_dir",
	"s_sw_net",
	"solar_angle_vs_panel",
	"albedo",
	"s_glob_pv",
	"s_ground_dif_pv",
	"s_dir_pv",
	"s_dif_pv",
	"pv_po",
	"pv_T",
	"pv_eta",
}

// ForecastRow is one hourly forecast for the configured PV system.
// Values holds only the columns that carried a number; missing ("NA")
// values have no key.
type ForecastRow struct {
	Time   time.Time
	Values map[string]float64
}
