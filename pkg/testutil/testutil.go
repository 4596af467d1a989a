// Package testutil provides fixtures shared by the cbase2influxdb tests:
// forecast documents in the CBASE CSV layout and a fake forecast API.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// ForecastHeader is the header row the API emits
const ForecastHeader = `"Time.UTC","temp_avg","wind_avg","cl_tot","cl_low","cl_med","cl_high","prec_amt","s_glob","s_dif","s_dir_hor","s_dir","s_sw_net","solar_angle_vs_panel","albedo","s_glob_pv","s_ground_dif_pv","s_dir_pv","s_dif_pv","pv_po","pv_T","pv_eta"`

// Sample forecast rows. Night rows carry NA for the panel temperature and
// efficiency.
const (
	NightRow   = `"2024-06-01 00:00:00",12.4,3.1,0.82,0.4,0.3,0.6,0,0,0,0,0,0,-12.5,0.2,0,0,0,0,0,NA,NA`
	MorningRow = `"2024-06-01 07:00:00",15.1,4.0,0.35,0.1,0.15,0.25,0,300.2,110.1,190.1,350.0,250.4,30.2,0.2,320.5,3.2,220.4,96.9,1210.0,21.3,0.149`
	NoonRow    = `"2024-06-01 08:00:00",16.3,4.2,0.31,0.1,0.12,0.2,0,412.5,120.3,292.2,480.1,360.8,38.4,0.2,455.2,4.1,330.7,120.4,1830.5,24.6,0.151`
)

// ForecastCSV joins the header and rows into one document
func ForecastCSV(rows ...string) string {
	return ForecastHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ForecastServer is a fake CBASE API
type ForecastServer struct {
	*httptest.Server
	requests  atomic.Int32
	lastQuery atomic.Value
}

// NewForecastServer serves body as text/csv on /api/pvfcst_request
func NewForecastServer(t *testing.T, body string) *ForecastServer {
	t.Helper()
	f := &ForecastServer{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pvfcst_request" {
			http.NotFound(w, r)
			return
		}
		f.requests.Add(1)
		f.lastQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)
	return f
}

// Host returns host:port of the server, the form cbase.api_host expects
func (f *ForecastServer) Host() string {
	u, _ := url.Parse(f.URL)
	return u.Host
}

// Requests returns how many forecasts were served
func (f *ForecastServer) Requests() int {
	return int(f.requests.Load())
}

// LastQuery returns the query of the most recent forecast request
func (f *ForecastServer) LastQuery() url.Values {
	q, _ := f.lastQuery.Load().(url.Values)
	return q
}
