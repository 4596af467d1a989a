// Package config provides connector-specific helpers derived from Config sections
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// ForecastPath is the CBASE forecast endpoint path
const ForecastPath = "/api/pvfcst_request"

// ServerURL returns the base URL of the InfluxDB server. An explicit url
// wins over scheme/host/port.
func (c *InfluxDBConfig) ServerURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("%s://%s", c.Scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// BucketName returns the write target. InfluxDB 1.8+ accepts
// "database/retention_policy" on its 2.x compatible write endpoint.
func (c *InfluxDBConfig) BucketName() string {
	if c.APIVersion == 2 {
		return c.Bucket
	}
	if c.RetentionPolicy != "" {
		return c.Database + "/" + c.RetentionPolicy
	}
	return c.Database
}

// AuthToken returns the token sent in the Authorization header.
// Version 1 servers take "username:password".
func (c *InfluxDBConfig) AuthToken() string {
	if c.APIVersion == 2 {
		return c.Token
	}
	if c.Username == "" {
		return ""
	}
	return c.Username + ":" + c.Password
}

// PrecisionDuration converts the configured precision to a duration.
// Unknown values fall back to seconds; Validate rejects them first.
func (c *InfluxDBConfig) PrecisionDuration() time.Duration {
	if d, ok := precisions[c.Precision]; ok {
		return d
	}
	return time.Second
}

// Endpoint returns the full forecast URL without query parameters.
func (c *CBaseConfig) Endpoint() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.APIHost, Path: ForecastPath}).String()
}

// QueryParams returns the system parameters under the names the
// forecast API expects. The API key is added by the caller.
func (p *CBaseSystemParams) QueryParams() url.Values {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	v.Set("lon", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	v.Set("slope", strconv.Itoa(p.Slope))
	v.Set("azi", strconv.Itoa(p.Azimuth))
	v.Set("tracking", strconv.Itoa(int(p.Tracking)))
	v.Set("panel_out", strconv.Itoa(p.PanelOutput))
	v.Set("panel_qty", strconv.Itoa(p.PanelQuantity))
	v.Set("inv_cap", strconv.Itoa(p.InverterCapacity))
	return v
}

// String implements fmt.Stringer
func (t TrackingMode) String() string {
	switch t {
	case TrackingFixed:
		return "fixed"
	case TrackingYAxis:
		return "y_axis"
	case TrackingXAxis:
		return "x_axis"
	case TrackingDualAxis:
		return "dual_axis"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}
