// Package config provides the configuration system for cbase2influxdb.
// A single Config structure describes one forecast sync job and is
// organized into logical sections:
//   - InfluxDB: destination connection, auth and write batching
//   - CBase: forecast API endpoint, credentials and PV system parameters
//   - Sync: point shaping, scheduling, retries and persisted state
//   - Archive: optional storage of raw API responses
//   - Observability: logging, metrics and tracing
//
// Example usage:
//
//	cfg, err := config.Load("/app/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// Config is the root configuration for a sync job.
type Config struct {
	// InfluxDB describes the destination database
	InfluxDB InfluxDBConfig `yaml:"influxdb" json:"influxdb"`

	// CBase describes the forecast API and the PV system to forecast
	CBase CBaseConfig `yaml:"cbase" json:"cbase"`

	// Sync controls how forecasts become points and when runs happen
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Archive controls raw response archival
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// InfluxDBConfig contains the destination database settings.
// Version 1 servers are addressed with database/retention policy and
// optional basic credentials; version 2 servers with org/bucket/token.
type InfluxDBConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Scheme          string        `yaml:"scheme" json:"scheme"`
	URL             string        `yaml:"url" json:"url"`
	Database        string        `yaml:"database" json:"database"`
	RetentionPolicy string        `yaml:"retention_policy" json:"retention_policy"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"-"`
	APIVersion      int           `yaml:"api_version" json:"api_version"`
	Token           string        `yaml:"token" json:"-"`
	Org             string        `yaml:"org" json:"org"`
	Bucket          string        `yaml:"bucket" json:"bucket"`
	Precision       string        `yaml:"precision" json:"precision"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	Gzip            bool          `yaml:"gzip" json:"gzip"`
	TLSSkipVerify   bool          `yaml:"tls_skip_verify" json:"tls_skip_verify"`
}

// CBaseConfig contains the forecast API settings.
type CBaseConfig struct {
	// APIHost is the host serving /api/pvfcst_request
	APIHost string `yaml:"api_host" json:"api_host"`
	// Scheme is https unless set
	Scheme string `yaml:"scheme" json:"scheme"`
	// APIKey falls back to the CBASE_API_KEY environment variable
	APIKey  string            `yaml:"api_key" json:"-"`
	Timeout time.Duration     `yaml:"timeout" json:"timeout"`
	System  CBaseSystemParams `yaml:"system" json:"system"`
}

// TrackingMode describes how the panels follow the sun.
type TrackingMode int

const (
	// TrackingFixed panels do not move
	TrackingFixed TrackingMode = iota
	// TrackingYAxis panels rotate around the y axis
	TrackingYAxis
	// TrackingXAxis panels rotate around the x axis
	TrackingXAxis
	// TrackingDualAxis panels track on both axes
	TrackingDualAxis
)

// CBaseSystemParams describes the PV installation sent to the forecast API.
type CBaseSystemParams struct {
	Latitude         float64      `yaml:"latitude" json:"latitude"`
	Longitude        float64      `yaml:"longitude" json:"longitude"`
	Slope            int          `yaml:"slope" json:"slope"`
	Azimuth          int          `yaml:"azimuth" json:"azimuth"`
	Tracking         TrackingMode `yaml:"tracking" json:"tracking"`
	PanelOutput      int          `yaml:"panel_output" json:"panel_output"`
	PanelQuantity    int          `yaml:"panel_quantity" json:"panel_quantity"`
	InverterCapacity int          `yaml:"inverter_capacity" json:"inverter_capacity"`

	// missing lists required keys absent from the loaded YAML
	missing []string
}

// RequiredSystemKeys are the cbase.system keys without a default
var RequiredSystemKeys = []string{"latitude", "longitude", "slope", "azimuth", "panel_output", "panel_quantity"}

// SyncConfig controls point shaping, scheduling and run bookkeeping.
type SyncConfig struct {
	Measurement     string            `yaml:"measurement" json:"measurement"`
	Tags            map[string]string `yaml:"tags" json:"tags"`
	ExcludeFields   []string          `yaml:"exclude_fields" json:"exclude_fields"`
	Incremental     bool              `yaml:"incremental" json:"incremental"`
	Schedule        string            `yaml:"schedule" json:"schedule"`
	StateFile       string            `yaml:"state_file" json:"state_file"`
	Retry           RetryConfig       `yaml:"retry" json:"retry"`
	RateLimitPerSec int               `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
}

// RetryConfig contains retry settings shared by the API source and the writer.
type RetryConfig struct {
	// Attempts is the total number of tries including the first one
	Attempts     int           `yaml:"attempts" json:"attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// ArchiveConfig controls storage of raw CSV responses.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Backend         string `yaml:"backend" json:"backend"`
	Path            string `yaml:"path" json:"path"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Region          string `yaml:"region" json:"region"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	Compression     string `yaml:"compression" json:"compression"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	LogFormat   string `yaml:"log_format" json:"log_format"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	PushGateway string `yaml:"push_gateway" json:"push_gateway"`
	Tracing     bool   `yaml:"tracing" json:"tracing"`
}

// Default returns a Config populated with the defaults of every optional
// setting. Required settings (hosts, coordinates) are left empty.
func Default() *Config {
	return &Config{
		InfluxDB: InfluxDBConfig{
			Port:       8086,
			Scheme:     "http",
			Database:   "cbase",
			APIVersion: 1,
			Precision:  "s",
			BatchSize:  500,
			Timeout:    30 * time.Second,
		},
		CBase: CBaseConfig{
			Scheme:  "https",
			Timeout: 30 * time.Second,
			System: CBaseSystemParams{
				Tracking: TrackingFixed,
			},
		},
		Sync: SyncConfig{
			Measurement: "cbase",
			Tags:        DefaultTags(),
			Retry: RetryConfig{
				Attempts:     3,
				InitialDelay: time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
			},
		},
		Archive: ArchiveConfig{
			Backend:     "file",
			Path:        "./archive",
			Prefix:      "cbase/",
			Compression: "gzip",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// DefaultTags are used when the config does not set sync.tags at all.
func DefaultTags() map[string]string {
	return map[string]string{"system": "home"}
}

// Validate checks required fields and value ranges. The first problem
// found is returned as a validation error naming the offending key.
func (c *Config) Validate() error {
	if err := c.InfluxDB.Validate(); err != nil {
		return err
	}
	if err := c.CBase.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the destination settings.
func (c *InfluxDBConfig) Validate() error {
	if c.Host == "" && c.URL == "" {
		return invalid("influxdb.host", "is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return invalid("influxdb.port", "must be between 1 and 65535")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return invalid("influxdb.scheme", "must be http or https")
	}
	switch c.APIVersion {
	case 1:
		if c.Database == "" {
			return invalid("influxdb.database", "is required")
		}
	case 2:
		if c.Bucket == "" {
			return invalid("influxdb.bucket", "is required for api_version 2")
		}
	default:
		return invalid("influxdb.api_version", "must be 1 or 2")
	}
	if _, ok := precisions[c.Precision]; !ok {
		return invalid("influxdb.precision", "must be one of ns, us, ms, s")
	}
	if c.BatchSize <= 0 {
		return invalid("influxdb.batch_size", "must be positive")
	}
	if c.Timeout <= 0 {
		return invalid("influxdb.timeout", "must be positive")
	}
	return nil
}

// Validate checks the forecast API settings.
func (c *CBaseConfig) Validate() error {
	if c.APIHost == "" {
		return invalid("cbase.api_host", "is required")
	}
	if c.APIKey == "" {
		return invalid("cbase.api_key", "is required (set it or export CBASE_API_KEY)")
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		return invalid("cbase.scheme", "must be http or https")
	}
	if c.Timeout <= 0 {
		return invalid("cbase.timeout", "must be positive")
	}
	return c.System.Validate()
}

// Validate checks the PV system parameters against the ranges the
// forecast API accepts.
func (p *CBaseSystemParams) Validate() error {
	if len(p.missing) > 0 {
		return invalid("cbase.system."+p.missing[0], "is required")
	}
	switch {
	case p.Latitude < -90 || p.Latitude > 90:
		return invalid("cbase.system.latitude", "must be between -90 and 90")
	case p.Longitude < -180 || p.Longitude > 180:
		return invalid("cbase.system.longitude", "must be between -180 and 180")
	case p.Slope < 0 || p.Slope > 90:
		return invalid("cbase.system.slope", "must be between 0 and 90")
	case p.Azimuth < 0 || p.Azimuth > 359:
		return invalid("cbase.system.azimuth", "must be between 0 and 359")
	case p.Tracking < TrackingFixed || p.Tracking > TrackingDualAxis:
		return invalid("cbase.system.tracking", "must be 0, 1, 2 or 3")
	case p.PanelOutput < 0 || p.PanelOutput > 1000:
		return invalid("cbase.system.panel_output", "must be between 0 and 1000")
	case p.PanelQuantity < 0 || p.PanelQuantity > 1000:
		return invalid("cbase.system.panel_quantity", "must be between 0 and 1000")
	case p.InverterCapacity < 0 || p.InverterCapacity > 100000:
		return invalid("cbase.system.inverter_capacity", "must be between 0 and 100000")
	}
	return nil
}

// Validate checks sync settings.
func (c *SyncConfig) Validate() error {
	if c.Measurement == "" {
		return invalid("sync.measurement", "is required")
	}
	if c.Retry.Attempts < 1 {
		return invalid("sync.retry.attempts", "must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return invalid("sync.retry.multiplier", "must be at least 1")
	}
	if c.RateLimitPerSec < 0 {
		return invalid("sync.rate_limit_per_sec", "cannot be negative")
	}
	if c.Incremental && c.StateFile == "" {
		return invalid("sync.state_file", "is required when sync.incremental is set")
	}
	return nil
}

// Validate checks archive settings. Disabled archives are not checked.
func (c *ArchiveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case "file":
		if c.Path == "" {
			return invalid("archive.path", "is required for the file backend")
		}
	case "s3", "gcs":
		if c.Bucket == "" {
			return invalid("archive.bucket", "is required for the "+c.Backend+" backend")
		}
	default:
		return invalid("archive.backend", "must be file, s3 or gcs")
	}
	switch c.Compression {
	case "", "none", "gzip", "zstd", "lz4", "snappy":
	default:
		return invalid("archive.compression", "must be none, gzip, zstd, lz4 or snappy")
	}
	return nil
}

var precisions = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
}

func invalid(key, msg string) error {
	return errors.New(errors.ErrorTypeValidation, key+" "+msg).WithDetail("key", key)
}
