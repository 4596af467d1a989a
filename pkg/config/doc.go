// Package config provides configuration management for cbase2influxdb.
//
// A sync job is described by one YAML file, passed to the binary as its
// only positional argument:
//
//	cbase2influxdb /app/config.yaml
//
// # Key Features
//
// - Config: single structure with influxdb, cbase, sync, archive and observability sections
// - Defaults applied before decoding, so only required keys must be present
// - Environment variable substitution with ${VAR_NAME} syntax
// - CBASE_API_KEY fallback for the forecast API key
// - Range validation of the PV system parameters
//
// # Usage
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment Variable Substitution
//
//	# config.yaml
//	influxdb:
//	  host: influxdb
//	  username: ${INFLUX_USER}
//	  password: ${INFLUX_PASSWORD}
//	cbase:
//	  api_host: api.example.com
//	  api_key: ${CBASE_API_KEY}
//
// Unknown keys are rejected so that typos surface at load time instead of
// silently falling back to defaults.
package config
