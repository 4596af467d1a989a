// Package sources links every built-in source connector into the binary
package sources

import (
	// Import all source connectors to trigger init() registration
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/sources/cbase"
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/sources/csv"
)
