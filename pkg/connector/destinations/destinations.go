// Package destinations links every built-in destination connector into the binary
package destinations

import (
	// Import all destination connectors to trigger init() registration
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/destinations/dryrun"
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/destinations/influxdb"
	_ "github.com/heiparta/cbase2influxdb/pkg/connector/destinations/json"
)
