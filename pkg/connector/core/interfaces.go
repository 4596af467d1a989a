// Package core defines the contracts between the sync pipeline and its
// sources and destinations.
package core

import (
	"context"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/models"
)

// Payload is one raw forecast document as delivered by a source
type Payload struct {
	// Data holds the CSV body
	Data []byte
	// FetchedAt is when the source produced the payload
	FetchedAt time.Time
	// Origin names where the payload came from: the request URL without
	// credentials, or a file path.
	Origin string
	// Metadata carries source specific details such as the HTTP status
	Metadata map[string]string
}

// Source is the interface that all source connectors must implement
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Payload, error)
	Close() error
}

// WriteResult reports the outcome of a Write, including partial failures
type WriteResult struct {
	Written       int           `json:"written"`
	Failed        int           `json:"failed"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	Duration      time.Duration `json:"duration"`
}

// Destination is the interface that all destination connectors must implement.
// Write returns a non-nil result even when it also returns an error.
type Destination interface {
	Name() string
	Write(ctx context.Context, points []models.Point) (*WriteResult, error)
	Health(ctx context.Context) error
	Close() error
}
