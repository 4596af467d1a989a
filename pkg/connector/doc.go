// Package connector groups the sources and destinations of a sync.
//
// The sub-packages are:
//
//   - core: the Source and Destination interfaces and the Payload and
//     WriteResult types passed between them.
//   - base: retry and circuit breaker policies shared by connectors that
//     talk to remote services.
//   - registry: a factory registry. Connectors register themselves in
//     init, so importing sources and destinations makes them available
//     by name.
//   - sources: the CBASE forecast API and local CSV files.
//   - destinations: InfluxDB, JSON on stdout, and a dry run that only logs.
//
// A sync always moves one forecast document: a Source fetches it, the
// pipeline parses and transforms it into points, and a Destination
// writes them in batches.
package connector
