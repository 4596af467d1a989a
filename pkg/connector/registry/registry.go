// Package registry maps connector names to factories. Connectors register
// themselves from init functions; importing pkg/connector/sources and
// pkg/connector/destinations pulls in every built-in connector.
package registry

import (
	"io"
	"sort"
	"sync"

	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"go.uber.org/zap"
)

// Options carries everything a factory may need to build a connector
type Options struct {
	Config *config.Config
	Logger *zap.Logger
	// Path is the input file for file based sources
	Path string
	// Output receives the data of stream destinations; defaults to stdout
	Output io.Writer
}

// SourceFactory creates a source connector
type SourceFactory func(opts Options) (core.Source, error)

// DestinationFactory creates a destination connector
type DestinationFactory func(opts Options) (core.Destination, error)

// Registry manages connector registration and instantiation
type Registry struct {
	sources      map[string]SourceFactory
	destinations map[string]DestinationFactory
	mu           sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		destinations: make(map[string]DestinationFactory),
	}
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(name string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source connector %s already registered", name)
	}

	r.sources[name] = factory
	logger.Debug("source connector registered", zap.String("name", name))
	return nil
}

// RegisterDestination registers a destination connector factory
func (r *Registry) RegisterDestination(name string, factory DestinationFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.destinations[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "destination connector %s already registered", name)
	}

	r.destinations[name] = factory
	logger.Debug("destination connector registered", zap.String("name", name))
	return nil
}

// CreateSource creates a source connector instance
func (r *Registry) CreateSource(name string, opts Options) (core.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source connector %s not found", name)
	}

	source, err := factory(opts.withDefaults())
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to create source connector "+name)
	}
	return source, nil
}

// CreateDestination creates a destination connector instance
func (r *Registry) CreateDestination(name string, opts Options) (core.Destination, error) {
	r.mu.RLock()
	factory, exists := r.destinations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "destination connector %s not found", name)
	}

	destination, err := factory(opts.withDefaults())
	if err != nil {
		return nil, errors.Wrap(err, errors.TypeOf(err), "failed to create destination connector "+name)
	}
	return destination, nil
}

// ListSources returns the registered source names in sorted order
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for name := range r.sources {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// ListDestinations returns the registered destination names in sorted order
func (r *Registry) ListDestinations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	destinations := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		destinations = append(destinations, name)
	}
	sort.Strings(destinations)
	return destinations
}

func (o Options) withDefaults() Options {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = logger.Get()
	}
	return o
}

// Global registry functions

// RegisterSource registers a source connector in the global registry
func RegisterSource(name string, factory SourceFactory) error {
	return globalRegistry.RegisterSource(name, factory)
}

// RegisterDestination registers a destination connector in the global registry
func RegisterDestination(name string, factory DestinationFactory) error {
	return globalRegistry.RegisterDestination(name, factory)
}

// CreateSource creates a source connector from the global registry
func CreateSource(name string, opts Options) (core.Source, error) {
	return globalRegistry.CreateSource(name, opts)
}

// CreateDestination creates a destination connector from the global registry
func CreateDestination(name string, opts Options) (core.Destination, error) {
	return globalRegistry.CreateDestination(name, opts)
}

// ListSources returns registered sources from the global registry
func ListSources() []string {
	return globalRegistry.ListSources()
}

// ListDestinations returns registered destinations from the global registry
func ListDestinations() []string {
	return globalRegistry.ListDestinations()
}
