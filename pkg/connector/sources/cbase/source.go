// Package cbase implements the source connector for the CBASE PV forecast
// API and the parser for its CSV responses.
package cbase

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/clients"
	"github.com/heiparta/cbase2influxdb/pkg/config"
	"github.com/heiparta/cbase2influxdb/pkg/connector/base"
	"github.com/heiparta/cbase2influxdb/pkg/connector/core"
	"github.com/heiparta/cbase2influxdb/pkg/connector/registry"
	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/logger"
	"go.uber.org/zap"
)

// Name is the registry name of the API source
const Name = "cbase"

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 512

func init() {
	_ = registry.RegisterSource(Name, func(opts registry.Options) (core.Source, error) {
		return NewSource(&opts.Config.CBase, opts.Config.Sync, opts.Logger)
	})
}

// Source fetches forecasts from the CBASE API
type Source struct {
	config *config.CBaseConfig
	client *clients.HTTPClient
	retry  *base.RetryPolicy
	logger *zap.Logger
}

// NewSource creates an API source with its own rate limited HTTP client
func NewSource(cfg *config.CBaseConfig, sync config.SyncConfig, log *zap.Logger) (*Source, error) {
	if cfg.APIHost == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "cbase.api_host is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "cbase api key is not set").
			WithDetail("env", config.APIKeyEnv)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "cbase_source"))

	httpCfg := clients.DefaultHTTPConfig()
	if cfg.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Timeout
	}
	if sync.RateLimitPerSec > 0 {
		httpCfg.RateLimit = float64(sync.RateLimitPerSec)
		httpCfg.RateBurst = 1
	}
	s := &Source{
		config: cfg,
		client: clients.NewHTTPClient(httpCfg, log),
		logger: log,
	}

	s.retry = base.NewRetryPolicy(sync.Retry).WithOnRetry(func(attempt int, delay time.Duration, err error) {
		log.Warn("forecast request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	})

	return s, nil
}

// Name implements core.Source
func (s *Source) Name() string { return Name }

// Fetch downloads the current forecast for the configured system
func (s *Source) Fetch(ctx context.Context) (*core.Payload, error) {
	params := s.config.System.QueryParams()
	origin := s.config.Endpoint() + "?" + params.Encode()

	params.Set("apikey", s.config.APIKey)
	requestURL := s.config.Endpoint() + "?" + params.Encode()

	log := logger.FromContext(ctx, s.logger)
	log.Debug("requesting forecast", zap.String("url", origin))

	var payload *core.Payload
	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		p, err := s.fetchOnce(ctx, requestURL)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload.Origin = origin
	log.Info("forecast fetched",
		zap.Int("bytes", len(payload.Data)),
		zap.String("host", s.config.APIHost))
	return payload, nil
}

func (s *Source) fetchOnce(ctx context.Context, requestURL string) (*core.Payload, error) {
	resp, err := s.client.Get(ctx, requestURL, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Newf(errors.FromHTTPStatus(resp.StatusCode),
			"forecast API returned %s", resp.Status).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", string(bytes.TrimSpace(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read forecast response")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.ErrorTypeData, "forecast API returned an empty body")
	}

	return &core.Payload{
		Data:      data,
		FetchedAt: time.Now().UTC(),
		Metadata: map[string]string{
			"status":       resp.Status,
			"content_type": resp.Header.Get("Content-Type"),
		},
	}, nil
}

// Close implements core.Source
func (s *Source) Close() error {
	return s.client.Close()
}
