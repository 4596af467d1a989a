// Package clients provides the outbound HTTP client used to reach the
// forecast API and the InfluxDB server.
package clients

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
	"github.com/heiparta/cbase2influxdb/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// UserAgent is sent with every request that does not set its own
const UserAgent = "cbase2influxdb/1.0"

// HTTPClient wraps net/http with rate limiting, a circuit breaker and
// request metrics.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64

	circuitBreaker *CircuitBreaker
	rateLimiter    RateLimiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	// Timeouts
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`

	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	// Rate limiting; zero disables it
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	SuccessThreshold      int           `json:"success_threshold"`
	OpenTimeout           time.Duration `json:"open_timeout"`
}

// DefaultHTTPConfig returns the default client configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		RequestTimeout:        30 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      1,
		OpenTimeout:           30 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed InfluxDB
			MinVersion:         tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
	}

	if config.RateLimit > 0 {
		client.rateLimiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst)
	}

	if config.CircuitBreakerEnabled {
		client.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			SuccessThreshold: config.SuccessThreshold,
			Timeout:          config.OpenTimeout,
		}, client.logger)
	}

	return client
}

// Get performs an HTTP GET request
func (c *HTTPClient) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil, headers)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do performs a request. Transport failures and 5xx responses count
// against the circuit breaker; the response body is left to the caller.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
			return nil, errors.Wrap(err, errors.ErrorTypeRateLimit, "rate limiter wait aborted")
		}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, errors.New(errors.ErrorTypeConnection, "circuit breaker open").
			WithDetail("host", req.URL.Host)
	}

	atomic.AddInt64(&c.totalRequests, 1)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	metrics.RecordHTTP(req.URL.Host, resp, time.Since(start))

	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		if c.circuitBreaker != nil {
			c.circuitBreaker.RecordFailure()
		}
		err = redactURL(err)
		if req.Context().Err() != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "request cancelled").
				WithDetail("host", req.URL.Host)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed").
			WithDetail("host", req.URL.Host)
	}

	if c.circuitBreaker != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		atomic.AddInt64(&c.failedRequests, 1)
	}

	return resp, nil
}

// StandardClient returns a *http.Client whose requests go through Do.
// It is handed to libraries that manage their own requests.
func (c *HTTPClient) StandardClient() *http.Client {
	return &http.Client{
		Transport: roundTripperFunc(c.Do),
		Timeout:   c.config.RequestTimeout,
	}
}

// redactURL drops the query string from transport errors; it may carry
// credentials such as the forecast API key.
func redactURL(err error) error {
	var uerr *url.Error
	if !stderrors.As(err, &uerr) {
		return err
	}
	if u, perr := url.Parse(uerr.URL); perr == nil && u.RawQuery != "" {
		u.RawQuery = "redacted"
		uerr.URL = u.String()
	}
	return err
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.Wrap(redactURL(err), errors.ErrorTypeValidation, "invalid request")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	return req, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.GetState().State
	}
	return stats
}

// Close logs the request totals and releases idle connections
func (c *HTTPClient) Close() error {
	stats := c.GetStats()
	c.logger.Debug("http client closed",
		zap.Int64("requests", stats.TotalRequests),
		zap.Int64("failed", stats.FailedRequests),
		zap.Float64("success_rate", stats.SuccessRate),
		zap.String("circuit", stats.CircuitState))
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
	CircuitState   string  `json:"circuit_state,omitempty"`
}
