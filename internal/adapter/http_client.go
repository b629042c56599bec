// Package adapter implements the clients for the balance, leaderboard, trade
// and token metadata APIs the ranker depends on.
package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/monitor"
)

// HTTPClientConfig configures an HTTPClient
type HTTPClientConfig struct {
	Provider          string        // label used in logs, errors and metrics
	Timeout           time.Duration // whole-request timeout
	RequestsPerMinute int           // in-process rate limit, 0 disables
	APIKeyHeader      string
	APIKey            string
	UserAgents        UserAgentSource
}

// StatusError is a non-2xx response from a provider
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPClient is a rate limited JSON client shared by the provider adapters
type HTTPClient struct {
	client   *resty.Client
	limiter  *rate.Limiter
	provider string
	logger   *logging.Logger
}

type proxyKey struct{}

// WithProxy routes requests made with ctx through proxy. An empty proxy means a direct connection.
func WithProxy(ctx context.Context, proxy string) context.Context {
	return context.WithValue(ctx, proxyKey{}, proxy)
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	proxy, _ := req.Context().Value(proxyKey{}).(string)
	if proxy == "" {
		return nil, nil
	}
	return url.Parse(proxy)
}

// NewHTTPClient creates a client for one provider
func NewHTTPClient(cfg HTTPClientConfig, logger *logging.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("provider", cfg.Provider)

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}
	limiter := rate.NewLimiter(limit, 1)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFromContext

	restyClient := resty.NewWithClient(&http.Client{Transport: transport}).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
			if err := limiter.Wait(r.Context()); err != nil {
				logger.WithError(err).Warn("Rate limiter wait failed")
				return err
			}
			if cfg.UserAgents != nil && r.Header.Get("User-Agent") == "" {
				r.SetHeader("User-Agent", cfg.UserAgents.UserAgent())
			}
			if cfg.APIKeyHeader != "" && cfg.APIKey != "" {
				r.SetHeader(cfg.APIKeyHeader, cfg.APIKey)
			}
			logger.WithField("url", r.URL).Debug("Outgoing request")
			return nil
		}).
		AddResponseMiddleware(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				logger.WithFields(map[string]interface{}{
					"status": resp.StatusCode(),
					"url":    resp.Request.URL,
				}).Warn("HTTP request failed")
			}
			return nil
		})

	return &HTTPClient{
		client:   restyClient,
		limiter:  limiter,
		provider: cfg.Provider,
		logger:   logger,
	}
}

// GetJSON issues a GET and decodes a JSON body into out
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, query, headers map[string]string, out interface{}) error {
	req := c.client.R().
		SetContext(ctx).
		SetResult(out)
	if query != nil {
		req.SetQueryParams(query)
	}
	if headers != nil {
		req.SetHeaders(headers)
	}

	start := time.Now()
	resp, err := req.Get(rawURL)
	return c.finish(ctx, rawURL, start, resp, err)
}

// PostJSON issues a POST with a JSON body and decodes a JSON response into out
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, body interface{}, headers map[string]string, out interface{}) error {
	req := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out)
	if headers != nil {
		req.SetHeaders(headers)
	}
	req.SetHeader("Content-Type", "application/json")

	start := time.Now()
	resp, err := req.Post(rawURL)
	return c.finish(ctx, rawURL, start, resp, err)
}

func (c *HTTPClient) finish(ctx context.Context, rawURL string, start time.Time, resp *resty.Response, err error) error {
	monitor.ProviderRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		monitor.ProviderRequests.WithLabelValues(c.provider, "error").Inc()
		var netErr net.Error
		if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
			return apperrors.NewProviderTimeoutError(c.provider)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WithError(err).WithField("url", rawURL).Error("HTTP request failed")
		return apperrors.NewProviderError(c.provider, err)
	}

	status := resp.StatusCode()
	monitor.ProviderRequests.WithLabelValues(c.provider, strconv.Itoa(status)).Inc()

	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.NewProviderRateLimitError(c.provider)
	case status >= 400:
		return apperrors.NewProviderError(c.provider, &StatusError{StatusCode: status, URL: rawURL})
	}
	return nil
}
