package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/aggregation"
	"github.com/address-ranker/internal/circuitbreaker"
	"github.com/address-ranker/internal/config"
	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/retry"
	"github.com/address-ranker/internal/types"
)

const debankProvider = "debank"

// ErrInvalidPayload is returned when a provider response is missing its data envelope
var ErrInvalidPayload = stderrors.New("response has no data field")

// AssetProvider reads the current holdings of an address. A nil snapshot with
// a nil error means the provider had nothing to report for this run.
type AssetProvider interface {
	FetchSnapshot(ctx context.Context, address string, runTimestamp time.Time) (*models.AddressSnapshot, error)
}

// Waiter blocks until a request may be sent
type Waiter interface {
	Wait(ctx context.Context) error
}

var debankHeaders = map[string]string{
	"authority":          "api.debank.com",
	"accept":             "*/*",
	"accept-language":    "en",
	"cache-control":      "no-cache",
	"dnt":                "1",
	"origin":             "https://debank.com",
	"pragma":             "no-cache",
	"referer":            "https://debank.com/",
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
	"sec-fetch-dest":     "empty",
	"sec-fetch-mode":     "cors",
	"sec-fetch-site":     "same-site",
	"source":             "web",
	"x-api-ver":          "v2",
}

// DebankConfig configures a DebankClient
type DebankConfig struct {
	BaseURL         string
	MaxRetries      int
	Timeout         time.Duration // per attempt
	RetryDelay      time.Duration // delay before the second attempt
	ChainBalances   bool
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// DebankConfigFrom maps the provider section of the service config
func DebankConfigFrom(cfg config.ProviderConfig) DebankConfig {
	return DebankConfig{
		BaseURL:         cfg.DebankBaseURL,
		MaxRetries:      cfg.MaxRetries,
		Timeout:         cfg.Timeout,
		RetryDelay:      200 * time.Millisecond,
		ChainBalances:   cfg.ChainBalances,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}

type debankCoin struct {
	Amount decimal.Decimal `json:"amount"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Chain  string          `json:"chain"`
}

type classifyResponse struct {
	Data *struct {
		CoinList []debankCoin `json:"coin_list"`
	} `json:"data"`
}

type balanceListResponse struct {
	Data *[]debankCoin `json:"data"`
}

// DebankClient implements AssetProvider over the Debank web API
type DebankClient struct {
	cfg     DebankConfig
	http    *HTTPClient
	proxies ProxySource
	agents  UserAgentSource
	budget  Waiter
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.RetryConfig
	logger  *logging.Logger
}

// NewDebankClient creates a Debank client. budget may be nil.
func NewDebankClient(cfg DebankConfig, httpClient *HTTPClient, proxies ProxySource, agents UserAgentSource, budget Waiter, logger *logging.Logger) *DebankClient {
	if proxies == nil {
		proxies = EmptyProxySource{}
	}
	if agents == nil {
		agents = NewUserAgentSource(nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("provider", debankProvider)

	breakerCfg := circuitbreaker.DefaultConfig(debankProvider)
	if cfg.BreakerFailures > 0 {
		breakerCfg.MaxFailures = cfg.BreakerFailures
	}
	if cfg.BreakerTimeout > 0 {
		breakerCfg.Timeout = cfg.BreakerTimeout
	}
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		monitor.BreakerStateChanged(name, to != circuitbreaker.StateClosed)
	}

	return &DebankClient{
		cfg:     cfg,
		http:    httpClient,
		proxies: proxies,
		agents:  agents,
		budget:  budget,
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		retry: &retry.RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			PerAttemptTimeout: cfg.Timeout,
			InitialDelay:      cfg.RetryDelay,
			MaxDelay:          5 * time.Second,
			Multiplier:        2,
			Retryable:         apperrors.IsRetryable,
		},
		logger: logger,
	}
}

// FetchSnapshot implements AssetProvider
func (c *DebankClient) FetchSnapshot(ctx context.Context, address string, runTimestamp time.Time) (*models.AddressSnapshot, error) {
	address = strings.ToLower(address)
	logger := c.logger.WithField("address", address)

	var holdings []types.UsdValuedHolding
	err := retry.Do(logging.WithLogger(ctx, logger), c.retry, func(ctx context.Context, attempt int) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			holdings, err = c.fetchHoldings(ctx, address)
			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithError(err).Warn("Could not receive data for address, skipping update")
		return nil, fmt.Errorf("debank holdings for %s: %w: %w", address, apperrors.ErrMissingData, err)
	}

	return aggregation.BuildSnapshot(address, holdings, runTimestamp)
}

func (c *DebankClient) fetchHoldings(ctx context.Context, address string) ([]types.UsdValuedHolding, error) {
	if c.budget != nil {
		if err := c.budget.Wait(ctx); err != nil {
			return nil, err
		}
	}

	proxy, err := c.proxies.Proxy(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Proxy lookup failed, sending request directly")
		proxy = ""
	}
	ctx = WithProxy(ctx, proxy)

	if c.cfg.ChainBalances {
		return c.fetchChainBalances(ctx, address)
	}
	return c.fetchClassified(ctx, address)
}

func (c *DebankClient) headers() map[string]string {
	headers := make(map[string]string, len(debankHeaders)+1)
	for k, v := range debankHeaders {
		headers[k] = v
	}
	headers["User-Agent"] = c.agents.UserAgent()
	return headers
}

func (c *DebankClient) fetchClassified(ctx context.Context, address string) ([]types.UsdValuedHolding, error) {
	var resp classifyResponse
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/asset/classify"
	if err := c.http.GetJSON(ctx, url, map[string]string{"user_addr": address}, c.headers(), &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, apperrors.NewProviderError(debankProvider, ErrInvalidPayload)
	}

	holdings := make([]types.UsdValuedHolding, 0, len(resp.Data.CoinList))
	for _, coin := range resp.Data.CoinList {
		holding := types.NewUsdValuedHolding(coin.Symbol, coin.Amount, coin.Price)
		if holding.ValueUSD.IsPositive() {
			holdings = append(holdings, holding)
		}
	}
	return holdings, nil
}

func (c *DebankClient) fetchChainBalances(ctx context.Context, address string) ([]types.UsdValuedHolding, error) {
	var resp balanceListResponse
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/token/cache_balance_list"
	if err := c.http.GetJSON(ctx, url, map[string]string{"user_addr": address}, c.headers(), &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, apperrors.NewProviderError(debankProvider, ErrInvalidPayload)
	}

	holdings := make([]types.UsdValuedHolding, 0, len(*resp.Data))
	for _, coin := range *resp.Data {
		if _, ok := types.ParseProviderChain(coin.Chain); !ok {
			c.logger.WithFields(map[string]interface{}{
				"chain":  coin.Chain,
				"symbol": coin.Symbol,
			}).Warn("Skipping balance on unknown chain")
			continue
		}
		holding := types.NewUsdValuedHolding(coin.Symbol, coin.Amount, coin.Price)
		if holding.ValueUSD.IsPositive() {
			holdings = append(holdings, holding)
		}
	}
	return holdings, nil
}
