// Package app wires configuration into the stores, provider clients and
// services shared by the binaries under cmd/.
package app

import (
	"fmt"
	"time"

	"github.com/address-ranker/internal/adapter"
	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/ratelimit"
	"github.com/address-ranker/internal/service"
	"github.com/address-ranker/internal/storage"
)

// InitLogging configures the global logger from cfg and returns it
func InitLogging(cfg config.LoggingConfig) *logging.Logger {
	logging.InitGlobalLoggerWithOptions(logging.Options{
		Level:  logging.ParseLogLevel(cfg.Level),
		Format: logging.ParseLogFormat(cfg.Format),
		File:   cfg.File,
	})

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Level,
		"format": cfg.Format,
		"file":   cfg.File,
	}).Info("Structured logging initialized")
	return logger
}

// Stores holds the database connections and the repositories built on them
type Stores struct {
	Postgres   *storage.PostgresDB
	ClickHouse *storage.ClickHouseDB // nil when ClickHouse is disabled
	Redis      *storage.RedisCache

	Addresses    *storage.AddressRepository
	Snapshots    *storage.SnapshotRepository
	Performances *storage.PerformanceRepository
	Ranks        *storage.RankRepository
	Traders      *storage.TraderRepository
	Cache        *storage.CacheService

	// History is nil when ClickHouse is disabled.
	History service.HistoryStore
}

// OpenStores connects to Postgres, Redis and, when enabled, ClickHouse
func OpenStores(cfg *config.Config, logger *logging.Logger) (*Stores, error) {
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s := &Stores{
		Postgres:     postgres,
		Redis:        redis,
		Addresses:    storage.NewAddressRepository(postgres),
		Snapshots:    storage.NewSnapshotRepository(postgres),
		Performances: storage.NewPerformanceRepository(postgres),
		Ranks:        storage.NewRankRepository(postgres),
		Traders:      storage.NewTraderRepository(postgres),
		Cache:        storage.NewCacheService(redis, cfg.Cache.TTL),
	}

	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		s.ClickHouse = clickhouse
		s.History = storage.NewHoldingHistoryRepository(clickhouse)
	} else {
		logger.Warn("ClickHouse disabled, holding history is not recorded")
	}

	logger.Info("Database connections established")
	return s, nil
}

// Close releases every connection
func (s *Stores) Close() {
	if s.ClickHouse != nil {
		_ = s.ClickHouse.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}

// providerSources loads the proxy and user-agent pools of the Debank clients
func providerSources(cfg config.ProviderConfig, stores *Stores) (adapter.ProxySource, *adapter.RandomUserAgents, error) {
	resources, err := config.LoadProviderResources(cfg.ResourcesFile)
	if err != nil {
		return nil, nil, err
	}

	proxies, err := adapter.NewProxySource(cfg, resources, stores.Redis.Client())
	if err != nil {
		return nil, nil, err
	}
	return proxies, adapter.NewUserAgentSource(resources.UserAgents), nil
}

// NewAssetProvider builds the Debank balance client. A positive
// BudgetPerWindow shares the request budget across processes through Redis.
func NewAssetProvider(cfg *config.Config, stores *Stores, logger *logging.Logger) (*adapter.DebankClient, error) {
	proxies, agents, err := providerSources(cfg.Provider, stores)
	if err != nil {
		return nil, err
	}

	var budget adapter.Waiter
	if cfg.Provider.BudgetPerWindow > 0 {
		b, err := ratelimit.NewRequestBudget(&ratelimit.BudgetConfig{
			Redis:  stores.Redis.Client(),
			Name:   "debank",
			Budget: cfg.Provider.BudgetPerWindow,
			Window: cfg.Provider.BudgetWindow,
		})
		if err != nil {
			return nil, fmt.Errorf("invalid provider budget: %w", err)
		}
		budget = b
	}

	httpClient := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Provider:          "debank",
		Timeout:           cfg.Provider.Timeout,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
		UserAgents:        agents,
	}, logger)

	return adapter.NewDebankClient(adapter.DebankConfigFrom(cfg.Provider), httpClient, proxies, agents, budget, logger), nil
}

// NewAddressFinder builds the leaderboard finder used for discovery
func NewAddressFinder(cfg *config.Config, stores *Stores, logger *logging.Logger) (*adapter.LeaderboardFinder, error) {
	proxies, agents, err := providerSources(cfg.Provider, stores)
	if err != nil {
		return nil, err
	}

	httpClient := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Provider:          "debank_leaderboard",
		Timeout:           cfg.Provider.Timeout,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
		UserAgents:        agents,
	}, logger)

	return adapter.NewLeaderboardFinder(httpClient, cfg.Discovery.BaseURL, cfg.Discovery.Pages, proxies, agents, logger), nil
}

// NewTradeFeed builds the Transpose swap feed with Moralis token metadata
func NewTradeFeed(cfg config.TradeFeedConfig, tokenInfoTTL time.Duration, logger *logging.Logger) (*adapter.TransposeClient, error) {
	tokenHTTP := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Provider:     "moralis",
		APIKeyHeader: "X-API-Key",
		APIKey:       cfg.TokenInfoAPIKey,
	}, logger)
	tokens := adapter.NewMoralisTokenInfoProvider(tokenHTTP, cfg.TokenInfoURL, adapter.NewMemoryTokenInfoCache(tokenInfoTTL), logger)

	feedHTTP := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Provider:     "transpose",
		Timeout:      30 * time.Second,
		APIKeyHeader: "X-API-KEY",
		APIKey:       cfg.APIKey,
	}, logger)

	return adapter.NewTransposeClient(adapter.TransposeConfig{
		URL:           cfg.URL,
		QuoteToken:    cfg.QuoteToken,
		QuoteDecimals: cfg.QuoteDecimals,
		MaxPairs:      cfg.MaxPairs,
		Concurrency:   cfg.Concurrency,
	}, feedHTTP, tokens, logger)
}

// NewTraderService builds the backtest service on the trade feed
func NewTraderService(cfg *config.Config, stores *Stores, logger *logging.Logger) (*service.TraderService, error) {
	feed, err := NewTradeFeed(cfg.TradeFeed, cfg.Cache.TokenInfoTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade feed: %w", err)
	}

	var store service.TraderStore
	if stores != nil {
		store = stores.Traders
	}
	return service.NewTraderService(feed, store, service.TraderServiceConfig{
		Since: cfg.TradeFeed.MinTimestamp,
		TTL:   cfg.Cache.TraderTTL,
	}, logger), nil
}

// NewQueryService builds the read path over the stores
func NewQueryService(stores *Stores, logger *logging.Logger) *service.QueryService {
	return service.NewQueryService(stores.Snapshots, stores.History, stores.Performances, stores.Ranks, stores.Cache, logger)
}
