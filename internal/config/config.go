// Package config provides configuration management for the address ranker application.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Provider  ProviderConfig
	TradeFeed TradeFeedConfig
	Scheduler SchedulerConfig
	Discovery DiscoveryConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Monitor   MonitorConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by golang-migrate
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ProviderConfig holds balance provider configuration
type ProviderConfig struct {
	DebankBaseURL     string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	// BudgetPerWindow caps provider requests per BudgetWindow across all processes (0 disables).
	BudgetPerWindow int
	BudgetWindow    time.Duration
	ProxySource     string // empty, list or redis
	ProxyRedisKey   string
	ResourcesFile   string
	BreakerFailures int
	BreakerTimeout  time.Duration
	// ChainBalances reads per-chain token balances instead of the classified asset list.
	ChainBalances bool
}

// TradeFeedConfig holds configuration for the swap history API used by backtests
type TradeFeedConfig struct {
	URL             string
	APIKey          string
	QuoteToken      string
	QuoteDecimals   int32
	MaxPairs        int
	Concurrency     int
	TokenInfoURL    string
	TokenInfoAPIKey string
	MinTimestamp    time.Time
}

// SchedulerConfig holds update cycle configuration
type SchedulerConfig struct {
	UpdateInterval      time.Duration
	AddressDelay        time.Duration
	Concurrency         int
	DailyRankingEnabled bool
}

// DiscoveryConfig holds address discovery configuration
type DiscoveryConfig struct {
	BaseURL string
	Pages   int
	Limit   int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL          time.Duration
	TokenInfoTTL time.Duration
	TraderTTL    time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// MonitorConfig holds Prometheus exposition configuration
type MonitorConfig struct {
	Enabled bool
	Addr    string
}

// ProviderResources holds proxy and user-agent lists loaded from a TOML file
type ProviderResources struct {
	Proxies    []string `toml:"proxies"`
	UserAgents []string `toml:"user_agents"`
}

// DefaultUpdateInterval starts an update cycle on the hour and on the half hour,
// so every HOUR window holds one scored pair of snapshots
const DefaultUpdateInterval = 30 * time.Minute

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "address_ranker"),
				User:           getEnv("POSTGRES_USER", "ranker"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", true),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "address_ranker"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Provider: ProviderConfig{
			DebankBaseURL:     getEnv("DEBANK_BASE_URL", "https://api.debank.com"),
			Timeout:           getEnvAsDuration("PROVIDER_TIMEOUT", 5*time.Second),
			MaxRetries:        getEnvAsInt("PROVIDER_MAX_RETRIES", 8),
			RequestsPerMinute: getEnvAsInt("PROVIDER_REQUESTS_PER_MINUTE", 30),
			BudgetPerWindow:   getEnvAsInt("PROVIDER_BUDGET_PER_WINDOW", 0),
			BudgetWindow:      getEnvAsDuration("PROVIDER_BUDGET_WINDOW", time.Minute),
			ProxySource:       getEnv("PROXY_SOURCE", "empty"),
			ProxyRedisKey:     getEnv("PROXY_REDIS_KEY", "proxies"),
			ResourcesFile:     getEnv("PROVIDER_RESOURCES_FILE", "resources/provider.toml"),
			BreakerFailures:   getEnvAsInt("PROVIDER_BREAKER_FAILURES", 10),
			BreakerTimeout:    getEnvAsDuration("PROVIDER_BREAKER_TIMEOUT", 30*time.Second),
			ChainBalances:     getEnvAsBool("DEBANK_CHAIN_BALANCES", false),
		},
		TradeFeed: TradeFeedConfig{
			URL:             getEnv("TRANSPOSE_URL", "https://api.transpose.io/sql"),
			APIKey:          getEnv("TRANSPOSE_API_KEY", ""),
			QuoteToken:      strings.ToLower(getEnv("TRADE_FEED_QUOTE_TOKEN", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")),
			QuoteDecimals:   int32(getEnvAsInt("TRADE_FEED_QUOTE_DECIMALS", 18)), // #nosec G115 - small config value
			MaxPairs:        getEnvAsInt("TRADE_FEED_MAX_PAIRS", 100),
			Concurrency:     getEnvAsInt("TRADE_FEED_CONCURRENCY", 2),
			TokenInfoURL:    getEnv("TOKEN_INFO_URL", "https://deep-index.moralis.io/api/v2"),
			TokenInfoAPIKey: getEnv("TOKEN_INFO_API_KEY", ""),
			MinTimestamp:    getEnvAsTime("TRADE_FEED_MIN_TIMESTAMP", time.Date(2022, 5, 1, 1, 1, 1, 0, time.UTC)),
		},
		Scheduler: SchedulerConfig{
			UpdateInterval:      getEnvAsDuration("UPDATE_INTERVAL", DefaultUpdateInterval),
			AddressDelay:        getEnvAsDuration("SCHEDULER_ADDRESS_DELAY", 2*time.Second),
			Concurrency:         getEnvAsInt("SCHEDULER_CONCURRENCY", 1),
			DailyRankingEnabled: getEnvAsBool("DAILY_RANKING_ENABLED", true),
		},
		Discovery: DiscoveryConfig{
			BaseURL: getEnv("DISCOVERY_BASE_URL", "https://api.debank.com"),
			Pages:   getEnvAsInt("DISCOVERY_PAGES", 5),
			Limit:   getEnvAsInt("DISCOVERY_LIMIT", 20),
		},
		Cache: CacheConfig{
			TTL:          getEnvAsDuration("CACHE_TTL", 5*time.Minute),
			TokenInfoTTL: getEnvAsDuration("TOKEN_INFO_CACHE_TTL", 24*time.Hour),
			TraderTTL:    getEnvAsDuration("TRADER_CACHE_TTL", 6*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("API_RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("API_RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Monitor: MonitorConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Addr:    getEnv("METRICS_ADDR", ":9090"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must be at least 1, got %d", c.Provider.MaxRetries)
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("SCHEDULER_CONCURRENCY must be at least 1, got %d", c.Scheduler.Concurrency)
	}
	if c.Scheduler.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive")
	}
	// Cycles start on clock slots; a pair of them has to fit inside one HOUR window.
	if time.Hour%c.Scheduler.UpdateInterval != 0 || c.Scheduler.UpdateInterval > 30*time.Minute {
		return fmt.Errorf("UPDATE_INTERVAL must divide an hour into at least two cycles, got %s", c.Scheduler.UpdateInterval)
	}
	switch c.Provider.ProxySource {
	case "empty", "list", "redis":
	default:
		return fmt.Errorf("unknown PROXY_SOURCE %q (expected empty, list or redis)", c.Provider.ProxySource)
	}
	if c.Discovery.Pages < 1 {
		return fmt.Errorf("DISCOVERY_PAGES must be at least 1, got %d", c.Discovery.Pages)
	}
	return nil
}

// LoadProviderResources reads proxy and user-agent lists from a TOML file.
// A missing file yields empty lists.
func LoadProviderResources(path string) (*ProviderResources, error) {
	res := &ProviderResources{}
	if path == "" {
		return res, nil
	}

	if _, err := toml.DecodeFile(path, res); err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return nil, fmt.Errorf("failed to decode provider resources %s: %w", path, err)
	}

	res.Proxies = normalizeList(res.Proxies)
	res.UserAgents = normalizeList(res.UserAgents)
	return res, nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable with a default value
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	values := normalizeList(strings.Split(valueStr, ","))
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

// getEnvAsTime gets an RFC3339 environment variable with a default value
func getEnvAsTime(key string, defaultValue time.Time) time.Time {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return defaultValue
	}
	return value.UTC()
}
