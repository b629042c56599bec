package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"

	"github.com/redis/go-redis/v9"

	"github.com/address-ranker/internal/config"
)

// Proxy sources
const (
	ProxySourceEmpty = "empty"
	ProxySourceList  = "list"
	ProxySourceRedis = "redis"
)

// ProxySource hands out the proxy to use for the next request. "" means no proxy.
type ProxySource interface {
	Proxy(ctx context.Context) (string, error)
}

// EmptyProxySource never uses a proxy
type EmptyProxySource struct{}

// Proxy implements ProxySource
func (EmptyProxySource) Proxy(context.Context) (string, error) {
	return "", nil
}

// ListProxySource picks a random proxy from a fixed list
type ListProxySource struct {
	proxies []string
}

// NewListProxySource creates a list source; an empty list behaves like EmptyProxySource
func NewListProxySource(proxies []string) *ListProxySource {
	return &ListProxySource{proxies: append([]string(nil), proxies...)}
}

// Proxy implements ProxySource
func (s *ListProxySource) Proxy(context.Context) (string, error) {
	if len(s.proxies) == 0 {
		return "", nil
	}
	return s.proxies[rand.IntN(len(s.proxies))], nil
}

// RedisProxySource reads a random member of a Redis set, so a pool can be
// refreshed by another process without restarting workers
type RedisProxySource struct {
	client redis.Cmdable
	key    string
}

// NewRedisProxySource creates a Redis backed source
func NewRedisProxySource(client redis.Cmdable, key string) *RedisProxySource {
	return &RedisProxySource{client: client, key: key}
}

// Proxy implements ProxySource. An empty or missing set yields no proxy.
func (s *RedisProxySource) Proxy(ctx context.Context) (string, error) {
	proxy, err := s.client.SRandMember(ctx, s.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read proxy from %s: %w", s.key, err)
	}
	return proxy, nil
}

// NewProxySource builds the source selected by cfg.ProxySource
func NewProxySource(cfg config.ProviderConfig, resources *config.ProviderResources, client redis.Cmdable) (ProxySource, error) {
	switch cfg.ProxySource {
	case "", ProxySourceEmpty:
		return EmptyProxySource{}, nil
	case ProxySourceList:
		if resources == nil {
			return NewListProxySource(nil), nil
		}
		return NewListProxySource(resources.Proxies), nil
	case ProxySourceRedis:
		if client == nil {
			return nil, stderrors.New("redis proxy source requires a redis client")
		}
		return NewRedisProxySource(client, cfg.ProxyRedisKey), nil
	default:
		return nil, fmt.Errorf("unknown proxy source %q", cfg.ProxySource)
	}
}
