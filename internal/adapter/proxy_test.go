package adapter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/config"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestListProxySource(t *testing.T) {
	ctx := context.Background()

	empty := NewListProxySource(nil)
	proxy, err := empty.Proxy(ctx)
	require.NoError(t, err)
	assert.Empty(t, proxy)

	proxies := []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080"}
	src := NewListProxySource(proxies)
	for i := 0; i < 20; i++ {
		proxy, err := src.Proxy(ctx)
		require.NoError(t, err)
		assert.Contains(t, proxies, proxy)
	}
}

func TestRedisProxySource(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()
	src := NewRedisProxySource(client, "proxies")

	proxy, err := src.Proxy(ctx)
	require.NoError(t, err)
	assert.Empty(t, proxy, "missing set means no proxy")

	_, err = mr.SAdd("proxies", "http://10.0.0.9:3128")
	require.NoError(t, err)

	proxy, err = src.Proxy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:3128", proxy)

	mr.SetError("ERR proxy pool unavailable")
	_, err = src.Proxy(ctx)
	assert.Error(t, err)
}

func TestNewProxySource(t *testing.T) {
	_, client := setupMiniredis(t)
	resources := &config.ProviderResources{Proxies: []string{"http://10.0.0.1:8080"}}

	tests := []struct {
		name    string
		source  string
		redis   redis.Cmdable
		want    interface{}
		wantErr bool
	}{
		{name: "default", source: "", want: EmptyProxySource{}},
		{name: "empty", source: ProxySourceEmpty, want: EmptyProxySource{}},
		{name: "list", source: ProxySourceList, want: &ListProxySource{}},
		{name: "redis", source: ProxySourceRedis, redis: client, want: &RedisProxySource{}},
		{name: "redis without client", source: ProxySourceRedis, wantErr: true},
		{name: "unknown", source: "socks-farm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.ProviderConfig{ProxySource: tt.source, ProxyRedisKey: "proxies"}
			src, err := NewProxySource(cfg, resources, tt.redis)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}
