// Package ratelimit provides a provider request budget shared across worker
// processes through Redis and a pacer that backs off after provider failures.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default budget configuration values.
const (
	DefaultWindow    = time.Minute
	DefaultKeyPrefix = "budget:"
)

// consumeScript atomically checks and increments the window counter.
// Returns {allowed, used}.
var consumeScript = redis.NewScript(`
	local key = KEYS[1]
	local n = tonumber(ARGV[1])
	local budget = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	local used = tonumber(redis.call('GET', key) or '0')
	if used + n > budget then
		return {0, used}
	end

	redis.call('INCRBY', key, n)
	redis.call('EXPIRE', key, ttl)
	return {1, used + n}
`)

// BudgetConfig holds configuration for a request budget.
type BudgetConfig struct {
	// Redis is the client used for cross-process coordination. Required.
	Redis redis.Cmdable

	// Name identifies the budget, e.g. the provider name.
	Name string

	// Budget is the number of requests allowed per window. Required.
	Budget int

	// Window is the fixed window length. Default: 1m.
	Window time.Duration

	// KeyPrefix prefixes the Redis keys. Default: "budget:".
	KeyPrefix string
}

// Validate checks if the configuration is valid.
func (c *BudgetConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("budget name is required")
	}
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	if c.Window < 0 {
		return errors.New("window cannot be negative")
	}
	return nil
}

// RequestBudget caps the number of requests made per fixed window.
type RequestBudget struct {
	redis     redis.Cmdable
	name      string
	budget    int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewRequestBudget creates a budget from the given configuration.
func NewRequestBudget(cfg *BudgetConfig) (*RequestBudget, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RequestBudget{
		redis:     cfg.Redis,
		name:      cfg.Name,
		budget:    cfg.Budget,
		window:    window,
		keyPrefix: prefix,
		now:       time.Now,
	}, nil
}

func (b *RequestBudget) windowStart() time.Time {
	return b.now().Truncate(b.window)
}

func (b *RequestBudget) key(windowStart time.Time) string {
	return b.keyPrefix + b.name + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// untilNextWindow returns the time until the next window starts plus a small buffer.
func (b *RequestBudget) untilNextWindow(windowStart time.Time) time.Duration {
	wait := windowStart.Add(b.window).Sub(b.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// TryConsume attempts to take n requests from the current window.
// When denied it returns the suggested wait before retrying.
// A Redis failure denies the request and is returned as an error.
func (b *RequestBudget) TryConsume(ctx context.Context, n int) (bool, time.Duration, error) {
	if n <= 0 {
		return true, 0, nil
	}

	start := b.windowStart()
	ttlSeconds := int((2 * b.window).Seconds())
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	result, err := consumeScript.Run(ctx, b.redis, []string{b.key(start)}, n, b.budget, ttlSeconds).Int64Slice()
	if err != nil {
		return false, b.untilNextWindow(start), fmt.Errorf("budget %s: %w", b.name, err)
	}

	if result[0] != 1 {
		return false, b.untilNextWindow(start), nil
	}
	return true, 0, nil
}

// Wait blocks until one request fits in the budget or ctx is done.
func (b *RequestBudget) Wait(ctx context.Context) error {
	for {
		allowed, wait, err := b.TryConsume(ctx, 1)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Used returns the number of requests consumed in the current window.
func (b *RequestBudget) Used(ctx context.Context) (int, error) {
	used, err := b.redis.Get(ctx, b.key(b.windowStart())).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("budget %s: %w", b.name, err)
	}
	return used, nil
}

// Budget returns the configured requests per window.
func (b *RequestBudget) Budget() int {
	return b.budget
}
