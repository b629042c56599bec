package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "github.com/address-ranker/internal/errors"
)

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20

	// limiters of clients that stopped sending requests are dropped after this
	limiterIdleTTL = 10 * time.Minute
)

// RateLimiter hands out one token bucket per client IP
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter. Non-positive values fall back to the defaults.
func NewRateLimiter(requestsPerSecond, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &RateLimiter{
		limiters: cache.New(limiterIdleTTL, limiterIdleTTL),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter returns the limiter of a client, creating it on first use
func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	if v, ok := rl.limiters.Get(client); ok {
		rl.limiters.SetDefault(client, v)
		return v.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.limiters.Add(client, limiter, cache.DefaultExpiration); err != nil {
		// another request created it first
		if v, ok := rl.limiters.Get(client); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// Allow reports whether the client may send a request now
func (rl *RateLimiter) Allow(client string) bool {
	return rl.getLimiter(client).Allow()
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if !rl.Allow(client) {
				w.Header().Set("Retry-After", "1")
				respondServiceError(w, r, apperrors.NewRateLimitError(1))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
