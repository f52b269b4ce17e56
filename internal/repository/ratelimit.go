package repository

import (
	"context"
	"sync"

	"demoki/internal/config"

	"golang.org/x/time/rate"
)

// RateLimiter answers whether a caller (keyed by remote address) may
// run one more request right now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryRateLimiter keeps a token bucket per key in process memory.
// Suitable for a single instance; use the Redis limiter when several
// replicas share the quota.
type MemoryRateLimiter struct {
	cfg      config.RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func NewMemoryRateLimiter(cfg config.RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{cfg: cfg}
}

func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return m.getLimiter(key).Allow(), nil
}

func (m *MemoryRateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := m.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := m.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(m.cfg.RPS), burst)
	if actual, loaded := m.limiters.LoadOrStore(key, lim); loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}
