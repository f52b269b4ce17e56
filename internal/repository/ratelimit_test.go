package repository

import (
	"context"
	"testing"
	"time"

	"demoki/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{RPS: 1, Burst: 2}
	limiter := NewMemoryRateLimiter(cfg)
	ctx := context.Background()

	// Burst allows the first two immediately, the third is denied.
	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Buckets are per key.
	ok, err = limiter.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cfg := config.RateLimitConfig{Requests: 3, Window: time.Minute}
	limiter := NewRedisRateLimiter(client, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, ok)

	// Other keys keep their own window.
	ok, err = limiter.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, ok)

	// The counter resets once the window elapses.
	s.FastForward(2 * time.Minute)
	ok, err = limiter.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiterNilClient(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, config.RateLimitConfig{Requests: 1, Window: time.Minute})
	_, err := limiter.Allow(context.Background(), "client-a")
	assert.Error(t, err)
}
