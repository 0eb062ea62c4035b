package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLimiterDisabled(t *testing.T) {
	l, err := NewWriteLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, l)

	res, err := l.AllowWrite(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestWriteLimiterRequiresRedis(t *testing.T) {
	_, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1, WriteBurst: 1}}, nil)
	assert.Error(t, err)
}

func TestWriteLimiterExhaustsBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 0.001, WriteBurst: 2}}, client)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := l.AllowWrite(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i)
		assert.Equal(t, 1-i, res.Remaining)
	}
	res, err := l.AllowWrite(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter.Seconds(), 0.0)

	other, err := l.AllowWrite(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	same, err := l.AllowWrite(ctx, " ALICE ")
	require.NoError(t, err)
	assert.False(t, same.Allowed, "principal keys are case-insensitive")
}

func TestWriteLimiterRefills(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// 1000 writes per second, burst 1: the emission interval is one millisecond.
	l, err := NewWriteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1000, WriteBurst: 1}}, client)
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.interval)

	ctx := context.Background()
	res, err := l.AllowWrite(ctx, "crane")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	assert.Eventually(t, func() bool {
		res, err := l.AllowWrite(ctx, "crane")
		return err == nil && res.Allowed
	}, time.Second, 5*time.Millisecond)
}
