package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to TEST_REDIS_ADDR or skips
func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	c, err := NewClient(addr, os.Getenv("TEST_REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLockLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	ok, err := c.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key))

	ok, err = c.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, key))
}

func TestReleaseLockKeepsForeignLock(t *testing.T) {
	c := newTestClient(t)
	other := NewFromRedis(redis.NewClient(c.GetClient().Options()))
	t.Cleanup(func() { other.Close() })
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	ok, err := other.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key))

	ok, err = c.AcquireLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, other.ReleaseLock(ctx, key))
}

func TestIdempotencyKey(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test-" + uuid.New().String()

	seen, err := c.CheckIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.SetIdempotencyKey(ctx, key, 42, time.Minute))

	seen, err = c.CheckIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)
}
