package lease_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godash/internal/lease"
)

// setupRedis connects to the instance named by TEST_REDIS_ADDR. Tests
// are skipped when the env var is unset.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestNewStoreRejectsNilClient(t *testing.T) {
	_, err := lease.NewStore(nil, lease.Config{})
	assert.ErrorIs(t, err, lease.ErrNilClient)
}

func TestLeaseSingleHolder(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	key := "test_lease_" + uuid.NewString()

	first, err := lease.NewStore(client, lease.Config{Key: key, TTL: 5 * time.Second})
	require.NoError(t, err)
	second, err := lease.NewStore(client, lease.Config{Key: key, TTL: 5 * time.Second})
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second instance cannot take a held lease.
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	holder, err := second.Holder(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, holder)

	// Only the holder can renew or release.
	assert.NoError(t, first.Renew(ctx))
	assert.ErrorIs(t, second.Renew(ctx), lease.ErrNotHeld)
	assert.ErrorIs(t, second.Release(ctx), lease.ErrNotHeld)

	require.NoError(t, first.Release(ctx))

	holder, err = first.Holder(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)

	// Released lease is free for the next instance.
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
}

func TestLeaseExpires(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	key := "test_lease_" + uuid.NewString()

	short, err := lease.NewStore(client, lease.Config{Key: key, TTL: 100 * time.Millisecond})
	require.NoError(t, err)

	ok, err := short.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(200 * time.Millisecond)

	// Lease lapsed; renewal fails and the key is free again.
	assert.ErrorIs(t, short.Renew(ctx), lease.ErrNotHeld)

	next, err := lease.NewStore(client, lease.Config{Key: key, TTL: time.Second})
	require.NoError(t, err)
	ok, err = next.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, next.Release(ctx))
}
