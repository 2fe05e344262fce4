package redislock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/event-booking/internal/scheduler"
)

func newTestLocker(t *testing.T) (*Locker, *redis.Client) {
	t.Helper()
	addr := os.Getenv("SCHEDULER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCHEDULER_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "test-lock:" + t.Name() + ":"
	return New(client, Options{TTL: 2 * time.Second, RetryInterval: 5 * time.Millisecond, KeyPrefix: prefix}), client
}

func TestLocker_ExclusiveWithinTTL(t *testing.T) {
	locker, client := newTestLocker(t)
	key := scheduler.Key{Kind: scheduler.KindRoom, ID: "r1"}

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	n, err := client.Exists(context.Background(), locker.opts.KeyPrefix+key.String()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	unlock2, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock2()
}

func TestLocker_ReleaseKeepsForeignToken(t *testing.T) {
	locker, client := newTestLocker(t)
	key := scheduler.Key{Kind: scheduler.KindEmployee, ID: "e1"}
	name := locker.opts.KeyPrefix + key.String()

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, client.Set(context.Background(), name, "someone-else", time.Second).Err())
	unlock()

	value, err := client.Get(context.Background(), name).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
	require.NoError(t, client.Del(context.Background(), name).Err())
}
