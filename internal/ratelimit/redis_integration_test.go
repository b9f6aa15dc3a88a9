//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ballotbox/internal/ratelimit"
	"ballotbox/pkg/testutil/containers"
)

func TestRedisBucketStoreAllow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.GetRedis(t)
	store := ratelimit.NewRedisBucketStore(rc.Client)

	key := "redis-allow-" + time.Now().Format(time.RFC3339Nano)
	for i := range 3 {
		result, err := store.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
	}

	result, err := store.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	require.NoError(t, store.Reset(ctx, key))

	result, err = store.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisBucketStoreWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.GetRedis(t)
	store := ratelimit.NewRedisBucketStore(rc.Client)

	key := "redis-window-" + time.Now().Format(time.RFC3339Nano)
	result, err := store.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(1100 * time.Millisecond)

	result, err = store.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
