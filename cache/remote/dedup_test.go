package remote

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	idx, err := New(context.Background(), Config{RedisURL: "redis://" + mr.Addr(), KeyPrefix: "forge-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	idx, err := New(context.Background(), Config{RedisURL: "redis://127.0.0.1:1", KeyPrefix: "forge-test"})
	assert.Error(t, err)
	assert.Nil(t, idx)
}

func TestSeenIsFalseUntilMarked(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	seen, err := idx.Seen(ctx, "//lib:widget", "deadbeef")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, idx.MarkSeen(ctx, "//lib:widget", "deadbeef"))

	seen, err = idx.Seen(ctx, "//lib:widget", "deadbeef")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSeenIsScopedPerTargetAndHash(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.MarkSeen(ctx, "//lib:widget", "deadbeef"))

	seen, err := idx.Seen(ctx, "//lib:widget", "other-hash")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = idx.Seen(ctx, "//lib:other", "deadbeef")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	release, ok, err := idx.Lock(ctx, "//lib:widget", "deadbeef", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = idx.Lock(ctx, "//lib:widget", "deadbeef", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a second shard must not acquire the same lock")

	release()

	_, ok, err = idx.Lock(ctx, "//lib:widget", "deadbeef", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "the lock must be acquirable again after release")
}
