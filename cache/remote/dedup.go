// Package remote implements an optional distributed dedup index backed by
// Redis: multiple forge invocations against the same workspace (e.g. CI
// matrix shards) can check whether another shard has already built a given
// target hash before starting a redundant rebuild. Adapted from the queue
// package's Redis client wiring.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"forge.evalgo.org/bldrerr"
)

// Config configures the dedup index's Redis connection.
type Config struct {
	RedisURL  string
	KeyPrefix string
	// TTL bounds how long a "seen" marker survives; zero means no expiry.
	TTL time.Duration
}

// Index is a Redis-backed shared index of target build hashes already seen
// by some invocation against this workspace.
type Index struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects an Index, verifying connectivity with a ping.
func New(ctx context.Context, cfg Config) (*Index, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindConfig, err, "parsing redis URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "connecting to redis dedup index")
	}

	return &Index{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (idx *Index) key(targetId, buildHash string) string {
	return fmt.Sprintf("%s:seen:%s:%s", idx.prefix, targetId, buildHash)
}

// Seen reports whether buildHash for targetId has already been recorded by
// some invocation. A Network error here is non-fatal for the caller: the
// dedup index is an optimization, not a correctness requirement, so callers
// should treat it as "unknown" (fall through to a local rebuild) rather
// than aborting.
func (idx *Index) Seen(ctx context.Context, targetId, buildHash string) (bool, error) {
	n, err := idx.client.Exists(ctx, idx.key(targetId, buildHash)).Result()
	if err != nil {
		return false, bldrerr.Wrap(bldrerr.KindNetwork, err, "checking dedup index")
	}
	return n > 0, nil
}

// MarkSeen records that buildHash for targetId has now been built.
func (idx *Index) MarkSeen(ctx context.Context, targetId, buildHash string) error {
	if err := idx.client.Set(ctx, idx.key(targetId, buildHash), 1, idx.ttl).Err(); err != nil {
		return bldrerr.Wrap(bldrerr.KindNetwork, err, "marking dedup index")
	}
	return nil
}

// Lock acquires a best-effort distributed lock so two shards don't build
// the same target hash concurrently; it returns a release function. A
// failure to acquire (e.g. another shard holds it) returns ok=false, not an
// error — callers fall back to building locally rather than waiting.
func (idx *Index) Lock(ctx context.Context, targetId, buildHash string, lease time.Duration) (release func(), ok bool, err error) {
	lockKey := idx.key(targetId, buildHash) + ":lock"
	acquired, err := idx.client.SetNX(ctx, lockKey, 1, lease).Result()
	if err != nil {
		return nil, false, bldrerr.Wrap(bldrerr.KindNetwork, err, "acquiring dedup lock")
	}
	if !acquired {
		return nil, false, nil
	}
	return func() { idx.client.Del(context.Background(), lockKey) }, true, nil
}

// Close releases the underlying Redis connection.
func (idx *Index) Close() error {
	return idx.client.Close()
}
