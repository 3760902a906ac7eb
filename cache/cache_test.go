package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/cache/eviction"
	"forge.evalgo.org/graph"
)

func writeTempSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestTargetCacheIdempotentUnderUnchangedInputs(t *testing.T) {
	dir := t.TempDir()
	src := writeTempSource(t, dir, "main.go", "package main")

	tc := NewTargetCache(eviction.New(eviction.Params{}))
	require.NoError(t, tc.Update("a", []string{src}, nil, "hash-1", nil))

	hit, err := tc.IsCached("a", []string{src}, nil)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestTargetCacheInvalidatesOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	src := writeTempSource(t, dir, "main.go", "package main")

	tc := NewTargetCache(eviction.New(eviction.Params{}))
	require.NoError(t, tc.Update("a", []string{src}, nil, "hash-1", nil))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, os.WriteFile(src, []byte("package main // changed"), 0o644))

	hit, err := tc.IsCached("a", []string{src}, nil)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTargetCacheTransitiveInvalidation(t *testing.T) {
	dir := t.TempDir()
	src := writeTempSource(t, dir, "base.go", "package base")

	tc := NewTargetCache(eviction.New(eviction.Params{}))
	require.NoError(t, tc.Update("base", []string{src}, nil, "base-hash-1", nil))
	require.NoError(t, tc.Update("middle", nil, map[graph.TargetId]string{"base": "base-hash-1"}, "middle-hash-1", nil))

	hit, err := tc.IsCached("middle", nil, map[graph.TargetId]string{"base": "base-hash-1"})
	require.NoError(t, err)
	assert.True(t, hit)

	// base rebuilds with a new hash; middle's stored dep hash is now stale.
	hit, err = tc.IsCached("middle", nil, map[graph.TargetId]string{"base": "base-hash-2"})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestActionCacheNeverHitsOnFailure(t *testing.T) {
	ac := NewActionCache(eviction.New(eviction.Params{}))
	id := ActionId{TargetId: "a", Kind: ActionCompile, InputHash: "h1"}
	ac.RecordAction(id, nil, map[string]string{"flag": "x"}, false)

	hit, err := ac.IsActionCached(id, map[string]string{"flag": "x"})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	key := []byte("signing-key")

	tc := NewTargetCache(eviction.New(eviction.Params{}))
	require.NoError(t, tc.Update("a", nil, nil, "hash-1", nil))
	require.NoError(t, tc.SaveTargetCache(path, key))

	loaded, err := LoadTargetCache(path, key, eviction.New(eviction.Params{}))
	require.NoError(t, err)
	hash, ok := loaded.BuildHash("a")
	require.True(t, ok)
	assert.Equal(t, "hash-1", hash)
}

func TestCorruptCacheResetsToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a real cache file at all, random garbage"), 0o644))

	loaded, err := LoadTargetCache(path, []byte("key"), eviction.New(eviction.Params{}))
	assert.Error(t, err)
	assert.Equal(t, 0, loaded.GetStats().TotalEntries)

	require.NoError(t, loaded.Update("a", nil, nil, "hash-1", nil))
	hit, err := loaded.IsCached("a", nil, nil)
	require.NoError(t, err)
	assert.True(t, hit)
}
