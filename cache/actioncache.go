package cache

import (
	"os"
	"sync"
	"time"

	"forge.evalgo.org/cache/eviction"
)

// ActionCache answers the same cache question as TargetCache, but for a
// single sub-step (compile/link/codegen/test) keyed by ActionId. It hashes
// the current metadata map (stable ordering) and verifies declared outputs
// still exist on disk; an entry recorded as failed never counts as a hit.
type ActionCache struct {
	mu      sync.Mutex
	entries map[string]*ActionEntry
	policy  eviction.Policy
	stats   Stats
}

// NewActionCache creates an empty Action Cache governed by policy.
func NewActionCache(policy eviction.Policy) *ActionCache {
	return &ActionCache{
		entries: make(map[string]*ActionEntry),
		policy:  policy,
	}
}

// IsActionCached reports whether id's prior result is still valid: the
// metadata hash must match and every declared output must still exist.
func (c *ActionCache) IsActionCached(id ActionId, metadata map[string]string) (bool, error) {
	key := id.String()

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		c.recordMiss()
		return false, nil
	}

	if !entry.Success {
		c.recordMiss()
		return false, nil
	}

	if entry.MetadataHash != StableMapHash(metadata) {
		c.recordMiss()
		return false, nil
	}

	for _, out := range entry.Outputs {
		if _, err := os.Stat(out); err != nil {
			c.recordMiss()
			return false, nil
		}
	}

	c.recordMetadataHit()
	c.mu.Lock()
	entry.LastAccessedAt = time.Now()
	c.mu.Unlock()
	return true, nil
}

// RecordAction stores (or overwrites) id's result.
func (c *ActionCache) RecordAction(id ActionId, outputs []string, metadata map[string]string, success bool) {
	now := time.Now()
	var size int64
	for _, out := range outputs {
		if info, err := os.Stat(out); err == nil {
			size += info.Size()
		}
	}

	c.mu.Lock()
	c.entries[id.String()] = &ActionEntry{
		Id:             id,
		MetadataHash:   StableMapHash(metadata),
		Outputs:        append([]string(nil), outputs...),
		Success:        success,
		CreatedAt:      now,
		LastAccessedAt: now,
		Size:           size,
	}
	c.mu.Unlock()

	c.applyEviction()
}

// Invalidate removes id's entry explicitly.
func (c *ActionCache) Invalidate(id ActionId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id.String())
}

// Clear removes every entry.
func (c *ActionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*ActionEntry)
}

func (c *ActionCache) applyEviction() {
	c.mu.Lock()
	candidates := make([]eviction.Candidate, 0, len(c.entries))
	var totalSize int64
	for key, e := range c.entries {
		totalSize += e.Size
		candidates = append(candidates, eviction.Candidate{
			Key:          key,
			LastAccessed: e.LastAccessedAt,
			Size:         e.Size,
		})
	}
	toEvict := c.policy.SelectEvictions(candidates, totalSize)
	for _, key := range toEvict {
		delete(c.entries, key)
	}
	c.stats.Evictions += int64(len(toEvict))
	c.stats.TotalEntries = len(c.entries)
	c.mu.Unlock()
}

func (c *ActionCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *ActionCache) recordMetadataHit() {
	c.mu.Lock()
	c.stats.MetadataHits++
	c.mu.Unlock()
}

// GetStats returns a snapshot of the cache's lookup/capacity statistics.
func (c *ActionCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.TotalEntries = len(c.entries)
	return s
}
