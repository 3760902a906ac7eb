package cache

import (
	"sync"
	"time"

	"forge.evalgo.org/cache/eviction"
	"forge.evalgo.org/graph"
)

// Stats aggregates lookup and capacity statistics for a cache.
type Stats struct {
	TotalEntries  int
	MetadataHits  int64
	ContentHashes int64
	Misses        int64
	Evictions     int64
}

// TargetCache answers "given this key and the current state of the named
// inputs and dependencies, is a prior result still valid?" for whole
// targets, with transitive dependency invalidation.
type TargetCache struct {
	mu      sync.Mutex
	entries map[graph.TargetId]*TargetEntry
	policy  eviction.Policy
	stats   Stats
}

// NewTargetCache creates an empty Target Cache governed by policy.
func NewTargetCache(policy eviction.Policy) *TargetCache {
	return &TargetCache{
		entries: make(map[graph.TargetId]*TargetEntry),
		policy:  policy,
	}
}

// IsCached runs the two-tier lookup algorithm: fast metadata-fingerprint
// path, falling back to content hashing on any mismatch, then a transitive
// check of every dependency's current build hash against the hash recorded
// at insertion time.
func (c *TargetCache) IsCached(id graph.TargetId, sourcePaths []string, depHashes map[graph.TargetId]string) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		c.recordMiss()
		return false, nil
	}

	for _, path := range sourcePaths {
		fp, err := StatFingerprint(path)
		if err != nil {
			return false, err
		}
		stored, known := entry.SourceFinger[path]
		if known && stored == fp {
			c.recordMetadataHit()
			continue
		}

		// Fast path mismatched (or path is new): fall back to content hash.
		hash, err := ContentHashFile(path)
		if err != nil {
			return false, err
		}
		c.recordContentHash()
		if storedHash, known := entry.SourceHashes[path]; !known || storedHash != hash {
			c.recordMiss()
			return false, nil
		}
	}

	for depId, curHash := range depHashes {
		storedHash, known := entry.DepBuildHashes[depId]
		if !known || storedHash != curHash {
			c.recordMiss()
			return false, nil
		}
	}

	return true, nil
}

// Update records a fresh entry for id: fingerprints and content hashes of
// every source path, the current dependency build hashes, the target's own
// build hash, and (if a CAS handle is in use) the per-output-path blob
// hashes needed to materialize a future cache hit. Eviction is applied
// afterward if capacity is now exceeded.
func (c *TargetCache) Update(id graph.TargetId, sourcePaths []string, depHashes map[graph.TargetId]string, buildHash string, outputBlobs map[string]string) error {
	fingers := make(map[string]Fingerprint, len(sourcePaths))
	hashes := make(map[string]string, len(sourcePaths))
	for _, path := range sourcePaths {
		fp, err := StatFingerprint(path)
		if err != nil {
			return err
		}
		hash, err := ContentHashFile(path)
		if err != nil {
			return err
		}
		fingers[path] = fp
		hashes[path] = hash
	}

	depCopy := make(map[graph.TargetId]string, len(depHashes))
	for k, v := range depHashes {
		depCopy[k] = v
	}
	blobCopy := make(map[string]string, len(outputBlobs))
	for k, v := range outputBlobs {
		blobCopy[k] = v
	}

	now := time.Now()
	c.mu.Lock()
	c.entries[id] = &TargetEntry{
		TargetId:       id,
		BuildHash:      buildHash,
		SourceFinger:   fingers,
		SourceHashes:   hashes,
		DepBuildHashes: depCopy,
		OutputBlobs:    blobCopy,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.mu.Unlock()

	c.applyEviction()
	return nil
}

// Invalidate removes id's entry explicitly.
func (c *TargetCache) Invalidate(id graph.TargetId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear removes every entry.
func (c *TargetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[graph.TargetId]*TargetEntry)
}

// BuildHash returns the build hash recorded for id, if any.
func (c *TargetCache) BuildHash(id graph.TargetId) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	return e.BuildHash, true
}

// OutputBlobs returns the CAS hash recorded for each of id's output paths
// at its last successful build, if any.
func (c *TargetCache) OutputBlobs(id graph.TargetId) (map[string]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || len(e.OutputBlobs) == 0 {
		return nil, false
	}
	out := make(map[string]string, len(e.OutputBlobs))
	for k, v := range e.OutputBlobs {
		out[k] = v
	}
	return out, true
}

func (c *TargetCache) applyEviction() {
	c.mu.Lock()
	candidates := make([]eviction.Candidate, 0, len(c.entries))
	var totalSize int64
	for key, e := range c.entries {
		size := int64(len(e.SourceHashes)) * 64 // rough per-entry accounting
		totalSize += size
		candidates = append(candidates, eviction.Candidate{
			Key:          string(key),
			LastAccessed: e.LastAccessedAt,
			Size:         size,
		})
	}
	toEvict := c.policy.SelectEvictions(candidates, totalSize)
	for _, key := range toEvict {
		delete(c.entries, graph.TargetId(key))
	}
	c.stats.Evictions += int64(len(toEvict))
	c.stats.TotalEntries = len(c.entries)
	c.mu.Unlock()
}

func (c *TargetCache) recordMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *TargetCache) recordMetadataHit() {
	c.mu.Lock()
	c.stats.MetadataHits++
	c.mu.Unlock()
}

func (c *TargetCache) recordContentHash() {
	c.mu.Lock()
	c.stats.ContentHashes++
	c.mu.Unlock()
}

// GetStats returns a snapshot of the cache's lookup/capacity statistics.
func (c *TargetCache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.TotalEntries = len(c.entries)
	return s
}
