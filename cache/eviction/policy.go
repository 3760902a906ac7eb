// Package eviction implements the pure LRU + age + size eviction policy
// shared by the target and action caches. It performs no I/O: callers apply
// the returned eviction list under their own locks.
package eviction

import (
	"sort"
	"time"
)

// Candidate is a read-only snapshot of one cache entry, keyed by its cache
// key (stringified TargetId or ActionId).
type Candidate struct {
	Key          string
	LastAccessed time.Time
	Size         int64
}

// Params configures a Policy. MaxSize of 0 disables the size bound; MaxAge
// of 0 disables the age bound.
type Params struct {
	MaxEntries int
	MaxSize    int64
	MaxAge     time.Duration
}

// Policy applies Params to compute which entries to evict.
type Policy struct {
	Params Params
	now    func() time.Time
}

// New creates a Policy with the given parameters.
func New(params Params) Policy {
	return Policy{Params: params, now: time.Now}
}

// SelectEvictions computes, in one pass, the keys to evict given the
// current entry snapshot and the (caller-tracked) total size in bytes. The
// passes run in order — expired by age, excess by count, excess by size —
// and the result is deduplicated.
func (p Policy) SelectEvictions(entries []Candidate, currentSize int64) []string {
	now := p.now
	if now == nil {
		now = time.Now
	}
	nowT := now()

	scheduled := make(map[string]struct{})
	var result []string
	schedule := func(key string) {
		if _, ok := scheduled[key]; !ok {
			scheduled[key] = struct{}{}
			result = append(result, key)
		}
	}

	// 1. Expired by age.
	if p.Params.MaxAge > 0 {
		for _, e := range entries {
			if nowT.Sub(e.LastAccessed) > p.Params.MaxAge {
				schedule(e.Key)
			}
		}
	}

	byLRU := make([]Candidate, len(entries))
	copy(byLRU, entries)
	sort.Slice(byLRU, func(i, j int) bool {
		return byLRU[i].LastAccessed.Before(byLRU[j].LastAccessed)
	})

	// 2. Excess by count.
	if p.Params.MaxEntries > 0 {
		remaining := len(entries) - len(scheduled)
		excess := remaining - p.Params.MaxEntries
		for _, e := range byLRU {
			if excess <= 0 {
				break
			}
			if _, already := scheduled[e.Key]; already {
				continue
			}
			schedule(e.Key)
			excess--
		}
	}

	// 3. Excess by size, walking LRU order for entries not already
	// scheduled.
	if p.Params.MaxSize > 0 {
		size := currentSize
		for _, e := range byLRU {
			if size <= p.Params.MaxSize {
				break
			}
			if _, already := scheduled[e.Key]; already {
				size -= e.Size
				continue
			}
			schedule(e.Key)
			size -= e.Size
		}
	}

	return result
}
