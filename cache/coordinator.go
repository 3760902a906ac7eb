package cache

import (
	"forge.evalgo.org/cache/eviction"
	"forge.evalgo.org/cas"
	"forge.evalgo.org/graph"
)

// Publisher receives cache lifecycle events. It mirrors the shape
// telemetry.Publisher implements, kept as a narrow local interface so this
// package does not import telemetry (which may, in turn, want to report on
// caches — keeping the dependency one-directional).
type Publisher interface {
	Publish(eventType string, fields map[string]any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, map[string]any) {}

// Coordinator is a facade over the Target Cache, the Action Cache, and an
// optional CAS handle, emitting typed cache events to an injected
// publisher.
type Coordinator struct {
	Targets   *TargetCache
	Actions   *ActionCache
	Blobs     *cas.Store
	publisher Publisher
}

// NewCoordinator builds a Coordinator with fresh caches governed by the
// given eviction parameters. blobs may be nil if the CAS is not in use.
func NewCoordinator(targetParams, actionParams eviction.Params, blobs *cas.Store, publisher Publisher) *Coordinator {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Coordinator{
		Targets:   NewTargetCache(eviction.New(targetParams)),
		Actions:   NewActionCache(eviction.New(actionParams)),
		Blobs:     blobs,
		publisher: publisher,
	}
}

// IsCached delegates to the Target Cache, emitting a cache-hit or cache-miss
// event.
func (co *Coordinator) IsCached(id graph.TargetId, sourcePaths []string, depHashes map[graph.TargetId]string) (bool, error) {
	hit, err := co.Targets.IsCached(id, sourcePaths, depHashes)
	if err != nil {
		return false, err
	}
	if hit {
		co.publisher.Publish("cache.hit", map[string]any{"target": string(id)})
	} else {
		co.publisher.Publish("cache.miss", map[string]any{"target": string(id)})
	}
	return hit, nil
}

// Update delegates to the Target Cache and emits a cache-update event.
func (co *Coordinator) Update(id graph.TargetId, sourcePaths []string, depHashes map[graph.TargetId]string, buildHash string, outputBlobs map[string]string) error {
	if err := co.Targets.Update(id, sourcePaths, depHashes, buildHash, outputBlobs); err != nil {
		return err
	}
	co.publisher.Publish("cache.update", map[string]any{"target": string(id), "hash": buildHash})
	return nil
}

// OutputBlobs delegates to the Target Cache, returning the CAS hash
// recorded for each of id's output paths at its last successful build.
func (co *Coordinator) OutputBlobs(id graph.TargetId) (map[string]string, bool) {
	return co.Targets.OutputBlobs(id)
}

// IsActionCached delegates to the Action Cache, emitting a hit/miss event.
func (co *Coordinator) IsActionCached(id ActionId, metadata map[string]string) (bool, error) {
	hit, err := co.Actions.IsActionCached(id, metadata)
	if err != nil {
		return false, err
	}
	if hit {
		co.publisher.Publish("action_cache.hit", map[string]any{"action": id.String()})
	} else {
		co.publisher.Publish("action_cache.miss", map[string]any{"action": id.String()})
	}
	return hit, nil
}

// RecordAction delegates to the Action Cache.
func (co *Coordinator) RecordAction(id ActionId, outputs []string, metadata map[string]string, success bool) {
	co.Actions.RecordAction(id, outputs, metadata, success)
	co.publisher.Publish("action_cache.update", map[string]any{"action": id.String(), "success": success})
}

// Flush persists both caches to the given paths, signed with key.
func (co *Coordinator) Flush(targetPath, actionPath string, key []byte) error {
	if err := co.Targets.SaveTargetCache(targetPath, key); err != nil {
		return err
	}
	return co.Actions.SaveActionCache(actionPath, key)
}

// Close flushes and releases the coordinator's resources. Caches hold no
// unmanaged handles, so Close is currently equivalent to Flush; it exists
// as a distinct operation so callers don't need to know that.
func (co *Coordinator) Close(targetPath, actionPath string, key []byte) error {
	return co.Flush(targetPath, actionPath, key)
}
