package checkpoint

import "forge.evalgo.org/graph"

// Strategy selects how a reloaded checkpoint is applied to a freshly built
// graph before a resumed run dispatches any node.
type Strategy int

const (
	// Smart is the default: like RetryFailed, but also revalidates
	// dependency hashes before trusting a prior success, catching the case
	// where a dependency's output changed without the checkpoint noticing.
	Smart Strategy = iota
	// RetryFailed re-dispatches failed targets and anything transitively
	// depending on them; prior successes are kept.
	RetryFailed
	// SkipFailed keeps both successes and failures as-is; only targets the
	// checkpoint never touched are built.
	SkipFailed
	// RebuildAll discards the checkpoint entirely and starts from scratch.
	RebuildAll
)

// Plan applies ck to g according to strategy, leaving every node that
// should be re-dispatched at StatusPending and every node whose result
// should be trusted at its recorded terminal status.
func Plan(strategy Strategy, ck *Checkpoint, g *graph.BuildGraph, depHash func(graph.TargetId) string) {
	switch strategy {
	case RebuildAll:
		for _, n := range g.Nodes() {
			n.SetStatus(graph.StatusPending)
		}
		return

	case SkipFailed:
		for id, status := range ck.NodeStates {
			n := g.Node(id)
			if n == nil {
				continue
			}
			switch status {
			case graph.StatusSuccess, graph.StatusCached, graph.StatusFailed:
				n.SetStatus(status)
				if h, ok := ck.NodeHashes[id]; ok {
					n.SetHash(h)
				}
			default:
				n.SetStatus(graph.StatusPending)
			}
		}
		return

	case RetryFailed, Smart:
		ck.MergeWith(g)
		if strategy == Smart && depHash != nil {
			revalidateSmart(ck, g, depHash)
		}
		skipTransitiveDependents(ck, g)
	}
}

// revalidateSmart demotes any node the checkpoint recorded as
// Success/Cached back to Pending if one of its dependencies' current
// content hash no longer matches what the checkpoint captured — the
// dependency changed underneath a trusted result.
func revalidateSmart(ck *Checkpoint, g *graph.BuildGraph, depHash func(graph.TargetId) string) {
	for _, n := range g.Nodes() {
		if n.Status() != graph.StatusSuccess && n.Status() != graph.StatusCached {
			continue
		}
		for _, dep := range n.Dependencies() {
			recorded, ok := ck.NodeHashes[dep]
			if !ok {
				continue
			}
			if current := depHash(dep); current != "" && current != recorded {
				n.SetStatus(graph.StatusPending)
				break
			}
		}
	}
}

// skipTransitiveDependents ensures every node reachable from a checkpointed
// Failed target is Pending too, so RetryFailed/Smart rebuild the whole
// affected subtree rather than only the originally-failed leaf.
func skipTransitiveDependents(ck *Checkpoint, g *graph.BuildGraph) {
	var visit func(id graph.TargetId)
	visited := make(map[graph.TargetId]bool)
	visit = func(id graph.TargetId) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := g.Node(id)
		if n == nil {
			return
		}
		n.SetStatus(graph.StatusPending)
		for _, dep := range n.Dependents() {
			visit(dep)
		}
	}
	for _, id := range ck.FailedIds {
		visit(id)
	}
}
