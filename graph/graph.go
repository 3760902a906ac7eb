package graph

import (
	"fmt"
	"sync"

	"forge.evalgo.org/bldrerr"
)

// Mode controls when addDependency validates acyclicity.
type Mode int

const (
	// Strict rejects any edge that would introduce a cycle immediately.
	Strict Mode = iota
	// Deferred accepts all edges; validate() must be called before use.
	Deferred
)

// Stats summarizes a graph's shape.
type Stats struct {
	TotalNodes int
	TotalEdges int
	MaxDepth   int
}

// BuildGraph is a mapping from TargetId to BuildNode plus forward/reverse
// edge indexes. The graph exclusively owns its nodes; edges are always
// represented as id-to-id, never owning pointers (cheap to snapshot for
// checkpointing).
type BuildGraph struct {
	mu    sync.RWMutex
	mode  Mode
	nodes map[TargetId]*BuildNode
}

// New creates an empty graph in the given mode.
func New(mode Mode) *BuildGraph {
	return &BuildGraph{
		mode:  mode,
		nodes: make(map[TargetId]*BuildNode),
	}
}

// Mode returns the graph's current validation mode.
func (g *BuildGraph) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// AddTarget inserts a new node for t. Returns a Config error if the name is
// already taken.
func (g *BuildGraph) AddTarget(t *Target) (*BuildNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[t.Id()]; exists {
		return nil, bldrerr.New(bldrerr.KindConfig, fmt.Sprintf("target %q declared more than once", t.Id()))
	}
	n := newNode(t)
	g.nodes[t.Id()] = n
	return n, nil
}

// Node returns the node for id, or nil if absent.
func (g *BuildGraph) Node(id TargetId) *BuildNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// AddDependency records that `from` depends on `to`, both already present as
// nodes. In Strict mode, an edge that would create a cycle is rejected.
func (g *BuildGraph) AddDependency(from, to TargetId) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromNode, ok := g.nodes[from]
	if !ok {
		return bldrerr.New(bldrerr.KindConfig, fmt.Sprintf("unknown target %q", from))
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return bldrerr.New(bldrerr.KindConfig, fmt.Sprintf("target %q declares unknown dependency %q", from, to))
	}

	if g.mode == Strict {
		if g.reachableLocked(to, from) {
			return bldrerr.New(bldrerr.KindConfig, fmt.Sprintf("adding dependency %s -> %s would create a cycle", from, to))
		}
	}

	fromNode.deps[to] = struct{}{}
	toNode.rdeps[from] = struct{}{}
	g.recomputeDepthsLocked()
	return nil
}

// AddDependencyById is an alias for AddDependency kept for parity with the
// spec's named operation; both ends are looked up by TargetId.
func (g *BuildGraph) AddDependencyById(from, to TargetId) error {
	return g.AddDependency(from, to)
}

// reachableLocked reports whether target is reachable from start by forward
// DFS over the dependency edges (start -> ... -> target). Must be called
// with the lock held.
func (g *BuildGraph) reachableLocked(start, target TargetId) bool {
	if start == target {
		return true
	}
	visited := make(map[TargetId]bool)
	var visit func(TargetId) bool
	visit = func(cur TargetId) bool {
		if cur == target {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		node, ok := g.nodes[cur]
		if !ok {
			return false
		}
		for dep := range node.deps {
			if visit(dep) {
				return true
			}
		}
		return false
	}
	return visit(start)
}

// recomputeDepthsLocked assigns each node its longest-path depth from a
// root (roots have depth 0). Must be called with the lock held. Safe to
// call on a graph with temporary cycles (Deferred mode): depth converges to
// the longest acyclic path found within a bounded number of relaxations.
func (g *BuildGraph) recomputeDepthsLocked() {
	for _, n := range g.nodes {
		n.Depth = 0
	}
	for i := 0; i < len(g.nodes); i++ {
		changed := false
		for _, n := range g.nodes {
			for dep := range n.deps {
				depNode, ok := g.nodes[dep]
				if !ok {
					continue
				}
				if depNode.Depth+1 > n.Depth {
					n.Depth = depNode.Depth + 1
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
}

// Validate runs Kahn's topological sort over the graph and reports a cycle
// as a typed Config error, transitioning a Deferred-mode graph back to
// Strict on success. Calling it on a Strict-mode graph is a harmless no-op
// check.
func (g *BuildGraph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.topologicalSortLocked(); err != nil {
		return err
	}
	g.mode = Strict
	return nil
}

// TopologicalSort returns a permutation of all node ids satisfying
// pos(u) < pos(v) for every edge u -> v, computed via Kahn's algorithm.
func (g *BuildGraph) TopologicalSort() ([]TargetId, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.topologicalSortLocked()
}

func (g *BuildGraph) topologicalSortLocked() ([]TargetId, error) {
	inDegree := make(map[TargetId]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = len(n.deps)
	}

	var ready []TargetId
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]TargetId, 0, len(g.nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)

		for dependent := range g.nodes[cur].rdeps {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, bldrerr.New(bldrerr.KindConfig, "cycle detected: graph is not a DAG")
	}
	return order, nil
}

// GetReadyNodes returns every Pending node whose direct dependencies are all
// Success or Cached. A node with any Failed or Skipped dependency is
// permanently ineligible and is reported separately by the scheduler, never
// returned here.
func (g *BuildGraph) GetReadyNodes() []*BuildNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*BuildNode
	for _, n := range g.nodes {
		if n.Status() != StatusPending {
			continue
		}
		if g.dependenciesReadyLocked(n) {
			ready = append(ready, n)
		}
	}
	return ready
}

func (g *BuildGraph) dependenciesReadyLocked(n *BuildNode) bool {
	for dep := range n.deps {
		depNode, ok := g.nodes[dep]
		if !ok {
			return false
		}
		switch depNode.Status() {
		case StatusSuccess, StatusCached:
			continue
		default:
			return false
		}
	}
	return true
}

// MarkSkipped walks forward from every Failed node, marking every
// transitive dependent Skipped (unless already terminal). Used by the
// scheduler under keep-going failure semantics.
func (g *BuildGraph) MarkSkipped() []TargetId {
	g.mu.Lock()
	defer g.mu.Unlock()

	var skipped []TargetId
	var visit func(TargetId)
	visited := make(map[TargetId]bool)
	visit = func(id TargetId) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return
		}
		for dependent := range n.rdeps {
			depNode := g.nodes[dependent]
			if depNode == nil {
				continue
			}
			if depNode.Status() == StatusPending {
				depNode.SetStatus(StatusSkipped)
				skipped = append(skipped, dependent)
			}
			visit(dependent)
		}
	}

	for id, n := range g.nodes {
		if n.Status() == StatusFailed {
			visit(id)
		}
	}
	return skipped
}

// GetStats summarizes the graph's current shape.
func (g *BuildGraph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{TotalNodes: len(g.nodes)}
	for _, n := range g.nodes {
		stats.TotalEdges += len(n.deps)
		if n.Depth > stats.MaxDepth {
			stats.MaxDepth = n.Depth
		}
	}
	return stats
}

// Nodes returns a snapshot slice of every node in the graph. Order is
// unspecified.
func (g *BuildGraph) Nodes() []*BuildNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*BuildNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Len returns the number of nodes in the graph.
func (g *BuildGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
