package graph

import "sync"

// Discovery is a runtime announcement of new outputs/targets from an
// already-executing node.
type Discovery struct {
	Origin     TargetId
	NewOutputs []string
	NewTargets []*Target
	NewEdges   []Dependency
	Metadata   map[string]string
}

// Dependency names a new dependent edge to add during applyDiscoveries: From
// depends on To.
type Dependency struct {
	From TargetId
	To   TargetId
}

// DynamicBuildGraph wraps a BuildGraph allowing runtime extension via
// discoveries. Discoveries are appended during execution and
// applyDiscoveries performs an all-or-nothing merge: it rejects any merge
// that would introduce a cycle.
type DynamicBuildGraph struct {
	graph *BuildGraph

	mu            sync.Mutex
	discoverable  map[TargetId]struct{}
	pending       []Discovery
}

// NewDynamic wraps g for dynamic extension.
func NewDynamic(g *BuildGraph) *DynamicBuildGraph {
	return &DynamicBuildGraph{
		graph:        g,
		discoverable: make(map[TargetId]struct{}),
	}
}

// Graph returns the underlying graph.
func (d *DynamicBuildGraph) Graph() *BuildGraph {
	return d.graph
}

// RecordDiscovery appends a pending discovery to the journal.
func (d *DynamicBuildGraph) RecordDiscovery(disc Discovery) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, disc)
	d.discoverable[disc.Origin] = struct{}{}
}

// ApplyDiscoveries transactionally merges the pending journal into the
// graph: it provisionally adds every new target and edge, validates
// acyclicity, and on failure rolls back to the pre-merge state. On success
// the journal is drained and the newly added nodes are returned for
// scheduling.
func (d *DynamicBuildGraph) ApplyDiscoveries() ([]*BuildNode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return nil, nil
	}

	var added []*BuildNode
	var addedTargetIds []TargetId
	var addedEdges []Dependency

	rollback := func() {
		g := d.graph
		g.mu.Lock()
		for _, e := range addedEdges {
			if fromNode, ok := g.nodes[e.From]; ok {
				delete(fromNode.deps, e.To)
			}
			if toNode, ok := g.nodes[e.To]; ok {
				delete(toNode.rdeps, e.From)
			}
		}
		for _, id := range addedTargetIds {
			delete(g.nodes, id)
		}
		g.mu.Unlock()
	}

	for _, disc := range d.pending {
		for _, t := range disc.NewTargets {
			n, err := d.graph.AddTarget(t)
			if err != nil {
				rollback()
				return nil, err
			}
			added = append(added, n)
			addedTargetIds = append(addedTargetIds, t.Id())
		}
		for _, e := range disc.NewEdges {
			if err := d.graph.AddDependencyById(e.From, e.To); err != nil {
				rollback()
				return nil, err
			}
			addedEdges = append(addedEdges, e)
		}
	}

	if _, err := d.graph.TopologicalSort(); err != nil {
		rollback()
		return nil, err
	}

	d.pending = nil
	return added, nil
}

// Pending returns the number of discoveries awaiting a merge.
func (d *DynamicBuildGraph) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
