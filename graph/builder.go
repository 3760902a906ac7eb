package graph

// Build constructs a BuildGraph in Strict mode from a flat list of Target
// definitions (as loaded from a workspace file): every target becomes a
// node, then every declared dependency becomes an edge. Declaring a
// dependency on a name absent from targets, or introducing a cycle, is
// rejected per the Strict-mode invariants.
func Build(targets []*Target) (*BuildGraph, error) {
	g := New(Strict)
	for _, t := range targets {
		if _, err := g.AddTarget(t); err != nil {
			return nil, err
		}
	}
	for _, t := range targets {
		for _, dep := range t.Dependencies {
			if err := g.AddDependencyById(t.Id(), dep); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
