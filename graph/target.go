// Package graph implements the build engine's typed dependency graph: the
// Target data model, the BuildNode runtime wrapper, the BuildGraph itself in
// Strict and Deferred validation modes, and its dynamic (runtime-extended)
// variant.
package graph

// TargetId uniquely names a Target within a workspace; it is also the
// Target's id.
type TargetId string

// Kind classifies what a Target produces.
type Kind string

const (
	KindExecutable Kind = "executable"
	KindLibrary    Kind = "library"
	KindTest       Kind = "test"
	KindCustom     Kind = "custom"
)

// Target is the primary unit of work declared by a workspace.
type Target struct {
	Name         TargetId
	Kind         Kind
	Language     string
	Sources      []string
	Dependencies []TargetId
	Outputs      []string
	Config       map[string]string
}

// Id returns the target's identifier, which is simply its name.
func (t *Target) Id() TargetId {
	return t.Name
}
