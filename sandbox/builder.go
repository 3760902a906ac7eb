package sandbox

import "forge.evalgo.org/pathset"

// Builder constructs a Spec through chainable calls, mirroring the fluent
// client-construction style used elsewhere in the codebase for multi-field
// value objects.
type Builder struct {
	spec *Spec
}

// NewBuilder starts a Spec for the given command, to be run in cwd.
func NewBuilder(command, cwd string) *Builder {
	return &Builder{
		spec: &Spec{
			Inputs:  pathset.New(),
			Outputs: pathset.New(),
			Temp:    pathset.New(),
			command: command,
			workDir: cwd,
		},
	}
}

// Input declares a read-only input path.
func (b *Builder) Input(p string) *Builder {
	b.spec.Inputs.Add(p)
	return b
}

// Output declares a read-write output path.
func (b *Builder) Output(p string) *Builder {
	b.spec.Outputs.Add(p)
	return b
}

// Temp declares a volatile read-write scratch path. Nothing in this package
// clears it between runs.
func (b *Builder) Temp(p string) *Builder {
	b.spec.Temp.Add(p)
	return b
}

// Env appends an environment assignment; later calls for the same name win.
func (b *Builder) Env(name, value string) *Builder {
	b.spec.Environment = append(b.spec.Environment, EnvVar{Name: name, Value: value})
	return b
}

// ClearEnvironment discards every previously declared environment variable.
func (b *Builder) ClearEnvironment() *Builder {
	b.spec.Environment = nil
	return b
}

// WithNetwork sets the network policy.
func (b *Builder) WithNetwork(policy NetworkPolicy) *Builder {
	b.spec.Network = policy
	return b
}

// WithResources sets the resource limits.
func (b *Builder) WithResources(limits ResourceLimits) *Builder {
	b.spec.Resources = limits
	return b
}

// WithProcess sets the process policy.
func (b *Builder) WithProcess(policy ProcessPolicy) *Builder {
	b.spec.Process = policy
	return b
}

// Build validates the accumulated Spec against §3's structural invariants
// and returns it, or the first violated invariant as an error.
func (b *Builder) Build() (*Spec, error) {
	if err := b.spec.validate(); err != nil {
		return nil, err
	}
	return b.spec, nil
}
