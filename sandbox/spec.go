// Package sandbox implements the hermetic action-isolation contract: the
// declarative Spec (filesystem, network, environment, resource policy),
// its builder, the Executor interface with platform adapters, determinism
// enforcement, and output verification strategies.
package sandbox

import (
	"sort"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/pathset"
)

// NetworkPolicy governs an action's network access.
type NetworkPolicy struct {
	IsHermetic   bool
	AllowHTTP    bool
	AllowHTTPS   bool
	AllowDNS     bool
	AllowedHosts []string
}

// ResourceLimits bounds an action's resource consumption.
type ResourceLimits struct {
	MaxMemoryBytes int64
	MaxDurationMs  int64
	MaxOpenFiles   int
}

// ProcessPolicy governs an action's child-process lifecycle.
type ProcessPolicy struct {
	KillOnParentExit bool
	MaxChildren      int
}

// Spec is the value describing isolation for a single action.
type Spec struct {
	Inputs      *pathset.PathSet
	Outputs     *pathset.PathSet
	Temp        *pathset.PathSet
	Environment []EnvVar
	Network     NetworkPolicy
	Resources   ResourceLimits
	Process     ProcessPolicy

	// command and workDir are filled in by the builder; command feeds the
	// determinism key, workDir does not. Neither is part of the invariant
	// checks below.
	command string
	workDir string
}

// EnvVar is one ordered environment assignment; later entries with the same
// name win (last-write-wins).
type EnvVar struct {
	Name  string
	Value string
}

// resolvedEnv applies last-write-wins over the ordered Environment list.
func (s *Spec) resolvedEnv() map[string]string {
	out := make(map[string]string, len(s.Environment))
	for _, e := range s.Environment {
		out[e.Name] = e.Value
	}
	return out
}

// InputPaths implements verifier.ActionSpec.
func (s *Spec) InputPaths() *pathset.PathSet { return s.Inputs }

// OutputPaths implements verifier.ActionSpec.
func (s *Spec) OutputPaths() *pathset.PathSet { return s.Outputs }

// IsNetworkHermetic implements verifier.ActionSpec.
func (s *Spec) IsNetworkHermetic() bool { return s.Network.IsHermetic }

// DeterminismKey implements verifier.ActionSpec: a stable key string over
// input paths, command, and resolved environment (sorted by name).
func (s *Spec) DeterminismKey() string {
	env := s.resolvedEnv()
	parts := s.command
	for _, p := range s.Inputs.Paths() {
		parts += "|" + p
	}
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts += "|" + k + "=" + env[k]
	}
	return parts
}

// validate checks §3's structural invariants.
func (s *Spec) validate() error {
	if !s.Inputs.Disjoint(s.Outputs) {
		return bldrerr.New(bldrerr.KindConfig, "inputs and outputs overlap")
	}
	if !s.Outputs.Disjoint(s.Temp) {
		return bldrerr.New(bldrerr.KindConfig, "outputs and temp overlap")
	}
	if !s.Inputs.Disjoint(s.Temp) {
		return bldrerr.New(bldrerr.KindConfig, "inputs and temp overlap")
	}
	if s.Network.IsHermetic {
		if s.Network.AllowHTTP || s.Network.AllowHTTPS || len(s.Network.AllowedHosts) > 0 {
			return bldrerr.New(bldrerr.KindConfig, "hermetic network policy must not allow HTTP/HTTPS or named hosts")
		}
	}
	return nil
}
