//go:build darwin

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// DarwinExecutor isolates commands using sandbox-exec profiles generated
// from the spec's input/output/temp path sets.
type DarwinExecutor struct{}

func newPlatformExecutor() Executor { return DarwinExecutor{} }

// Execute implements Executor.
func (d DarwinExecutor) Execute(ctx context.Context, spec *Spec, command []string, cwd string) (ExecutionOutput, error) {
	env := buildEnv(spec)

	profile, err := os.CreateTemp("", "sandbox-profile-*.sb")
	if err != nil {
		return ExecutionOutput{}, err
	}
	defer os.Remove(profile.Name())
	if _, err := profile.WriteString(sandboxProfile(spec)); err != nil {
		profile.Close()
		return ExecutionOutput{}, err
	}
	profile.Close()

	wrapped := append([]string{"sandbox-exec", "-f", profile.Name()}, command...)
	out, err := runPlain(ctx, wrapped, cwd, env, func(cmd *exec.Cmd) {})
	out.Hermetic = spec.Network.IsHermetic
	return out, err
}

// sandboxProfile generates a minimal Seatbelt profile granting read access
// to inputs, write access to outputs and temp, and denying network unless
// the spec explicitly allows it.
func sandboxProfile(spec *Spec) string {
	profile := "(version 1)\n(deny default)\n(allow process-fork)\n"
	for _, p := range spec.Inputs.Paths() {
		profile += fmt.Sprintf("(allow file-read* (subpath %q))\n", p)
	}
	for _, p := range spec.Outputs.Paths() {
		profile += fmt.Sprintf("(allow file-read* file-write* (subpath %q))\n", p)
	}
	for _, p := range spec.Temp.Paths() {
		profile += fmt.Sprintf("(allow file-read* file-write* (subpath %q))\n", p)
	}
	if !spec.Network.IsHermetic {
		profile += "(allow network*)\n"
	}
	return profile
}
