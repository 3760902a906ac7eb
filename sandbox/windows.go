//go:build windows

package sandbox

import (
	"context"
	"os/exec"
)

// WindowsExecutor runs commands as plain child processes. It creates no Job
// Object, so the process tree is not killed as a unit and the process
// policy's KillOnParentExit is not enforced.
type WindowsExecutor struct{}

func newPlatformExecutor() Executor { return WindowsExecutor{} }

// Execute implements Executor.
func (WindowsExecutor) Execute(ctx context.Context, spec *Spec, command []string, cwd string) (ExecutionOutput, error) {
	env := buildEnv(spec)

	out, err := runPlain(ctx, command, cwd, env, func(cmd *exec.Cmd) {
		// No SysProcAttr or Job Object is attached to cmd.
	})
	// Windows has no namespace-based filesystem/network isolation comparable
	// to Linux's, so hermeticity can only be claimed when no network access
	// is requested and outputs are verified after the fact.
	out.Hermetic = spec.Network.IsHermetic
	return out, err
}
