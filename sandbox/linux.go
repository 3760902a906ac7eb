//go:build linux

package sandbox

import (
	"context"
	"os/exec"
	"syscall"
)

// LinuxExecutor runs commands in a new user and mount namespace, adding a
// fresh network namespace (CLONE_NEWNET) when the spec is network-hermetic.
// No bind mounts are set up, so the command sees the host filesystem rather
// than only the spec's input, output and temp paths.
type LinuxExecutor struct{}

func newPlatformExecutor() Executor { return LinuxExecutor{} }

// Execute implements Executor.
func (LinuxExecutor) Execute(ctx context.Context, spec *Spec, command []string, cwd string) (ExecutionOutput, error) {
	env := buildEnv(spec)

	flags := syscall.CLONE_NEWNS | syscall.CLONE_NEWUSER
	if spec.Network.IsHermetic {
		flags |= syscall.CLONE_NEWNET
	}

	out, err := runPlain(ctx, command, cwd, env, func(cmd *exec.Cmd) {
		cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: uintptr(flags)}
	})
	out.Hermetic = spec.Network.IsHermetic
	return out, err
}
