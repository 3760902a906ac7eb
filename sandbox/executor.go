package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"forge.evalgo.org/bldrerr"
)

// ExecutionOutput is the result of running a command under a Spec.
type ExecutionOutput struct {
	ExitCode   int
	Stdout     []byte
	Stderr     []byte
	DurationMs int64
	Hermetic   bool
}

// Executor runs a command inside the isolation described by a Spec.
type Executor interface {
	// Execute runs command in cwd under spec's isolation policy.
	Execute(ctx context.Context, spec *Spec, command []string, cwd string) (ExecutionOutput, error)
}

// NewExecutor returns the platform adapter appropriate for the running GOOS,
// resolved at compile time via build-tagged files (linux.go, darwin.go,
// windows.go, platform_other.go each define newPlatformExecutor). Unsupported
// platforms fall back to NoopExecutor, which runs the command unisolated and
// reports Hermetic: false.
func NewExecutor() Executor {
	return newPlatformExecutor()
}

// runPlain executes command in cwd with env, using the stdlib process
// model shared by every platform adapter; adapters differ only in how they
// wrap the command to achieve isolation. configure, if non-nil, is applied
// to the exec.Cmd before it starts so platform adapters can attach their own
// SysProcAttr.
func runPlain(ctx context.Context, command []string, cwd string, env []string, configure func(*exec.Cmd)) (ExecutionOutput, error) {
	if len(command) == 0 {
		return ExecutionOutput{}, bldrerr.New(bldrerr.KindConfig, "empty command")
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = cwd
	cmd.Env = env
	if configure != nil {
		configure(cmd)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := ExecutionOutput{
		Stdout:     stdout.Bytes(),
		Stderr:     stderr.Bytes(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, bldrerr.Wrap(bldrerr.KindSystem, err, "spawning sandboxed command")
	}
	out.ExitCode = 0
	return out, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// buildEnv applies determinism enforcement (§4.G) on top of the spec's
// resolved environment, then flattens to NAME=VALUE pairs for exec.Cmd.
func buildEnv(spec *Spec) []string {
	env := spec.resolvedEnv()
	ApplyDeterminismEnv(env)

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
