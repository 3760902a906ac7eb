package sandbox

import (
	"context"
	"os/exec"
)

// NoopExecutor runs the command directly with no isolation. Used on
// platforms without a supported adapter, and directly in tests; it always
// reports Hermetic: false regardless of the requested network policy, since
// nothing enforces it.
type NoopExecutor struct{}

// Execute implements Executor.
func (NoopExecutor) Execute(ctx context.Context, spec *Spec, command []string, cwd string) (ExecutionOutput, error) {
	env := buildEnv(spec)
	out, err := runPlain(ctx, command, cwd, env, func(cmd *exec.Cmd) {})
	out.Hermetic = false
	return out, err
}
