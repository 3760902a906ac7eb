package main

import (
	"context"
	"fmt"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/retry"
	"forge.evalgo.org/sandbox"
)

// retryingExecutor wraps a sandbox.Executor so transient failures (I/O,
// process-spawn, resource exhaustion) go through the retry orchestrator
// while a non-zero exit code — a genuine build failure — is classified
// KindBuild and surfaced immediately, since DefaultPolicies gives KindBuild
// a single attempt.
type retryingExecutor struct {
	exec sandbox.Executor
	orch *retry.Orchestrator
}

func (r retryingExecutor) Execute(ctx context.Context, spec *sandbox.Spec, command []string, cwd string) (sandbox.ExecutionOutput, error) {
	out, err := r.exec.Execute(ctx, spec, command, cwd)
	if err == nil && out.ExitCode == 0 {
		return out, nil
	}
	if err == nil {
		return out, bldrerr.New(bldrerr.KindBuild, fmt.Sprintf("command exited %d", out.ExitCode))
	}

	kind := bldrerr.KindOf(err)
	if !bldrerr.IsRecoverable(err) {
		return out, err
	}

	retryErr := r.orch.Do(ctx, kind, func(ctx context.Context) error {
		var opErr error
		out, opErr = r.exec.Execute(ctx, spec, command, cwd)
		if opErr != nil {
			return opErr
		}
		if out.ExitCode != 0 {
			return bldrerr.New(bldrerr.KindBuild, fmt.Sprintf("command exited %d", out.ExitCode))
		}
		return nil
	})
	return out, retryErr
}
