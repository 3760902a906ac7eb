// Package dockeradapter implements a sandbox.Executor that runs actions
// inside a disposable Docker container, giving filesystem and network
// isolation on hosts without native namespace support. Adapted from the
// Docker client wiring (CtxCli, ContainerRun, CopyToContainer) used
// elsewhere in the codebase for container lifecycle management.
package dockeradapter

import (
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/sandbox"
)

// Adapter runs sandboxed commands as short-lived Docker containers.
type Adapter struct {
	cli   *client.Client
	image string
}

// New connects to the Docker daemon at socket (empty uses the environment
// default, e.g. DOCKER_HOST or the local Unix socket) and configures image
// as the base image every action runs in.
func New(socket, image string) (*Adapter, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv, client.WithAPIVersionNegotiation())
	if socket != "" {
		opts = append(opts, client.WithHost(socket))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindEnvironment, err, "connecting to Docker daemon")
	}
	return &Adapter{cli: cli, image: image}, nil
}

// Execute implements sandbox.Executor: it creates a container with the
// spec's inputs bind-mounted read-only, outputs and temp bind-mounted
// read-write, network disabled when the spec is hermetic, runs command, and
// captures combined output.
func (a *Adapter) Execute(ctx context.Context, spec *sandbox.Spec, command []string, cwd string) (sandbox.ExecutionOutput, error) {
	start := time.Now()

	mounts := buildMounts(spec)
	networkMode := "bridge"
	if spec.Network.IsHermetic {
		networkMode = "none"
	}

	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:        a.image,
			Cmd:          command,
			Env:          flattenEnv(spec),
			WorkingDir:   cwd,
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			Mounts:      mounts,
			NetworkMode: container.NetworkMode(networkMode),
			AutoRemove:  false,
		},
		&network.NetworkingConfig{},
		nil,
		"forge-sandbox-"+uuid.New().String(),
	)
	if err != nil {
		return sandbox.ExecutionOutput{}, bldrerr.Wrap(bldrerr.KindSystem, err, "creating sandbox container")
	}
	defer a.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return sandbox.ExecutionOutput{}, bldrerr.Wrap(bldrerr.KindSystem, err, "starting sandbox container")
	}

	statusCh, errCh := a.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			return sandbox.ExecutionOutput{}, bldrerr.Wrap(bldrerr.KindSystem, err, "waiting for sandbox container")
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	logs, err := a.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return sandbox.ExecutionOutput{}, bldrerr.Wrap(bldrerr.KindSystem, err, "reading sandbox container logs")
	}
	defer logs.Close()
	output, err := io.ReadAll(logs)
	if err != nil {
		return sandbox.ExecutionOutput{}, bldrerr.Wrap(bldrerr.KindSystem, err, "draining sandbox container logs")
	}

	return sandbox.ExecutionOutput{
		ExitCode:   exitCode,
		Stdout:     output,
		DurationMs: time.Since(start).Milliseconds(),
		Hermetic:   spec.Network.IsHermetic,
	}, nil
}

// buildMounts translates a Spec's path sets into Docker bind mounts:
// inputs read-only, outputs and temp read-write.
func buildMounts(spec *sandbox.Spec) []mount.Mount {
	var mounts []mount.Mount
	for _, p := range spec.Inputs.Paths() {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: p, Target: p, ReadOnly: true})
	}
	for _, p := range spec.Outputs.Paths() {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: p, Target: p})
	}
	for _, p := range spec.Temp.Paths() {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: p, Target: p})
	}
	return mounts
}

func flattenEnv(spec *sandbox.Spec) []string {
	env := make([]string, 0)
	for k, v := range exportedEnv(spec) {
		env = append(env, k+"="+v)
	}
	return env
}

// exportedEnv is a package-local helper standing in for Spec.resolvedEnv,
// which is unexported; dockeradapter only needs the final name/value pairs,
// rebuilt here from the ordered Environment slice with the same
// last-write-wins semantics.
func exportedEnv(spec *sandbox.Spec) map[string]string {
	out := make(map[string]string, len(spec.Environment))
	for _, e := range spec.Environment {
		out[e.Name] = e.Value
	}
	sandbox.ApplyDeterminismEnv(out)
	return out
}

// Close releases the underlying Docker client.
func (a *Adapter) Close() error {
	return a.cli.Close()
}
