package sandbox

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerSpec describes the container created for one run.
type ContainerSpec struct {
	Name    string
	Image   string
	Cmd     []string
	HostDir string
	WorkDir string
	// MemoryBytes of 0 leaves the container without a memory ceiling.
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	Network     string
}

// Stdio wires a container's standard streams.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// ExitState is how a container ended.
type ExitState struct {
	ExitCode  int
	OOMKilled bool
}

// Runtime creates and controls containers.
type Runtime interface {
	// Start creates the container, attaches stdio and starts it.
	Start(ctx context.Context, spec ContainerSpec, stdio Stdio) (string, error)
	// Wait blocks until the container stops and its output is drained.
	Wait(ctx context.Context, id string) (ExitState, error)
	Kill(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// DockerRuntime is a Runtime backed by the docker engine API.
type DockerRuntime struct {
	cli *client.Client

	mu      sync.Mutex
	streams map[string]chan error
}

// NewDockerRuntime connects to the engine from the environment, or to host
// when it is set.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client failed: %w", err)
	}
	return &DockerRuntime{cli: cli, streams: make(map[string]chan error)}, nil
}

// Ping checks the engine is reachable.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

// Close releases the client.
func (d *DockerRuntime) Close() error {
	return d.cli.Close()
}

// Start implements Runtime.
func (d *DockerRuntime) Start(ctx context.Context, spec ContainerSpec, stdio Stdio) (string, error) {
	resources := container.Resources{NanoCPUs: spec.NanoCPUs}
	if spec.MemoryBytes > 0 {
		resources.Memory = spec.MemoryBytes
		resources.MemorySwap = spec.MemoryBytes
	}
	if spec.PidsLimit > 0 {
		limit := spec.PidsLimit
		resources.PidsLimit = &limit
	}
	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		WorkingDir:   spec.WorkDir,
		OpenStdin:    true,
		StdinOnce:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{
		Binds:       []string{spec.HostDir + ":" + spec.WorkDir},
		NetworkMode: container.NetworkMode(spec.Network),
		Resources:   resources,
		SecurityOpt: []string{"no-new-privileges"},
	}, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container failed: %w", err)
	}

	attach, err := d.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		_ = d.Remove(context.WithoutCancel(ctx), resp.ID)
		return "", fmt.Errorf("attach container failed: %w", err)
	}

	drained := make(chan error, 1)
	go func() {
		defer attach.Close()
		_, err := stdcopy.StdCopy(stdio.Stdout, stdio.Stderr, attach.Reader)
		drained <- err
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		attach.Close()
		_ = d.Remove(context.WithoutCancel(ctx), resp.ID)
		return "", fmt.Errorf("start container failed: %w", err)
	}

	go func() {
		if stdio.Stdin != nil {
			_, _ = io.Copy(attach.Conn, stdio.Stdin)
		}
		_ = attach.CloseWrite()
	}()

	d.mu.Lock()
	d.streams[resp.ID] = drained
	d.mu.Unlock()
	return resp.ID, nil
}

// Wait implements Runtime.
func (d *DockerRuntime) Wait(ctx context.Context, id string) (ExitState, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return ExitState{}, fmt.Errorf("wait container failed: %w", err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return ExitState{}, fmt.Errorf("wait container failed: %s", status.Error.Message)
		}
	}

	d.mu.Lock()
	drained := d.streams[id]
	delete(d.streams, id)
	d.mu.Unlock()
	if drained != nil {
		select {
		case <-drained:
		case <-ctx.Done():
			return ExitState{}, ctx.Err()
		}
	}

	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ExitState{}, fmt.Errorf("inspect container failed: %w", err)
	}
	if info.State == nil {
		return ExitState{}, fmt.Errorf("inspect container failed: no state")
	}
	return ExitState{ExitCode: info.State.ExitCode, OOMKilled: info.State.OOMKilled}, nil
}

// Kill implements Runtime.
func (d *DockerRuntime) Kill(ctx context.Context, id string) error {
	return d.cli.ContainerKill(ctx, id, "SIGKILL")
}

// Remove implements Runtime.
func (d *DockerRuntime) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	delete(d.streams, id)
	d.mu.Unlock()
	return d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}
