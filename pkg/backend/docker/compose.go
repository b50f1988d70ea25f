package docker

import (
	"bytes"
	"context"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/tarutil"
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

const DockerCLI = "docker"

// Compose is a backend.Backend for nodes running as docker compose services. Commands go
// through a Runner; status comes from the engine API when a SocketClient is set.
type Compose struct {
	project string
	runner  Runner
	socket  *SocketClient
}

var _ backend.Backend = &Compose{}

type ComposeOption func(c *Compose)

func WithSocketClient(socket *SocketClient) ComposeOption {
	return func(c *Compose) {
		c.socket = socket
	}
}

func NewCompose(project string, runner Runner, opts ...ComposeOption) *Compose {
	c := &Compose{
		project: project,
		runner:  runner,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compose) ContainerName(index int, service backend.ServiceType) string {
	return fmt.Sprintf("%s-%s-%06d", c.project, service, index)
}

func (c *Compose) Exec(ctx context.Context, index int, service backend.ServiceType, cmd string) ([]byte, error) {
	container := c.ContainerName(index, service)
	out, err := c.runner.Run(ctx, DockerCLI, execArgs(container, cmd)...)
	if err != nil {
		return nil, backend.NewError("exec", container, err)
	}
	return out, nil
}

func (c *Compose) GetFile(ctx context.Context, index int, service backend.ServiceType, path string) ([]byte, error) {
	container := c.ContainerName(index, service)
	out, err := c.runner.Run(ctx, DockerCLI, copyArgs(container, path)...)
	if err != nil {
		return nil, backend.NewError("get-file", container, err)
	}
	data, err := tarutil.ExtractedByName(bytes.NewReader(out), path)
	if err != nil {
		return nil, backend.NewError("get-file", container, err)
	}
	return data, nil
}

func (c *Compose) GetStatus(ctx context.Context, index int, service backend.ServiceType) (backend.RunningStatus, error) {
	container := c.ContainerName(index, service)
	if c.socket != nil {
		inspect, err := c.socket.ContainerInspect(ctx, container)
		if errors.Is(err, ErrContainerNotFound) {
			return backend.StatusPending, nil
		}
		if err != nil {
			return backend.StatusUnknown, backend.NewError("status", container, err)
		}
		if inspect.State == nil {
			return backend.StatusUnknown, nil
		}
		return stateToStatus(inspect.State.Status, inspect.State.ExitCode), nil
	}

	out, err := c.runner.Run(ctx, DockerCLI, inspectArgs(container)...)
	if err != nil {
		if isNoSuchContainer(out) {
			return backend.StatusPending, nil
		}
		return backend.StatusUnknown, backend.NewError("status", container, err)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return backend.StatusUnknown, backend.NewError("status", container, errors.Errorf("unexpected inspect output %q", string(out)))
	}
	exitCode, err := strconv.Atoi(fields[1])
	if err != nil {
		return backend.StatusUnknown, backend.NewError("status", container, errors.Wrapf(err, "parse exit code %q", fields[1]))
	}
	return stateToStatus(fields[0], exitCode), nil
}

// Info reports the docker daemon behind the socket client, if one is configured.
func (c *Compose) Info(ctx context.Context) (*Info, error) {
	if c.socket == nil {
		return nil, errors.New("no docker socket configured")
	}
	return c.socket.Info(ctx)
}

func stateToStatus(state string, exitCode int) backend.RunningStatus {
	switch state {
	case "created", "restarting":
		return backend.StatusPending
	case "running", "paused":
		return backend.StatusRunning
	case "exited":
		if exitCode == 0 {
			return backend.StatusStopped
		}
		return backend.StatusFailed
	case "dead":
		return backend.StatusFailed
	case "removing":
		return backend.StatusStopped
	default:
		return backend.StatusUnknown
	}
}
