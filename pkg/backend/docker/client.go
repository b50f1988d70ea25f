package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const DefaultSocket = "/var/run/docker.sock"

var ErrContainerNotFound = errors.New("container not found")

// SocketClient talks to the docker engine API over its unix socket.
type SocketClient struct {
	socket  string
	timeout time.Duration
	cli     *http.Client
}

func NewSocketClient(socket string, timeout time.Duration) (*SocketClient, error) {
	tr := new(http.Transport)
	tr.DisableCompression = true
	tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "unix", socket)
	}

	client := &http.Client{Transport: tr, Timeout: timeout}

	if _, ok := client.Transport.(http.RoundTripper); !ok {
		return nil, fmt.Errorf("unable to verify tls configuration, invalid transport: %v", client.Transport)
	}
	return &SocketClient{
		socket:  socket,
		timeout: timeout,
		cli:     client,
	}, nil
}

func (c *SocketClient) get(ctx context.Context, path string, reply interface{}) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return errors.Wrapf(err, "create request %s", path)
	}
	req.URL.Scheme = "http"
	req.URL.Host = "docker"

	resp, err := c.cli.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request %s via %s", path, c.socket)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read response of %s", path)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrContainerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("docker api %s: status %d: %s", path, resp.StatusCode, string(b))
	}
	if err := json.Unmarshal(b, reply); err != nil {
		return errors.Wrapf(err, "unable unmarshal response of %s", path)
	}
	return nil
}

// Info 检查 docker daemon 是否在运行，参考：curl -XGET --unix-socket /var/run/docker.sock http://localhost/info
func (c *SocketClient) Info(ctx context.Context) (*Info, error) {
	info := &Info{}
	if err := c.get(ctx, "/info", info); err != nil {
		return nil, err
	}
	return info, nil
}

// ContainerInspect returns ErrContainerNotFound when no container has the given name.
func (c *SocketClient) ContainerInspect(ctx context.Context, name string) (*ContainerJSON, error) {
	container := &ContainerJSON{}
	if err := c.get(ctx, "/containers/"+url.PathEscape(name)+"/json", container); err != nil {
		return nil, err
	}
	return container, nil
}
