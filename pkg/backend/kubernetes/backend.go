package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/tarutil"
	"github.com/pkg/errors"
	"io"
	corev1 "k8s.io/api/core/v1"
	kuberrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	restclient "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	"strings"
	"sync"
)

const (
	DefaultNamespace = "warnet"
	ServiceLabel     = "service"
	NetworkLabel     = "network"
)

// ExecFunc runs command in a pod container and streams its output.
type ExecFunc func(ctx context.Context, pod, container string, command []string, stdout, stderr io.Writer) error

// Backend runs every node service as its own pod; the container inside the pod is named
// after the service.
type Backend struct {
	network   string
	namespace string
	client    kubernetes.Interface
	exec      ExecFunc
}

var _ backend.Backend = &Backend{}

func New(network, namespace string, config *restclient.Config, client kubernetes.Interface) *Backend {
	b := &Backend{
		network:   network,
		namespace: namespace,
		client:    client,
	}
	b.exec = b.spdyExec(config)
	return b
}

// NewWithExec replaces the SPDY transport, mainly for tests.
func NewWithExec(network, namespace string, client kubernetes.Interface, exec ExecFunc) *Backend {
	return &Backend{
		network:   network,
		namespace: namespace,
		client:    client,
		exec:      exec,
	}
}

func (b *Backend) spdyExec(config *restclient.Config) ExecFunc {
	return func(ctx context.Context, pod, container string, command []string, stdout, stderr io.Writer) error {
		req := b.client.CoreV1().RESTClient().Post().
			Resource("pods").
			Name(pod).
			Namespace(b.namespace).
			SubResource("exec").
			VersionedParams(&corev1.PodExecOptions{
				Container: container,
				Command:   command,
				Stdout:    true,
				Stderr:    true,
			}, scheme.ParameterCodec)

		executor, err := remotecommand.NewSPDYExecutor(config, "POST", req.URL())
		if err != nil {
			return errors.Wrapf(err, "create executor for %s", pod)
		}

		done := make(chan error, 1)
		go func() {
			done <- executor.Stream(remotecommand.StreamOptions{
				Stdout: stdout,
				Stderr: stderr,
			})
		}()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Backend) ContainerName(index int, service backend.ServiceType) string {
	return fmt.Sprintf("%s-%s-%06d", b.network, service, index)
}

// lockedBuffer is written by the stream goroutine, which may outlive a cancelled exec.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) Bytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.buf.Bytes()...)
}

func (l *lockedBuffer) String() string {
	return string(l.Bytes())
}

func (b *Backend) run(ctx context.Context, op string, index int, service backend.ServiceType, command []string) ([]byte, error) {
	pod := b.ContainerName(index, service)
	var stdout, stderr lockedBuffer
	if err := b.exec(ctx, pod, string(service), command, &stdout, &stderr); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, backend.NewError(op, pod, errors.Wrapf(ctxErr, "exec %s", strings.Join(command, " ")))
		}
		return nil, backend.NewError(op, pod, errors.Wrapf(err, "%s", strings.TrimSpace(stderr.String())))
	}
	return stdout.Bytes(), nil
}

func (b *Backend) Exec(ctx context.Context, index int, service backend.ServiceType, cmd string) ([]byte, error) {
	return b.run(ctx, "exec", index, service, []string{"sh", "-c", cmd})
}

// GetFile archives remotePath inside the container the way `kubectl cp` does.
func (b *Backend) GetFile(ctx context.Context, index int, service backend.ServiceType, remotePath string) ([]byte, error) {
	out, err := b.run(ctx, "get-file", index, service, []string{"tar", "cf", "-", remotePath})
	if err != nil {
		return nil, err
	}
	data, err := tarutil.ExtractedByName(bytes.NewReader(out), remotePath)
	if err != nil {
		return nil, backend.NewError("get-file", b.ContainerName(index, service), err)
	}
	return data, nil
}

func (b *Backend) GetStatus(ctx context.Context, index int, service backend.ServiceType) (backend.RunningStatus, error) {
	name := b.ContainerName(index, service)
	pod, err := b.client.CoreV1().Pods(b.namespace).Get(ctx, name, metav1.GetOptions{})
	if kuberrors.IsNotFound(err) {
		return backend.StatusPending, nil
	}
	if err != nil {
		return backend.StatusUnknown, backend.NewError("status", name, err)
	}
	return phaseToStatus(pod.Status.Phase), nil
}

// Pods returns the phase of every pod of this network, keyed by pod name.
func (b *Backend) Pods(ctx context.Context) (map[string]interface{}, error) {
	return FilterPods(ctx, b.client, b.namespace, fmt.Sprintf("%s=%s", NetworkLabel, b.network), "",
		func(p *corev1.Pod) string { return p.Name },
		func(p *corev1.Pod) interface{} { return phaseToStatus(p.Status.Phase) },
	)
}

func phaseToStatus(phase corev1.PodPhase) backend.RunningStatus {
	switch phase {
	case corev1.PodPending:
		return backend.StatusPending
	case corev1.PodRunning:
		return backend.StatusRunning
	case corev1.PodSucceeded:
		return backend.StatusStopped
	case corev1.PodFailed:
		return backend.StatusFailed
	default:
		return backend.StatusUnknown
	}
}
