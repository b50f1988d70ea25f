package invoker

import (
	"context"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"k8s.io/klog/v2"
)

// Invoker runs commands inside a node service through the backend, decoding the JSON output
// and retrying transient failures. Every attempt is a real execution, so only commands that
// are safe to repeat should be routed through it.
type Invoker struct {
	backend backend.Backend
	retrier *Retrier
}

func New(b backend.Backend, retrier *Retrier) *Invoker {
	if retrier == nil {
		retrier = NewRetrier(DefaultPolicy())
	}
	return &Invoker{
		backend: b,
		retrier: retrier,
	}
}

// Invoke executes cmd in the given service of node index. Keys listed in required must be
// present in the decoded result, otherwise the attempt counts as failed.
func (i *Invoker) Invoke(ctx context.Context, index int, service backend.ServiceType, cmd string, required ...string) (Result, error) {
	raw := func(ctx context.Context) ([]byte, error) {
		klog.V(2).Infof("exec on %s: %s", i.backend.ContainerName(index, service), cmd)
		return i.backend.Exec(ctx, index, service, cmd)
	}
	return i.retrier.Wrap(cmd, DecodeJSON(raw, required...))(ctx)
}
