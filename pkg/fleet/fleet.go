package fleet

import (
	"context"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/concurrency"
	"github.com/QQGoblin/lnfleet/pkg/invoker"
	"github.com/QQGoblin/lnfleet/pkg/lnnode"
	"github.com/QQGoblin/lnfleet/pkg/lock"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
	"path/filepath"
	"sort"
	"sync"
)

const ManifestFile = "sim.json"

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrNodeBusy    = errors.New("node is busy")
)

// Fleet addresses a set of nodes by index. Mutating commands take a per-node lock so that at
// most one of them runs against a node at a time; a second caller gets ErrNodeBusy instead of
// waiting.
type Fleet struct {
	backend     backend.Backend
	nodes       map[int]*lnnode.Node
	locks       *lock.KeyMutex
	parallelism int
}

// NodeStatus is the state of one node's services.
type NodeStatus struct {
	Index          int
	Hostname       string
	Kind           lnnode.Kind
	Lightning      backend.RunningStatus
	CircuitBreaker backend.RunningStatus
	Err            error
}

func New(b backend.Backend, inv *invoker.Invoker, parallelism int, nodes ...lnnode.Options) (*Fleet, error) {
	if inv == nil {
		inv = invoker.New(b, nil)
	}
	f := &Fleet{
		backend:     b,
		nodes:       make(map[int]*lnnode.Node, len(nodes)),
		locks:       lock.NewKeyMutex(),
		parallelism: parallelism,
	}
	for _, opts := range nodes {
		if _, ok := f.nodes[opts.Index]; ok {
			return nil, errors.Errorf("duplicate node index %d", opts.Index)
		}
		n, err := lnnode.New(b, inv, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", opts.Index)
		}
		f.nodes[opts.Index] = n
	}
	return f, nil
}

func (f *Fleet) Node(index int) (*lnnode.Node, error) {
	n, ok := f.nodes[index]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "index %d", index)
	}
	return n, nil
}

// Nodes returns the nodes sorted by index.
func (f *Fleet) Nodes() []*lnnode.Node {
	nodes := make([]*lnnode.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index() < nodes[j].Index() })
	return nodes
}

func (f *Fleet) acquire(n *lnnode.Node) (func(), error) {
	key := n.Hostname()
	if !f.locks.TryLockKey(key) {
		return nil, errors.Wrapf(ErrNodeBusy, "%s", key)
	}
	return func() { f.locks.UnlockKey(key) }, nil
}

func (f *Fleet) pair(from, to int) (*lnnode.Node, *lnnode.Node, error) {
	if from == to {
		return nil, nil, errors.Errorf("node %d cannot peer with itself", from)
	}
	src, err := f.Node(from)
	if err != nil {
		return nil, nil, err
	}
	dst, err := f.Node(to)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// Connect connects node from to node to.
func (f *Fleet) Connect(ctx context.Context, from, to int) (invoker.Result, error) {
	src, dst, err := f.pair(from, to)
	if err != nil {
		return nil, err
	}
	release, err := f.acquire(src)
	if err != nil {
		return nil, err
	}
	defer release()
	return src.ConnectToPeer(ctx, dst)
}

// OpenChannel funds a channel of amount satoshis from node from to node to.
func (f *Fleet) OpenChannel(ctx context.Context, from, to int, amount int64) (invoker.Result, error) {
	src, dst, err := f.pair(from, to)
	if err != nil {
		return nil, err
	}
	release, err := f.acquire(src)
	if err != nil {
		return nil, err
	}
	defer release()
	return src.OpenChannelTo(ctx, dst, amount)
}

// Status queries every node's services. A failed query is reported in NodeStatus.Err and does
// not stop the others.
func (f *Fleet) Status(ctx context.Context) []NodeStatus {
	nodes := f.Nodes()
	result := make([]NodeStatus, len(nodes))
	wg := concurrency.NewWaitGroup(f.parallelism)
	for i, n := range nodes {
		i, n := i, n
		wg.Go(func() {
			s := NodeStatus{Index: n.Index(), Hostname: n.Hostname(), Kind: n.Kind()}
			s.Lightning, s.Err = n.Status(ctx)
			if s.Err == nil {
				s.CircuitBreaker, s.Err = n.AuxiliaryStatus(ctx)
			}
			result[i] = s
		})
	}
	wg.Wait()
	return result
}

// ExportAll exports the credentials of every node into dir and writes the manifest to
// dir/sim.json. Nodes whose implementation has no credentials to export are skipped. The
// manifest holds the nodes that were exported; failures are returned as an aggregate.
func (f *Fleet) ExportAll(ctx context.Context, fs afero.Fs, dir string) (*lnnode.Manifest, error) {
	manifest := lnnode.NewManifest()
	var (
		mu   sync.Mutex
		errs []error
	)
	wg := concurrency.NewWaitGroup(f.parallelism)
	for _, n := range f.Nodes() {
		n := n
		wg.Go(func() {
			err := f.export(ctx, n, fs, manifest, dir)
			if errors.Is(err, lnnode.ErrExportUnsupported) {
				klog.Infof("skip export of %s: %v", n.Hostname(), err)
				return
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, errors.Wrapf(err, "export %s", n.Hostname()))
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	filename := filepath.Join(dir, ManifestFile)
	if err := manifest.WriteFile(fs, filename); err != nil {
		errs = append(errs, err)
	}
	klog.Infof("export session %s: %d nodes written to %s, %d failed",
		manifest.Session(), len(manifest.Records()), filename, len(errs))
	return manifest, utilerrors.NewAggregate(errs)
}

func (f *Fleet) export(ctx context.Context, n *lnnode.Node, fs afero.Fs, manifest *lnnode.Manifest, dir string) error {
	release, err := f.acquire(n)
	if err != nil {
		return err
	}
	defer release()
	return n.Export(ctx, fs, manifest, dir)
}

func (s NodeStatus) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s\t%s\terror: %v", s.Hostname, s.Kind, s.Err)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s", s.Hostname, s.Kind, s.Lightning, s.CircuitBreaker)
}
