package lnnode

import (
	"context"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/invoker"
	"github.com/pkg/errors"
)

const DefaultNetwork = "regtest"

// Options describe a node. Network is the bitcoin network passed to the control program and
// defaults to regtest; an empty Image selects the implementation's default image.
type Options struct {
	Index          int
	Kind           Kind
	Network        string
	Image          string
	CircuitBreaker bool
}

// Peer is what a node needs to know about another node to connect or open a channel to it.
type Peer interface {
	Pubkey(ctx context.Context) (string, error)
	Hostname() string
}

// Node controls one Lightning node running as a service of the orchestration backend.
// Lifecycle state is owned by the backend; the node only caches its identity.
type Node struct {
	index          int
	impl           *implementation
	network        string
	image          string
	circuitBreaker bool
	hostname       string

	backend  backend.Backend
	invoker  *invoker.Invoker
	identity IdentityCache
}

var _ Peer = &Node{}

func New(b backend.Backend, inv *invoker.Invoker, opts Options) (*Node, error) {
	impl, err := lookup(opts.Kind)
	if err != nil {
		return nil, err
	}
	if opts.Index < 0 {
		return nil, errors.Errorf("invalid node index %d", opts.Index)
	}
	if opts.Network == "" {
		opts.Network = DefaultNetwork
	}
	if opts.Image == "" {
		opts.Image = impl.defaultImage
	}
	if inv == nil {
		inv = invoker.New(b, nil)
	}
	return &Node{
		index:          opts.Index,
		impl:           impl,
		network:        opts.Network,
		image:          opts.Image,
		circuitBreaker: opts.CircuitBreaker,
		hostname:       b.ContainerName(opts.Index, backend.ServiceLightning),
		backend:        b,
		invoker:        inv,
	}, nil
}

func (n *Node) String() string {
	return fmt.Sprintf("LNNode: index=%d, rpc_port=%d", n.index, n.impl.rpcPort)
}

func (n *Node) Index() int { return n.index }
func (n *Node) Kind() Kind { return n.impl.kind }
func (n *Node) Image() string { return n.image }
func (n *Node) Network() string { return n.network }
func (n *Node) RPCPort() int { return n.impl.rpcPort }
func (n *Node) Hostname() string { return n.hostname }
func (n *Node) HasCircuitBreaker() bool { return n.circuitBreaker }

// GenerateCLICommand formats the control-program command line for this node.
func (n *Node) GenerateCLICommand(tokens []string) (string, error) {
	return GenerateCLICommand(n.impl.kind, n.network, tokens)
}

func (n *Node) ctl(ctx context.Context, tokens []string, required ...string) (invoker.Result, error) {
	cmd, err := n.GenerateCLICommand(tokens)
	if err != nil {
		return nil, err
	}
	return n.invoker.Invoke(ctx, n.index, backend.ServiceLightning, cmd, required...)
}

// NewReceiveAddress asks the wallet for a fresh on-chain address.
func (n *Node) NewReceiveAddress(ctx context.Context) (string, error) {
	res, err := n.ctl(ctx, n.impl.newAddress, n.impl.addressField)
	if err != nil {
		return "", err
	}
	return res.StringField(n.impl.addressField)
}

// WalletBalance returns the balance result as printed by the node.
func (n *Node) WalletBalance(ctx context.Context) (invoker.Result, error) {
	return n.ctl(ctx, n.impl.balance)
}

// Pubkey returns the node's identity key, querying the node only on first use.
func (n *Node) Pubkey(ctx context.Context) (string, error) {
	return n.identity.Get(ctx, func(ctx context.Context) (string, error) {
		res, err := n.ctl(ctx, n.impl.getInfo, n.impl.pubkeyField)
		if err != nil {
			return "", err
		}
		return res.StringField(n.impl.pubkeyField)
	})
}

func (n *Node) resolve(ctx context.Context, peer Peer) (string, string, error) {
	pubkey, err := peer.Pubkey(ctx)
	if err != nil {
		return "", "", &PeerResolutionError{Peer: peer.Hostname(), Err: err}
	}
	return pubkey, peer.Hostname(), nil
}

// ConnectToPeer connects this node to peer. Connecting to an already connected peer is a
// no-op on the node side, so the command is safe to retry.
func (n *Node) ConnectToPeer(ctx context.Context, peer Peer) (invoker.Result, error) {
	pubkey, host, err := n.resolve(ctx, peer)
	if err != nil {
		return nil, err
	}
	return n.ctl(ctx, n.impl.connect(pubkey, host))
}

// OpenChannelTo funds a channel of amount satoshis from this node to peer.
func (n *Node) OpenChannelTo(ctx context.Context, peer Peer, amount int64) (invoker.Result, error) {
	if amount <= 0 {
		return nil, errors.Wrapf(ErrNonPositiveAmount, "amount %d", amount)
	}
	pubkey, host, err := n.resolve(ctx, peer)
	if err != nil {
		return nil, err
	}
	return n.ctl(ctx, n.impl.openChannel(pubkey, host, amount))
}

// Status reports the backend state of the lightning service.
func (n *Node) Status(ctx context.Context) (backend.RunningStatus, error) {
	return n.backend.GetStatus(ctx, n.index, backend.ServiceLightning)
}

// AuxiliaryStatus reports the circuit-breaker sidecar state, or StatusNotPresent when the
// node runs without one.
func (n *Node) AuxiliaryStatus(ctx context.Context) (backend.RunningStatus, error) {
	if !n.circuitBreaker {
		return backend.StatusNotPresent, nil
	}
	return n.backend.GetStatus(ctx, n.index, backend.ServiceCircuitBreaker)
}
