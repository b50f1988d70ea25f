package fleet

import (
	"context"
	"encoding/json"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/backend/fakebackend"
	"github.com/QQGoblin/lnfleet/pkg/invoker"
	"github.com/QQGoblin/lnfleet/pkg/lnnode"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

const (
	alicePubkey = "02aa000000000000000000000000000000000000000000000000000000000000aa"
	bobPubkey   = "03bb000000000000000000000000000000000000000000000000000000000000bb"
)

func testInvoker(b backend.Backend) *invoker.Invoker {
	return invoker.New(b, invoker.NewRetrier(invoker.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}))
}

// blockingBackend holds every Exec until release is closed.
type blockingBackend struct {
	*fakebackend.Backend
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Exec(ctx context.Context, index int, service backend.ServiceType, cmd string) ([]byte, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Backend.Exec(ctx, index, service, cmd)
}

func newFleet(t *testing.T, b backend.Backend, nodes ...lnnode.Options) *Fleet {
	t.Helper()
	f, err := New(b, testInvoker(b), 2, nodes...)
	require.NoError(t, err)
	return f
}

func TestNewRejectsDuplicateIndex(t *testing.T) {
	fb := fakebackend.New("warnet")
	_, err := New(fb, nil, 1, lnnode.Options{Index: 0, Kind: lnnode.LND}, lnnode.Options{Index: 0, Kind: lnnode.CLN})
	require.Error(t, err)
}

func TestNewRejectsUnsupportedKind(t *testing.T) {
	fb := fakebackend.New("warnet")
	_, err := New(fb, nil, 1, lnnode.Options{Index: 0, Kind: "eclair"})
	var unsupported *lnnode.UnsupportedImplementationError
	require.True(t, errors.As(err, &unsupported))
}

func TestNodeLookup(t *testing.T) {
	fb := fakebackend.New("warnet")
	f := newFleet(t, fb, lnnode.Options{Index: 3, Kind: lnnode.LND}, lnnode.Options{Index: 1, Kind: lnnode.CLN})

	n, err := f.Node(3)
	require.NoError(t, err)
	require.Equal(t, "warnet-ln-000003", n.Hostname())

	_, err = f.Node(2)
	require.True(t, errors.Is(err, ErrUnknownNode))

	nodes := f.Nodes()
	require.Len(t, nodes, 2)
	require.Equal(t, 1, nodes[0].Index())
	require.Equal(t, 3, nodes[1].Index())
}

func TestConnect(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnExec(1, backend.ServiceLightning, "lncli --network=regtest getinfo", fakebackend.OK(`{"identity_pubkey":"`+bobPubkey+`"}`))
	fb.OnExec(0, backend.ServiceLightning, "lncli --network=regtest connect "+bobPubkey+"@warnet-ln-000001", fakebackend.OK(`{}`))
	f := newFleet(t, fb, lnnode.Options{Index: 0, Kind: lnnode.LND}, lnnode.Options{Index: 1, Kind: lnnode.LND})

	res, err := f.Connect(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Empty(t, res)

	_, err = f.Connect(context.Background(), 0, 0)
	require.Error(t, err)
	_, err = f.Connect(context.Background(), 0, 5)
	require.True(t, errors.Is(err, ErrUnknownNode))
}

func TestOpenChannel(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnExec(1, backend.ServiceLightning, "lightning-cli --network=regtest getinfo", fakebackend.OK(`{"id":"`+alicePubkey+`"}`))
	fb.OnExec(0, backend.ServiceLightning,
		"lncli --network=regtest openchannel --node_key="+alicePubkey+" --connect=warnet-ln-000001 --local_amt=250000",
		fakebackend.OK(`{"funding_txid":"abcd"}`))
	f := newFleet(t, fb, lnnode.Options{Index: 0, Kind: lnnode.LND}, lnnode.Options{Index: 1, Kind: lnnode.CLN})

	res, err := f.OpenChannel(context.Background(), 0, 1, 250000)
	require.NoError(t, err)
	require.Equal(t, "abcd", res["funding_txid"])

	_, err = f.OpenChannel(context.Background(), 0, 1, 0)
	require.True(t, errors.Is(err, lnnode.ErrNonPositiveAmount))
}

func TestMutatingCommandsAreExclusivePerNode(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnExec(1, backend.ServiceLightning, "lncli --network=regtest getinfo", fakebackend.OK(`{"identity_pubkey":"`+bobPubkey+`"}`))
	fb.OnExec(0, backend.ServiceLightning, "lncli --network=regtest connect "+bobPubkey+"@warnet-ln-000001", fakebackend.OK(`{}`))
	bb := &blockingBackend{Backend: fb, entered: make(chan struct{}, 4), release: make(chan struct{})}
	f := newFleet(t, bb, lnnode.Options{Index: 0, Kind: lnnode.LND}, lnnode.Options{Index: 1, Kind: lnnode.LND})

	done := make(chan error, 1)
	go func() {
		_, err := f.Connect(context.Background(), 0, 1)
		done <- err
	}()
	<-bb.entered

	_, err := f.Connect(context.Background(), 0, 1)
	require.True(t, errors.Is(err, ErrNodeBusy))

	close(bb.release)
	require.NoError(t, <-done)

	_, err = f.Connect(context.Background(), 0, 1)
	require.NoError(t, err)
}

func TestStatus(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.SetStatus(0, backend.ServiceLightning, backend.StatusRunning)
	fb.SetStatus(0, backend.ServiceCircuitBreaker, backend.StatusFailed)
	fb.SetStatus(1, backend.ServiceLightning, backend.StatusStopped)
	f := newFleet(t, fb,
		lnnode.Options{Index: 0, Kind: lnnode.LND, CircuitBreaker: true},
		lnnode.Options{Index: 1, Kind: lnnode.CLN},
	)

	statuses := f.Status(context.Background())
	require.Equal(t, []NodeStatus{
		{Index: 0, Hostname: "warnet-ln-000000", Kind: lnnode.LND, Lightning: backend.StatusRunning, CircuitBreaker: backend.StatusFailed},
		{Index: 1, Hostname: "warnet-ln-000001", Kind: lnnode.CLN, Lightning: backend.StatusStopped, CircuitBreaker: backend.StatusNotPresent},
	}, statuses)
	require.Contains(t, statuses[0].String(), "warnet-ln-000000")
}

func TestExportAll(t *testing.T) {
	fb := fakebackend.New("warnet")
	for _, i := range []int{0, 1} {
		fb.OnGetFile(i, backend.ServiceLightning, "/root/.lnd/data/chain/bitcoin/regtest/admin.macaroon", fakebackend.OK("macaroon"))
		fb.OnGetFile(i, backend.ServiceLightning, "/root/.lnd/tls.cert", fakebackend.OK("cert"))
	}
	f := newFleet(t, fb,
		lnnode.Options{Index: 0, Kind: lnnode.LND},
		lnnode.Options{Index: 1, Kind: lnnode.LND},
		lnnode.Options{Index: 2, Kind: lnnode.CLN},
	)

	fs := afero.NewMemMapFs()
	manifest, err := f.ExportAll(context.Background(), fs, "/credentials")
	require.NoError(t, err)
	require.Len(t, manifest.Records(), 2)

	data, err := afero.ReadFile(fs, "/credentials/sim.json")
	require.NoError(t, err)
	var doc struct {
		Session string          `json:"session"`
		Nodes   []lnnode.Record `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, manifest.Session(), doc.Session)
	require.ElementsMatch(t, manifest.Records(), doc.Nodes)
}

func TestExportAllCollectsFailures(t *testing.T) {
	fb := fakebackend.New("warnet")
	fb.OnGetFile(0, backend.ServiceLightning, "/root/.lnd/data/chain/bitcoin/regtest/admin.macaroon", fakebackend.OK("macaroon"))
	fb.OnGetFile(0, backend.ServiceLightning, "/root/.lnd/tls.cert", fakebackend.OK("cert"))
	fb.OnGetFile(1, backend.ServiceLightning, "/root/.lnd/data/chain/bitcoin/regtest/admin.macaroon", fakebackend.Fail("no such file"))
	f := newFleet(t, fb, lnnode.Options{Index: 0, Kind: lnnode.LND}, lnnode.Options{Index: 1, Kind: lnnode.LND})

	fs := afero.NewMemMapFs()
	manifest, err := f.ExportAll(context.Background(), fs, "/credentials")
	require.Error(t, err)
	require.Contains(t, err.Error(), "warnet-ln-000001")
	require.Len(t, manifest.Records(), 1)
	require.Equal(t, "warnet-ln-000000", manifest.Records()[0].ID)

	ok, err := afero.Exists(fs, "/credentials/sim.json")
	require.NoError(t, err)
	require.True(t, ok)
}
