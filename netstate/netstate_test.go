package netstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/pool"
	"github.com/shardmesh/netcore/wire"
)

// testClientSink satisfies both dispatch.ClientSink and
// dispatch.ViewClientSink; these tests only exercise the routing/peer-store/
// pending-reply graph, never a real Dispatch call, so it never needs to do
// anything.
type testClientSink struct{}

func (testClientSink) Handle(conn *peer.Connection, msg wire.Message) error { return nil }

func genID(t *testing.T) netid.PeerId {
	t.Helper()
	kp, err := netid.GenerateKeyPair()
	require.NoError(t, err)
	return kp.Id
}

func newTestState(t *testing.T) (*NetworkState, netid.PeerId) {
	t.Helper()
	self := genID(t)
	ns := New(self, pool.Config{}, testClientSink{}, testClientSink{}, events.New())
	return ns, self
}

func TestNextHopDirectNeighbor(t *testing.T) {
	ns, self := newTestState(t)
	remote := genID(t)
	ns.SaveEdge(netid.NewEdge(self, remote, 1, nil, nil))

	hop, ok := ns.NextHop(remote)
	require.True(t, ok)
	require.Equal(t, remote, hop)
}

func TestNextHopMultiHop(t *testing.T) {
	ns, self := newTestState(t)
	mid := genID(t)
	far := genID(t)
	ns.SaveEdge(netid.NewEdge(self, mid, 1, nil, nil))
	ns.SaveEdge(netid.NewEdge(mid, far, 1, nil, nil))

	hop, ok := ns.NextHop(far)
	require.True(t, ok)
	require.Equal(t, mid, hop)
}

func TestNextHopUnreachable(t *testing.T) {
	ns, _ := newTestState(t)
	stranger := genID(t)
	_, ok := ns.NextHop(stranger)
	require.False(t, ok)
}

func TestSaveEdgesBatchEmitsOneRoutingTableUpdate(t *testing.T) {
	self := genID(t)
	bus := events.New()
	ns := New(self, pool.Config{}, testClientSink{}, testClientSink{}, bus)
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	a, b, c := genID(t), genID(t), genID(t)
	ns.SaveEdges([]netid.Edge{
		netid.NewEdge(self, a, 1, nil, nil),
		netid.NewEdge(self, b, 1, nil, nil),
		netid.NewEdge(self, c, 1, nil, nil),
	})

	updates := 0
drain:
	for {
		select {
		case ev := <-ch:
			if _, ok := ev.(events.RoutingTableUpdate); ok {
				updates++
			}
		default:
			break drain
		}
	}
	require.Equal(t, 1, updates, "one batched SaveEdges call must emit exactly one RoutingTableUpdate")

	for _, target := range []netid.PeerId{a, b, c} {
		hop, ok := ns.NextHop(target)
		require.True(t, ok)
		require.Equal(t, target, hop)
	}
}

func TestExpectReplyAndTake(t *testing.T) {
	ns, _ := newTestState(t)
	var hash wire.Hash
	hash[0] = 0x42

	require.False(t, ns.Take(hash), "an unexpected hash must not be taken")
	ns.ExpectReply(hash)
	require.True(t, ns.Take(hash))
	require.False(t, ns.Take(hash), "a taken reply must not be takeable twice")
}

func TestUpdatePeerInfoRoundTrips(t *testing.T) {
	ns, _ := newTestState(t)
	id := genID(t)
	ns.UpdatePeerInfo(wire.PeerInfo{Id: id, AccountId: "alice.near"})

	info, ok := ns.PeerInfo(id)
	require.True(t, ok)
	require.Equal(t, "alice.near", info.AccountId)

	_, ok = ns.PeerInfo(genID(t))
	require.False(t, ok)
}
