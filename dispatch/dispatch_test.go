package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/wire"
)

type fakeSink struct {
	mu       sync.Mutex
	received []wire.Message
}

func (f *fakeSink) Handle(conn *peer.Connection, msg wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
	return nil
}

type fakeRouting struct {
	next map[netid.PeerId]netid.PeerId
}

func (f *fakeRouting) NextHop(target netid.PeerId) (netid.PeerId, bool) {
	hop, ok := f.next[target]
	return hop, ok
}

type fakePending struct {
	mu      sync.Mutex
	pending map[wire.Hash]struct{}
}

func newFakePending() *fakePending { return &fakePending{pending: make(map[wire.Hash]struct{})} }

func (f *fakePending) Take(hash wire.Hash) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[hash]; ok {
		delete(f.pending, hash)
		return true
	}
	return false
}

type fakeSender struct {
	mu  sync.Mutex
	out []wire.RoutedMessage
}

func (f *fakeSender) SendTo(peerID netid.PeerId, tier wire.Tier, msg wire.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, msg.(wire.Routed).Message)
	return nil
}

func genID(t *testing.T) netid.PeerId {
	t.Helper()
	kp, err := netid.GenerateKeyPair()
	require.NoError(t, err)
	return kp.Id
}

func TestDispatchRoutesClassifiedMessages(t *testing.T) {
	self := genID(t)
	client := &fakeSink{}
	d := New(Deps{SelfID: self, Client: client, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: &fakeSender{}, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2}
	require.NoError(t, d.Dispatch(conn, wire.Transaction{Raw: []byte("x")}))
	require.Len(t, client.received, 1)
}

func TestDispatchRoutesViewQueries(t *testing.T) {
	self := genID(t)
	view := &fakeSink{}
	d := New(Deps{SelfID: self, Client: &fakeSink{}, View: view, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: &fakeSender{}, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2}
	require.NoError(t, d.Dispatch(conn, wire.PeersRequest{}))
	require.Len(t, view.received, 1)
}

// TestRoutedPingRepliesWithPong exercises spec §4.6: a Ping addressed to us
// is answered with a Pong back to the originator.
func TestRoutedPingRepliesWithPong(t *testing.T) {
	self, author := genID(t), genID(t)
	sender := &fakeSender{}
	d := New(Deps{SelfID: self, Client: &fakeSink{}, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: sender, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2, Remote: wire.PeerInfo{Id: author}}
	msg := wire.RoutedMessage{Author: author, Target: wire.TargetPeer(self), TTL: 5, Body: wire.Ping{Nonce: 42}}
	require.NoError(t, d.Dispatch(conn, wire.Routed{Message: msg}))

	require.Len(t, sender.out, 1)
	pong, ok := sender.out[0].Body.(wire.Pong)
	require.True(t, ok)
	require.Equal(t, uint64(42), pong.Nonce)
}

// TestRoutedForwardingDecrementsTTL exercises spec §4.6: a message not
// addressed to us is forwarded with TTL-1 toward the routing-table next hop.
func TestRoutedForwardingDecrementsTTL(t *testing.T) {
	self, author, target, hop := genID(t), genID(t), genID(t), genID(t)
	routing := &fakeRouting{next: map[netid.PeerId]netid.PeerId{target: hop}}
	sender := &fakeSender{}
	d := New(Deps{SelfID: self, Client: &fakeSink{}, View: &fakeSink{}, Routing: routing, Pending: newFakePending(), Sender: sender, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2, Remote: wire.PeerInfo{Id: author}}
	msg := wire.RoutedMessage{Author: author, Target: wire.TargetPeer(target), TTL: 5, Body: wire.ForwardTx{Raw: []byte("tx")}}
	require.NoError(t, d.Dispatch(conn, wire.Routed{Message: msg}))

	require.Len(t, sender.out, 1)
	require.EqualValues(t, 4, sender.out[0].TTL)
}

// TestRoutedDroppedAtZeroTTL exercises spec §4.6: TTL hitting 0 drops the
// message instead of forwarding it.
func TestRoutedDroppedAtZeroTTL(t *testing.T) {
	self, author, target := genID(t), genID(t), genID(t)
	sender := &fakeSender{}
	d := New(Deps{SelfID: self, Client: &fakeSink{}, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: sender, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2, Remote: wire.PeerInfo{Id: author}}
	msg := wire.RoutedMessage{Author: author, Target: wire.TargetPeer(target), TTL: 0, Body: wire.ForwardTx{Raw: []byte("tx")}}
	require.NoError(t, d.Dispatch(conn, wire.Routed{Message: msg}))
	require.Empty(t, sender.out)
}

// TestRoutedReplyByHashReachesPendingOriginator exercises the ReplyHash
// addressing path: once PendingReplies recognizes a hash, the reply is
// delivered to the client sink rather than forwarded.
func TestRoutedReplyByHashReachesPendingOriginator(t *testing.T) {
	self, responder := genID(t), genID(t)
	client := &fakeSink{}
	pending := newFakePending()
	replyHash := wire.Hash{5, 5, 5}
	pending.pending[replyHash] = struct{}{}

	d := New(Deps{SelfID: self, Client: client, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: pending, Sender: &fakeSender{}, Events: events.New()})

	conn := &peer.Connection{Tier: wire.T2, Remote: wire.PeerInfo{Id: responder}}
	msg := wire.RoutedMessage{Author: responder, Target: wire.TargetHash(replyHash), TTL: 5, Body: wire.TxStatusResponse{TxHash: wire.Hash{1}}}
	require.NoError(t, d.Dispatch(conn, wire.Routed{Message: msg}))

	require.Len(t, client.received, 1)
	_, stillPending := pending.pending[replyHash]
	require.False(t, stillPending, "a matched reply hash must be consumed, not reusable")
}

// TestAdmitForwardTxThrottleDropsAfterLimit exercises spec §4.5 step 5 /
// §6 MAX_TRANSACTIONS_PER_BLOCK_MESSAGE: the 1001st ForwardTx since the
// last Block is refused, and a Block receipt resets the counter.
// AdmitForwardTx is called directly here because the real call site is
// peer.Machine's steady-state loop (before Dispatch ever sees the
// message, so the cap also covers ForwardTx merely forwarded through this
// node) — see peer.TestForwardTxThrottleAppliesRegardlessOfTarget.
func TestAdmitForwardTxThrottleDropsAfterLimit(t *testing.T) {
	self := genID(t)
	d := New(Deps{SelfID: self, Client: &fakeSink{}, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: &fakeSender{}, Events: events.New()})

	for i := 0; i < maxForwardTxPerBlock; i++ {
		require.True(t, d.AdmitForwardTx(), "admission %d must succeed within the per-block cap", i)
	}
	require.False(t, d.AdmitForwardTx(), "admission past the per-block cap must be refused")

	require.NoError(t, d.Dispatch(&peer.Connection{Tier: wire.T2, Remote: wire.PeerInfo{Id: self}}, wire.Block{Header: wire.BlockHeader{}}))
	require.True(t, d.AdmitForwardTx(), "a Block receipt must reset the counter")
}

// TestAccountsDataFullSyncDelegatesToClient exercises spec §4.5 step 8.
func TestAccountsDataFullSyncDelegatesToClient(t *testing.T) {
	self := genID(t)
	client := &fakeSink{}
	d := New(Deps{SelfID: self, Client: client, View: &fakeSink{}, Routing: &fakeRouting{}, Pending: newFakePending(), Sender: &fakeSender{}, Events: events.New()})

	d.AccountsDataFullSync(&peer.Connection{Tier: wire.T2})
	require.Len(t, client.received, 1)
	sync, ok := client.received[0].(wire.SyncAccountsData)
	require.True(t, ok)
	require.True(t, sync.RequestFullSync)
}
