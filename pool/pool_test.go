package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/wire"
)

func genID(t *testing.T) netid.PeerId {
	t.Helper()
	kp, err := netid.GenerateKeyPair()
	require.NoError(t, err)
	return kp.Id
}

func TestStartOutboundRejectsDuplicate(t *testing.T) {
	self, remote := genID(t), genID(t)
	p := New(self, Config{})

	permit, err := p.StartOutbound(remote)
	require.NoError(t, err)

	_, err = p.StartOutbound(remote)
	require.ErrorIs(t, err, ErrDuplicateOutbound)

	permit.Release()
	_, err = p.StartOutbound(remote)
	require.NoError(t, err)
}

func TestStartOutboundRejectsAlreadyConnected(t *testing.T) {
	self, remote := genID(t), genID(t)
	p := New(self, Config{})

	conn := &peer.Connection{Tier: wire.T2, Direction: peer.Inbound}
	require.NoError(t, p.RegisterPeer(remote, peer.Inbound, conn))

	_, err := p.StartOutbound(remote)
	require.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestRegisterPeerTieBreakIsDeterministic(t *testing.T) {
	self, remote := genID(t), genID(t)
	p := New(self, Config{})

	existing := &peer.Connection{Tier: wire.T2, Direction: peer.Inbound}
	require.NoError(t, p.RegisterPeer(remote, peer.Inbound, existing))

	incoming := &peer.Connection{Tier: wire.T2, Direction: peer.Outbound}
	err := p.RegisterPeer(remote, peer.Outbound, incoming)

	got, ok := p.Get(wire.T2, remote)
	require.True(t, ok)
	if err == nil {
		require.Same(t, incoming, got)
	} else {
		require.ErrorIs(t, err, ErrAlreadyConnected)
		require.Same(t, existing, got)
	}

	// The same pair of directions must resolve the same way every time:
	// the tie-break is a pure function of (self_id, peer_id, directions).
	p2 := New(self, Config{})
	require.NoError(t, p2.RegisterPeer(remote, peer.Inbound, &peer.Connection{Tier: wire.T2, Direction: peer.Inbound}))
	err2 := p2.RegisterPeer(remote, peer.Outbound, &peer.Connection{Tier: wire.T2, Direction: peer.Outbound})
	require.Equal(t, err == nil, err2 == nil)
}

func TestUnregisterClearsAllState(t *testing.T) {
	self, remote := genID(t), genID(t)
	p := New(self, Config{})

	conn := &peer.Connection{Tier: wire.T1, Direction: peer.Inbound}
	require.NoError(t, p.RegisterPeer(remote, peer.Inbound, conn))
	p.Unregister(remote)

	_, ok := p.Get(wire.T1, remote)
	require.False(t, ok)

	_, err := p.StartOutbound(remote)
	require.NoError(t, err)
}

func TestAdmitInboundBlocksOverCapacity(t *testing.T) {
	self := genID(t)
	p := New(self, Config{MaxInboundConnecting: 1})

	permit, err := p.AdmitInbound(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.AdmitInbound(ctx)
	require.Error(t, err)

	permit.Release()
	_, err = p.AdmitInbound(context.Background())
	require.NoError(t, err)
}
