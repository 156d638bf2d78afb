// Package pool implements ConnectionPool (spec §4.7): the T1/T2 peer maps,
// outbound-dial admission (one attempt per PeerId at a time), an inbound
// admission semaphore bounding concurrent Connecting(Inbound) machines, and
// the tie-break used when an inbound and an outbound attempt race for the
// same peer.
package pool

import (
	"bytes"
	"context"
	"sync"

	"github.com/anacrolix/multiless"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/wire"
)

// Admission errors (spec §7 "Admission").
var (
	ErrTooManyInboundConnecting = errors.New("pool: too many inbound connections in progress")
	ErrDuplicateOutbound        = errors.New("pool: outbound attempt already in progress for this peer")
	ErrAlreadyConnected         = errors.New("pool: peer already connected")
)

// Config bounds the pool's admission behavior.
type Config struct {
	MaxInboundConnecting int64
}

// Pool is ConnectionPool: two tier maps plus admission control.
type Pool struct {
	selfID netid.PeerId
	cfg    Config

	inboundSem *semaphore.Weighted

	mu          sync.Mutex
	t1          map[netid.PeerId]*peer.Connection
	t2          map[netid.PeerId]*peer.Connection
	outbounding map[netid.PeerId]struct{}
}

// New builds a Pool for a node identified by selfID, used only to break
// simultaneous-connect ties deterministically (spec §4.7).
func New(selfID netid.PeerId, cfg Config) *Pool {
	if cfg.MaxInboundConnecting <= 0 {
		cfg.MaxInboundConnecting = 64
	}
	return &Pool{
		selfID:      selfID,
		cfg:         cfg,
		inboundSem:  semaphore.NewWeighted(cfg.MaxInboundConnecting),
		t1:          make(map[netid.PeerId]*peer.Connection),
		t2:          make(map[netid.PeerId]*peer.Connection),
		outbounding: make(map[netid.PeerId]struct{}),
	}
}

// OutboundPermit is returned by StartOutbound; Release must be called
// exactly once, however the dial attempt ends.
type OutboundPermit struct {
	pool *Pool
	peer netid.PeerId
}

// Release frees the reserved outbound slot for this peer.
func (p OutboundPermit) Release() {
	p.pool.mu.Lock()
	delete(p.pool.outbounding, p.peer)
	p.pool.mu.Unlock()
}

// StartOutbound atomically reserves the right to dial peerID, failing if a
// competing outbound attempt is already running or the peer is already
// connected on either tier (spec §4.7 "start_outbound").
func (p *Pool) StartOutbound(peerID netid.PeerId) (OutboundPermit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.outbounding[peerID]; ok {
		return OutboundPermit{}, ErrDuplicateOutbound
	}
	if _, ok := p.t1[peerID]; ok {
		return OutboundPermit{}, ErrAlreadyConnected
	}
	if _, ok := p.t2[peerID]; ok {
		return OutboundPermit{}, ErrAlreadyConnected
	}
	p.outbounding[peerID] = struct{}{}
	return OutboundPermit{pool: p, peer: peerID}, nil
}

// InboundPermit gates admission of one Connecting(Inbound) machine.
type InboundPermit struct{ sem *semaphore.Weighted }

// Release frees the inbound admission slot.
func (ip InboundPermit) Release() { ip.sem.Release(1) }

// AdmitInbound blocks until an inbound admission slot is free, or ctx is
// done (spec §4.7 "inbound admission semaphore").
func (p *Pool) AdmitInbound(ctx context.Context) (InboundPermit, error) {
	if err := p.inboundSem.Acquire(ctx, 1); err != nil {
		return InboundPermit{}, ErrTooManyInboundConnecting
	}
	return InboundPermit{sem: p.inboundSem}, nil
}

// RegisterPeer implements peer.Admission: accept/reject using existing
// connection state, tier, and — for a simultaneous-connect race — the
// deterministic (self_id, peer_id) tie-break (spec §4.7).
func (p *Pool) RegisterPeer(peerID netid.PeerId, dir peer.Direction, conn *peer.Connection) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tierMap := p.tierMap(conn.Tier)
	if existing, ok := tierMap[peerID]; ok {
		if keepExisting(p.selfID, peerID, existing.Direction, dir) {
			return ErrAlreadyConnected
		}
		// incoming wins the race: replace the existing entry.
	}
	tierMap[peerID] = conn
	return nil
}

// Unregister implements peer.Admission.
func (p *Pool) Unregister(peerID netid.PeerId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.t1, peerID)
	delete(p.t2, peerID)
	delete(p.outbounding, peerID)
}

// Get returns the live connection for peerID on tier t, if any.
func (p *Pool) Get(t wire.Tier, peerID netid.PeerId) (*peer.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.tierMap(t)[peerID]
	return c, ok
}

// Snapshot returns a point-in-time copy of every connected peer on tier t,
// safe to range over without holding the pool's lock.
func (p *Pool) Snapshot(t wire.Tier) []*peer.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	src := p.tierMap(t)
	out := make([]*peer.Connection, 0, len(src))
	for _, c := range src {
		out = append(out, c)
	}
	return out
}

func (p *Pool) tierMap(t wire.Tier) map[netid.PeerId]*peer.Connection {
	if t == wire.T1 {
		return p.t1
	}
	return p.t2
}

// keepExisting decides, for a peer racing both an inbound and an outbound
// handshake to completion at once, which Connection survives. The rule is
// deterministic given only (self_id, peer_id): the side whose direction
// agrees with comparing the two ids wins, so both ends of the link compute
// the same winner without coordinating.
func keepExisting(selfID, peerID netid.PeerId, existingDir, incomingDir peer.Direction) bool {
	preferOutbound := bytes.Compare(selfID[:], peerID[:]) < 0
	existingScore := directionScore(existingDir, preferOutbound)
	incomingScore := directionScore(incomingDir, preferOutbound)
	cmp := multiless.New().Int(existingScore, incomingScore).OrderingInt()
	return cmp >= 0
}

func directionScore(dir peer.Direction, preferOutbound bool) int {
	if (dir == peer.Outbound) == preferOutbound {
		return 1
	}
	return 0
}
