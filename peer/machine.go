// Package peer implements PeerStateMachine: per-connection handshake
// negotiation, steady-state message dispatch, routed-message dedup, and
// banning (spec §4.5, §7). Each Machine processes inbound frames one at a
// time, in arrival order, on the goroutine that calls Run. Send is not
// queued through that goroutine: other goroutines call it directly, and it
// hands the encoded frame to the framing.Stream's own send queue.
package peer

import (
	"context"
	"sync"
	"time"

	"github.com/anacrolix/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"

	"github.com/shardmesh/netcore/codec"
	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/framing"
	"github.com/shardmesh/netcore/internal/metrics"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/ratelimit"
	"github.com/shardmesh/netcore/wire"
)

// State is one of the three PeerStateMachine states (spec §4.5).
type State uint8

const (
	StateConnecting State = iota
	StateReady
	StateBanned
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateBanned:
		return "Banned"
	default:
		return "Connecting"
	}
}

// Dedup cache sizing and window (spec §6 constants). The ForwardTx
// per-block counter is process-wide (spec §4.6), not per-connection, so it
// lives in the dispatch package instead of here.
const (
	RoutedDedupCacheSize = 1000
	RoutedDedupWindow    = 50 * time.Millisecond
)

// EdgeStore is the routing-table collaborator a Machine needs: the locally
// known edge for a peer (to detect stale nonces) and a place to save a
// freshly formed one (spec §1 "persistent peer store and routing-table
// graph maintenance — called, not specified").
type EdgeStore interface {
	LocalEdge(peer netid.PeerId) (netid.Edge, bool)
	SaveEdge(e netid.Edge)
}

// Admission is the ConnectionPool surface a Machine calls into when it
// forms a Connection or halts (spec §4.7).
type Admission interface {
	RegisterPeer(peerID netid.PeerId, dir Direction, conn *Connection) error
	Unregister(peerID netid.PeerId)
}

// BanNotifier is told about bans so the pool can evict and any persistent
// peer store can record the reason.
type BanNotifier interface {
	NotifyBan(peerID netid.PeerId, reason BanReason)
}

// PeerStoreSink receives peer-info updates the machine can't act on itself
// (spec §4.5 "InvalidTarget: forward the peer-info update to the peer
// store"; see SPEC_FULL.md §4 supplemented features).
type PeerStoreSink interface {
	UpdatePeerInfo(info wire.PeerInfo)
}

// Dispatcher is where a Ready machine hands off parsed messages (spec
// §4.6). AccountsDataFullSync is invoked once, on an outbound T2 machine
// reaching Ready, to kick off the initial sync (spec §4.5 step 8).
// AdmitForwardTx is the process-wide ForwardTx throttle (spec §4.5 step 5):
// the Machine calls it for every received Routed(ForwardTx), before
// Dispatch, regardless of that message's eventual target.
type Dispatcher interface {
	Dispatch(conn *Connection, msg wire.Message) error
	AccountsDataFullSync(conn *Connection)
	AdmitForwardTx() bool
}

// Deps bundles every external collaborator a Machine needs, so
// construction doesn't take half a dozen positional parameters.
type Deps struct {
	Edges     EdgeStore
	Admission Admission
	Bans      BanNotifier
	PeerStore PeerStoreSink
	Dispatch  Dispatcher
	Events    *events.Bus
	Logger    log.Logger
}

// Config is the per-Machine tuning the spec otherwise leaves as bare
// constants or "configured" knobs (spec §9 Open Question (a); §4.5, §4.2).
type Config struct {
	Tier              wire.Tier
	SelfID            netid.PeerId
	SelfKeys          netid.KeyPair
	ProtocolVersion   uint32
	MinAllowedVersion uint32
	GenesisID         wire.Hash
	ChainInfo         wire.ChainInfo
	ListenPort        uint16
	HandshakeTimeout  time.Duration
	ClockSkew         time.Duration
	// ForceEncoding, if non-nil, fixes the wire encoding instead of
	// autodetecting (spec §4.2 "If a force_encoding is configured, use it").
	ForceEncoding *codec.Encoding
}

// Machine is PeerStateMachine: one per live or connecting session.
type Machine struct {
	cfg    Config
	stream *framing.Stream
	limiter *ratelimit.Limiter
	deps   Deps

	direction      Direction
	expectedRemote *netid.PeerId // set for outbound machines

	mu        sync.Mutex
	state     State
	banReason BanReason
	conn      *Connection

	protoSupported bool
	encoding       codec.Encoding

	dedup *lru.Cache

	proposedNonce uint64
	proposal      *handshakeProposal
}

// NewOutbound constructs a Machine that will immediately dial handshake.go's
// initial Handshake once Run starts (spec §4.5 "Startup").
func NewOutbound(cfg Config, stream *framing.Stream, limiter *ratelimit.Limiter, expectedRemote netid.PeerId, deps Deps) *Machine {
	m := newMachine(cfg, stream, limiter, deps)
	m.direction = Outbound
	m.expectedRemote = &expectedRemote
	if cfg.Tier == wire.T1 {
		m.encoding = codec.Proto
	}
	return m
}

// NewInbound constructs a Machine that waits for the remote's Handshake.
func NewInbound(cfg Config, stream *framing.Stream, limiter *ratelimit.Limiter, deps Deps) *Machine {
	m := newMachine(cfg, stream, limiter, deps)
	m.direction = Inbound
	if cfg.Tier == wire.T1 {
		m.encoding = codec.Proto
	}
	return m
}

func newMachine(cfg Config, stream *framing.Stream, limiter *ratelimit.Limiter, deps Deps) *Machine {
	dedup, err := lru.New(RoutedDedupCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which RoutedDedupCacheSize
		// never is; a panic here would be a programming error, not a
		// runtime condition, so surface it the same way.
		panic(errors.Wrap(err, "peer: building dedup cache"))
	}
	return &Machine{
		cfg:     cfg,
		stream:  stream,
		limiter: limiter,
		deps:    deps,
		state:   StateConnecting,
		dedup:   dedup,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connection returns the live Connection once Ready, or nil before then.
func (m *Machine) Connection() *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// Run drives the machine to completion: handshake, then steady-state
// dispatch, until the stream closes, the handshake times out, or the
// machine bans. It returns the terminal error, if any.
func (m *Machine) Run(ctx context.Context) error {
	m.deps.Events.Emit(events.PeerActorStarted{})
	defer m.teardown()

	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	m.deps.Events.Emit(events.HandshakeStarted{})
	handshakeStart := time.Now()

	if m.direction == Outbound {
		if err := m.sendInitialHandshake(); err != nil {
			metrics.HandshakeDuration.Observe(time.Since(handshakeStart).Seconds())
			return err
		}
	}

	if err := m.runHandshakePhase(hctx); err != nil {
		metrics.HandshakeDuration.Observe(time.Since(handshakeStart).Seconds())
		return err
	}
	metrics.HandshakeDuration.Observe(time.Since(handshakeStart).Seconds())
	metrics.ConnectionsGauge.WithLabelValues(m.cfg.Tier.String()).Inc()

	return m.runSteadyState(ctx)
}

func (m *Machine) teardown() {
	m.mu.Lock()
	state := m.state
	conn := m.conn
	reason := m.banReason
	m.mu.Unlock()

	if conn != nil {
		m.deps.Admission.Unregister(m.remotePeerID())
		metrics.ConnectionsGauge.WithLabelValues(conn.Tier.String()).Dec()
	}
	if state == StateBanned {
		m.deps.Bans.NotifyBan(m.remotePeerID(), reason)
		metrics.BansCounter.WithLabelValues(string(reason)).Inc()
	}
	m.stream.Close(nil)
	m.deps.Events.Emit(events.ConnectionClosed{Reason: string(reason)})
}

func (m *Machine) remotePeerID() netid.PeerId {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn.Remote.Id
	}
	if m.expectedRemote != nil {
		return *m.expectedRemote
	}
	return netid.PeerId{}
}

func (m *Machine) ban(reason BanReason) error {
	m.mu.Lock()
	m.state = StateBanned
	m.banReason = reason
	m.mu.Unlock()
	return errors.Errorf("peer: banned: %s", reason)
}

// nextNonce proposes the nonce to sign into a fresh PartialEdgeInfo: the
// locally known edge's Next() (strictly greater than its nonce), or the wall
// clock reading if no edge exists (spec §4.5 "Startup").
func (m *Machine) nextNonce(peer netid.PeerId) uint64 {
	if local, ok := m.deps.Edges.LocalEdge(peer); ok {
		return local.Next()
	}
	return uint64(time.Now().UnixNano())
}

// routedDedupKey hashes (author, target, signature) down to a fixed-size
// array suitable as an LRU key (spec §4.5 step 4, §8 invariant 5). blake3
// rather than the stdlib's sha256 since it's meaningfully faster for this
// hot, per-frame call.
func routedDedupKey(msg wire.RoutedMessage) [32]byte {
	h := blake3.New(32, nil)
	h.Write(msg.Author[:])
	if msg.Target.IsPeerId {
		h.Write([]byte{1})
		h.Write(msg.Target.PeerId[:])
	} else {
		h.Write([]byte{0})
		h.Write(msg.Target.ReplyHash[:])
	}
	h.Write(msg.Signature)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
