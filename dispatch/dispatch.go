// Package dispatch implements Dispatch (spec §4.6): classifies inbound
// messages between the client and view-client sinks, and owns the Routed
// message logic — Ping/Pong, reverse-route bookkeeping, TTL decrement and
// forwarding, and the process-wide ForwardTx throttle.
package dispatch

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/internal/metrics"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/wire"
)

// routeBackCacheSize bounds the reverse-route memory kept per tier; a reply
// hash that never comes back ages out rather than leaking forever.
const routeBackCacheSize = 4096

// maxForwardTxPerBlock implements NETWORK_MESSAGE constant
// MAX_TRANSACTIONS_PER_BLOCK_MESSAGE (spec §6): above this many ForwardTx
// since the last Block, further ones are dropped.
const maxForwardTxPerBlock = 1000

// ClientSink is the full node's message handler: everything that isn't a
// view-only query (spec §4.6 "client").
type ClientSink interface {
	Handle(conn *peer.Connection, msg wire.Message) error
}

// ViewClientSink answers read-only queries without touching chain state
// (spec §4.6 "view-client").
type ViewClientSink interface {
	Handle(conn *peer.Connection, msg wire.Message) error
}

// RoutingTable resolves the next hop toward a peer, per the routing-table
// graph the machine doesn't maintain itself (spec §1, §4.6).
type RoutingTable interface {
	NextHop(target netid.PeerId) (netid.PeerId, bool)
}

// PendingReplies lets the dispatcher recognize a ReplyHash-addressed Routed
// message as an answer to a request this node itself originated, as
// opposed to one merely passing through on its way to someone else.
type PendingReplies interface {
	// Take reports whether hash was a reply this node is waiting on, and
	// if so consumes the expectation (it won't match twice).
	Take(hash wire.Hash) bool
}

// Sender delivers a Routed message to a specific peer on a tier, used both
// to reply (Pong, forwarded request) and to forward along the route.
type Sender interface {
	SendTo(peerID netid.PeerId, tier wire.Tier, msg wire.Message) error
}

// Dispatcher is peer.Dispatcher.
type Dispatcher struct {
	selfID   netid.PeerId
	client   ClientSink
	view     ViewClientSink
	routing  RoutingTable
	pending  PendingReplies
	sender   Sender
	events   *events.Bus

	routeBackT1 *lru.Cache
	routeBackT2 *lru.Cache

	txMu           sync.Mutex
	forwardTxCount int
}

// Deps bundles Dispatcher's collaborators.
type Deps struct {
	SelfID  netid.PeerId
	Client  ClientSink
	View    ViewClientSink
	Routing RoutingTable
	Pending PendingReplies
	Sender  Sender
	Events  *events.Bus
}

// New constructs a Dispatcher. Panics only on a cache-size misconfiguration,
// which cannot happen with the constant above.
func New(deps Deps) *Dispatcher {
	t1, err := lru.New(routeBackCacheSize)
	if err != nil {
		panic(err)
	}
	t2, err := lru.New(routeBackCacheSize)
	if err != nil {
		panic(err)
	}
	return &Dispatcher{
		selfID:      deps.SelfID,
		client:      deps.Client,
		view:        deps.View,
		routing:     deps.Routing,
		pending:     deps.Pending,
		sender:      deps.Sender,
		events:      deps.Events,
		routeBackT1: t1,
		routeBackT2: t2,
	}
}

// Dispatch implements peer.Dispatcher (spec §4.6).
func (d *Dispatcher) Dispatch(conn *peer.Connection, msg wire.Message) error {
	if routed, ok := msg.(wire.Routed); ok {
		return d.dispatchRouted(conn, routed.Message)
	}
	if block, ok := msg.(wire.Block); ok {
		d.resetForwardTxCounter()
		return d.client.Handle(conn, block)
	}
	if isViewQuery(msg.Kind()) {
		return d.view.Handle(conn, msg)
	}
	return d.client.Handle(conn, msg)
}

// AccountsDataFullSync implements peer.Dispatcher: kicks off the initial
// accounts-data sync on a freshly Ready outbound T2 connection (spec §4.5
// step 8).
func (d *Dispatcher) AccountsDataFullSync(conn *peer.Connection) {
	_ = d.client.Handle(conn, wire.SyncAccountsData{RequestFullSync: true})
}

func isViewQuery(k wire.MessageKind) bool {
	switch k {
	case wire.KindPeersRequest, wire.KindBlockHeadersRequest, wire.KindEpochSyncRequest:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) dispatchRouted(conn *peer.Connection, msg wire.RoutedMessage) error {
	if msg.Body.ExpectResponse() {
		d.routeBack(conn.Tier).Add(msg.Hash, conn.Remote.Id)
	}

	if d.isForSelf(conn.Tier, msg.Target) {
		return d.handleForSelf(conn, msg)
	}

	if msg.TTL == 0 {
		d.dropRouted("ttl expired")
		return nil
	}

	nextHop, ok := d.resolveNextHop(conn.Tier, msg.Target)
	if !ok {
		d.dropRouted("no route")
		return nil
	}
	forwarded := msg
	forwarded.TTL--
	d.events.Emit(events.RoutingTableUpdate{})
	return d.sender.SendTo(nextHop, conn.Tier, wire.Routed{Message: forwarded})
}

func (d *Dispatcher) isForSelf(tier wire.Tier, target wire.RoutedTarget) bool {
	if target.IsPeerId {
		return target.PeerId == d.selfID
	}
	return d.pending.Take(target.ReplyHash)
}

func (d *Dispatcher) resolveNextHop(tier wire.Tier, target wire.RoutedTarget) (netid.PeerId, bool) {
	if target.IsPeerId {
		return d.routing.NextHop(target.PeerId)
	}
	if v, ok := d.routeBack(tier).Get(target.ReplyHash); ok {
		return v.(netid.PeerId), true
	}
	return netid.PeerId{}, false
}

// handleForSelf dispatches a Routed message addressed to this node. A
// ForwardTx here has already passed AdmitForwardTx in the Machine's
// steady-state loop, before Dispatch was ever called (spec §4.5 step 5
// runs before step 6 "Dispatch by variant"), so it needs no special case:
// it reaches client.Handle exactly like any other for-self body.
func (d *Dispatcher) handleForSelf(conn *peer.Connection, msg wire.RoutedMessage) error {
	switch body := msg.Body.(type) {
	case wire.Ping:
		pong := wire.RoutedMessage{
			Author: d.selfID,
			Target: wire.TargetPeer(msg.Author),
			TTL:    msg.TTL,
			Body:   wire.Pong{Nonce: body.Nonce},
		}
		return d.sender.SendTo(msg.Author, conn.Tier, wire.Routed{Message: pong})
	case wire.Pong:
		d.events.Emit(events.Pong{Nonce: body.Nonce})
		return nil
	default:
		return d.client.Handle(conn, wire.Routed{Message: msg})
	}
}

// dropRouted emits the observer event and increments the matching counter
// for any of spec §4.6's Routed-drop paths.
func (d *Dispatcher) dropRouted(reason string) {
	d.events.Emit(events.RoutedMessageDropped{Reason: reason})
	metrics.RoutedDroppedCounter.WithLabelValues(reason).Inc()
}

func (d *Dispatcher) routeBack(tier wire.Tier) *lru.Cache {
	if tier == wire.T1 {
		return d.routeBackT1
	}
	return d.routeBackT2
}

// resetForwardTxCounter implements "Reset on Block receipt" (spec §4.5
// step 5).
func (d *Dispatcher) resetForwardTxCounter() {
	d.txMu.Lock()
	d.forwardTxCount = 0
	d.txMu.Unlock()
}

// AdmitForwardTx implements the process-wide ForwardTx throttle (spec §4.5
// step 5, §6 MAX_TRANSACTIONS_PER_BLOCK_MESSAGE): false once
// maxForwardTxPerBlock have been accepted since the last Block. Part of
// peer.Dispatcher — called from the Machine's steady-state loop for every
// received Routed(ForwardTx), before the target-based dispatch decision,
// so the cap applies to forwarded-through messages too, not just ones
// addressed to this node.
func (d *Dispatcher) AdmitForwardTx() bool {
	d.txMu.Lock()
	defer d.txMu.Unlock()
	if d.forwardTxCount >= maxForwardTxPerBlock {
		return false
	}
	d.forwardTxCount++
	return true
}
