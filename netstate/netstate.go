// Package netstate implements NetworkState (spec §9): the shared
// process-wide record that owns a ConnectionPool, a ChunkCache, and a
// Dispatcher, plus the routing-table/peer-store/pending-reply bookkeeping
// those collaborators call into. It is the thing that sits between many
// PeerStateMachines and the rest of the node.
package netstate

import (
	"sync"

	"github.com/shardmesh/netcore/chunkcache"
	"github.com/shardmesh/netcore/dispatch"
	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/peer"
	"github.com/shardmesh/netcore/pool"
	"github.com/shardmesh/netcore/wire"
)

// NetworkState bundles the pool, chunk cache and dispatcher a running node
// shares across every connection, plus the routing-table/peer-store/
// pending-reply state the dispatcher needs to resolve and forward Routed
// messages (spec §3 "persistent peer store and routing-table graph
// maintenance — called, not specified").
type NetworkState struct {
	SelfID netid.PeerId

	Pool     *pool.Pool
	Chunks   *chunkcache.Cache
	Dispatch *dispatch.Dispatcher

	events *events.Bus

	edgesMu deferredMutex
	edges   map[netid.PeerId]netid.Edge
	adj     map[netid.PeerId]map[netid.PeerId]struct{}

	peersMu sync.Mutex
	peers   map[netid.PeerId]wire.PeerInfo

	pendingMu sync.Mutex
	pending   map[wire.Hash]struct{}

	machinesMu sync.Mutex
	machines   map[wire.Tier]map[netid.PeerId]*peer.Machine
}

// New builds a NetworkState with an empty pool and chunk cache, and a
// Dispatcher wired to this NetworkState's own routing table, pending-reply
// tracker, and sender (spec §9).
func New(selfID netid.PeerId, poolCfg pool.Config, client dispatch.ClientSink, view dispatch.ViewClientSink, bus *events.Bus) *NetworkState {
	ns := &NetworkState{
		SelfID:   selfID,
		Pool:     pool.New(selfID, poolCfg),
		Chunks:   chunkcache.New(),
		events:   bus,
		edges:    make(map[netid.PeerId]netid.Edge),
		adj:      make(map[netid.PeerId]map[netid.PeerId]struct{}),
		peers:    make(map[netid.PeerId]wire.PeerInfo),
		pending:  make(map[wire.Hash]struct{}),
		machines: map[wire.Tier]map[netid.PeerId]*peer.Machine{wire.T1: {}, wire.T2: {}},
	}
	ns.Dispatch = dispatch.New(dispatch.Deps{
		SelfID:  selfID,
		Client:  client,
		View:    view,
		Routing: ns,
		Pending: ns,
		Sender:  ns,
		Events:  bus,
	})
	return ns
}

// LocalEdge and SaveEdge implement peer.EdgeStore.
func (ns *NetworkState) LocalEdge(peerID netid.PeerId) (netid.Edge, bool) {
	ns.edgesMu.Lock()
	defer ns.edgesMu.Unlock()
	e, ok := ns.edges[peerID]
	return e, ok
}

// SaveEdge records e and extends the routing-table adjacency graph used by
// NextHop, both sides at once since an Edge is symmetric.
func (ns *NetworkState) SaveEdge(e netid.Edge) {
	ns.edgesMu.Lock()
	defer ns.edgesMu.Unlock()
	ns.saveEdgeLocked(e)
	ns.edgesMu.DeferUniqueUnaryFunc("routing-table-update", func() {
		ns.events.Emit(events.RoutingTableUpdate{})
	})
}

// SaveEdges applies a batch of edges under a single lock acquisition,
// emitting exactly one events.RoutingTableUpdate no matter how many edges
// it touched — a gossip sync can hand over hundreds of edges at once, and
// the observer doesn't need one event per edge.
func (ns *NetworkState) SaveEdges(es []netid.Edge) {
	ns.edgesMu.Lock()
	defer ns.edgesMu.Unlock()
	for _, e := range es {
		ns.saveEdgeLocked(e)
	}
	if len(es) > 0 {
		ns.edgesMu.DeferUniqueUnaryFunc("routing-table-update", func() {
			ns.events.Emit(events.RoutingTableUpdate{})
		})
	}
}

func (ns *NetworkState) saveEdgeLocked(e netid.Edge) {
	if other, ok := e.Other(ns.SelfID); ok {
		ns.edges[other] = e
	}
	ns.link(e.A, e.B)
}

func (ns *NetworkState) link(a, b netid.PeerId) {
	if ns.adj[a] == nil {
		ns.adj[a] = make(map[netid.PeerId]struct{})
	}
	if ns.adj[b] == nil {
		ns.adj[b] = make(map[netid.PeerId]struct{})
	}
	ns.adj[a][b] = struct{}{}
	ns.adj[b][a] = struct{}{}
}

// NextHop implements dispatch.RoutingTable: a breadth-first search over the
// known edge graph for the first hop on a shortest path to target. This is
// the routing-table graph traversal the spec calls "persistent peer store
// and routing-table graph maintenance — called, not specified" (§1); any
// node not yet reachable in the known graph has no route.
func (ns *NetworkState) NextHop(target netid.PeerId) (netid.PeerId, bool) {
	ns.edgesMu.Lock()
	defer ns.edgesMu.Unlock()

	if _, ok := ns.adj[ns.SelfID][target]; ok {
		return target, true
	}

	type frame struct {
		node  netid.PeerId
		first netid.PeerId
	}
	visited := map[netid.PeerId]struct{}{ns.SelfID: {}}
	queue := make([]frame, 0, len(ns.adj[ns.SelfID]))
	for n := range ns.adj[ns.SelfID] {
		visited[n] = struct{}{}
		queue = append(queue, frame{node: n, first: n})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.node == target {
			return cur.first, true
		}
		for n := range ns.adj[cur.node] {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, frame{node: n, first: cur.first})
		}
	}
	return netid.PeerId{}, false
}

// UpdatePeerInfo implements peer.PeerStoreSink.
func (ns *NetworkState) UpdatePeerInfo(info wire.PeerInfo) {
	ns.peersMu.Lock()
	defer ns.peersMu.Unlock()
	ns.peers[info.Id] = info
}

// PeerInfo returns what NetworkState knows about a peer, if anything.
func (ns *NetworkState) PeerInfo(id netid.PeerId) (wire.PeerInfo, bool) {
	ns.peersMu.Lock()
	defer ns.peersMu.Unlock()
	info, ok := ns.peers[id]
	return info, ok
}

// ExpectReply implements dispatch.PendingReplies' write side: call this
// when originating a Routed request with ExpectResponse()==true, so a
// later ReplyHash-addressed reply is recognized as ours.
func (ns *NetworkState) ExpectReply(hash wire.Hash) {
	ns.pendingMu.Lock()
	defer ns.pendingMu.Unlock()
	ns.pending[hash] = struct{}{}
}

// Take implements dispatch.PendingReplies.
func (ns *NetworkState) Take(hash wire.Hash) bool {
	ns.pendingMu.Lock()
	defer ns.pendingMu.Unlock()
	if _, ok := ns.pending[hash]; ok {
		delete(ns.pending, hash)
		return true
	}
	return false
}

// RegisterMachine lets a Ready PeerStateMachine be reached by SendTo. The
// caller that owns Machine construction calls this once a handshake
// completes, and UnregisterMachine on teardown.
func (ns *NetworkState) RegisterMachine(tier wire.Tier, peerID netid.PeerId, m *peer.Machine) {
	ns.machinesMu.Lock()
	defer ns.machinesMu.Unlock()
	ns.machines[tier][peerID] = m
}

// UnregisterMachine removes a Machine registered under RegisterMachine.
func (ns *NetworkState) UnregisterMachine(tier wire.Tier, peerID netid.PeerId) {
	ns.machinesMu.Lock()
	defer ns.machinesMu.Unlock()
	delete(ns.machines[tier], peerID)
}

// SendTo implements dispatch.Sender: deliver msg to peerID's live Machine
// on tier, if one is registered.
func (ns *NetworkState) SendTo(peerID netid.PeerId, tier wire.Tier, msg wire.Message) error {
	ns.machinesMu.Lock()
	m, ok := ns.machines[tier][peerID]
	ns.machinesMu.Unlock()
	if !ok {
		return nil
	}
	return m.Send(msg)
}
