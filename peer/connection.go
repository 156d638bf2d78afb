package peer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/wire"
)

// blockTrackerSize bounds the recent-block-hash memory a Connection keeps
// for the sending policy (spec §4.5 "Sending policy"): retransmission
// suppression and BlockRequest bookkeeping don't need unbounded history,
// just enough to cover in-flight traffic.
const blockTrackerSize = 256

// Direction is which side dialed the connection.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// Connection is the live, handshaked session a Machine owns once it
// reaches Ready (spec §3 "Connection"). ChainHeight is updated atomically
// from observed block headers; everything else is set once at handshake
// completion and read thereafter.
type Connection struct {
	Tier      wire.Tier
	Remote    wire.PeerInfo
	Direction Direction
	Edge      netid.Edge

	Stats Stats

	lastRx      atomic.Int64 // unix nanos
	ChainHeight atomic.Int64 // updated from observed BlockHeaders

	EstablishedAt time.Time

	trackMu       sync.Mutex
	receivedBlock map[wire.Hash]struct{}
	requestedBlock map[wire.Hash]struct{}
}

// newConnection builds a Connection with its sending-policy trackers ready.
func newConnection(tier wire.Tier, remote wire.PeerInfo, dir Direction, edge netid.Edge) *Connection {
	return &Connection{
		Tier:           tier,
		Remote:         remote,
		Direction:      dir,
		Edge:           edge,
		EstablishedAt:  time.Now(),
		receivedBlock:  make(map[wire.Hash]struct{}),
		requestedBlock: make(map[wire.Hash]struct{}),
	}
}

// LastReceived returns the wall-clock time of the last inbound frame.
func (c *Connection) LastReceived() time.Time {
	return time.Unix(0, c.lastRx.Load())
}

// MarkReceived records now as the last time an inbound frame arrived.
func (c *Connection) MarkReceived(now time.Time) {
	c.lastRx.Store(now.UnixNano())
}

// MarkBlockReceived records that this peer delivered block h to us, so a
// later attempt to send it back the same block can be suppressed (spec
// §4.5 "Sending policy").
func (c *Connection) MarkBlockReceived(h wire.Hash) {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()
	if len(c.receivedBlock) >= blockTrackerSize {
		for k := range c.receivedBlock {
			delete(c.receivedBlock, k)
			break
		}
	}
	c.receivedBlock[h] = struct{}{}
}

// HasReceivedBlock reports whether this peer already delivered block h.
func (c *Connection) HasReceivedBlock(h wire.Hash) bool {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()
	_, ok := c.receivedBlock[h]
	return ok
}

// RecordBlockRequest notes that we asked this peer for block h.
func (c *Connection) RecordBlockRequest(h wire.Hash) {
	c.trackMu.Lock()
	defer c.trackMu.Unlock()
	if len(c.requestedBlock) >= blockTrackerSize {
		for k := range c.requestedBlock {
			delete(c.requestedBlock, k)
			break
		}
	}
	c.requestedBlock[h] = struct{}{}
}
