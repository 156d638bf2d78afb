// Package wire defines the on-wire message union routed between peers: the
// PeerMessage tagged union, tiers, handshake payloads, and routed-message
// bodies (spec §3 DATA MODEL, §6 EXTERNAL INTERFACES).
package wire

import "github.com/shardmesh/netcore/netid"

// Hash is a content hash: of a chunk header, a block, or a routed message.
type Hash [32]byte

// BlockHeight and ShardId are the two scalar indices the chunk cache and
// routing logic key off of.
type BlockHeight uint64
type ShardId uint64

// PartOrd identifies one part of an erasure-coded chunk (spec §3
// ChunkCacheEntry). The coding scheme itself is out of scope (§1
// Non-goals); this package only needs the ordinal.
type PartOrd uint64

// Tier is the admission class of a connection (spec §3, §4.5).
type Tier uint8

const (
	T1 Tier = iota
	T2
)

func (t Tier) String() string {
	if t == T1 {
		return "T1"
	}
	return "T2"
}

// ChainInfo accompanies a Handshake so the remote can sanity-check genesis
// and advertise what it tracks (spec §6 "Handshake payload").
type ChainInfo struct {
	GenesisId     Hash
	Height        uint64
	TrackedShards []ShardId
	Archival      bool
}

// PeerInfo is what PeersRequest/PeersResponse and the routing table
// exchange about a remote node. The routing-table graph itself lives in an
// external collaborator (spec §1); this is just the wire shape.
type PeerInfo struct {
	Id         netid.PeerId
	Addr       string
	AccountId  string
}

// BlockHeader is the opaque-to-us subset of a block header the network
// layer needs to make admission and routing decisions; block format is out
// of scope (spec §1 Non-goals) beyond these fields.
type BlockHeader struct {
	Hash          Hash
	PrevHash      Hash
	Height        uint64
	EpochId       Hash
}

// ChunkHeader is the header of a partial-encoded chunk (spec §3
// ChunkCacheEntry / GLOSSARY). Fields beyond what the cache needs to
// aggregate parts/receipts and enforce the height horizon are out of scope.
type ChunkHeader struct {
	ChunkHash     Hash
	PrevBlockHash Hash
	Height        BlockHeight
	ShardId       ShardId
	PartsCount    uint64
	ShardsCount   uint64
}

// ChunkPart is one erasure-coded part of a chunk.
type ChunkPart struct {
	Ord     PartOrd
	Payload []byte
}

// ReceiptProof is one shard's receipts for a chunk, with the Merkle proof
// that it is included — the proof contents are opaque here (out of scope).
type ReceiptProof struct {
	ToShardId ShardId
	Payload   []byte
}
