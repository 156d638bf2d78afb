package wire

import "github.com/shardmesh/netcore/netid"

// RoutedTarget is a peer id or a reply hash (spec §3 RoutedMessage).
// Exactly one of PeerId/ReplyHash is set.
type RoutedTarget struct {
	PeerId    netid.PeerId
	IsPeerId  bool
	ReplyHash Hash
}

func TargetPeer(id netid.PeerId) RoutedTarget {
	return RoutedTarget{PeerId: id, IsPeerId: true}
}

func TargetHash(h Hash) RoutedTarget {
	return RoutedTarget{ReplyHash: h}
}

// RoutedMessage is addressed by peer id or reply-hash, forwarded along a
// routing table, TTL-limited (spec §3, GLOSSARY).
type RoutedMessage struct {
	Author    netid.PeerId
	Target    RoutedTarget
	Signature []byte
	TTL       uint8
	Body      RoutedMessageBody
	Hash      Hash
}

// DedupKey is the (author, target, signature) triple used to drop
// duplicate routed messages seen within the last 50ms (spec §4.5 step 4).
type DedupKey struct {
	Author    netid.PeerId
	Target    RoutedTarget
	Signature string // raw bytes aren't comparable; stored as a string key
}

func (m RoutedMessage) DedupKey() DedupKey {
	return DedupKey{Author: m.Author, Target: m.Target, Signature: string(m.Signature)}
}

// RoutedMessageBody is the payload carried by a RoutedMessage (spec §3).
type RoutedMessageBody interface {
	routedMessageBody()
	// ExpectResponse reports whether the receiver should remember a
	// reverse route to answer this body by hash (spec §4.6).
	ExpectResponse() bool
}

type Ping struct {
	Nonce uint64
}

func (Ping) routedMessageBody()    {}
func (Ping) ExpectResponse() bool  { return true }

type Pong struct {
	Nonce uint64
}

func (Pong) routedMessageBody()   {}
func (Pong) ExpectResponse() bool { return false }

type TxStatusRequest struct {
	TxHash    Hash
	SignerId  string
}

func (TxStatusRequest) routedMessageBody()   {}
func (TxStatusRequest) ExpectResponse() bool { return true }

type TxStatusResponse struct {
	TxHash Hash
	Status []byte
}

func (TxStatusResponse) routedMessageBody()   {}
func (TxStatusResponse) ExpectResponse() bool { return false }

type StateRequestHeader struct {
	ShardId ShardId
	SyncHash Hash
}

func (StateRequestHeader) routedMessageBody()   {}
func (StateRequestHeader) ExpectResponse() bool { return true }

type StateRequestPart struct {
	ShardId  ShardId
	SyncHash Hash
	PartId   uint64
}

func (StateRequestPart) routedMessageBody()   {}
func (StateRequestPart) ExpectResponse() bool { return true }

type StateResponse struct {
	ShardId ShardId
	Payload []byte
}

func (StateResponse) routedMessageBody()   {}
func (StateResponse) ExpectResponse() bool { return false }

type PartialEncodedChunkRequest struct {
	ChunkHash Hash
	PartOrds  []PartOrd
	ShardIds  []ShardId
}

func (PartialEncodedChunkRequest) routedMessageBody()   {}
func (PartialEncodedChunkRequest) ExpectResponse() bool { return true }

type PartialEncodedChunkResponse struct {
	ChunkHash Hash
	Parts     []ChunkPart
	Receipts  []ReceiptProof
}

func (PartialEncodedChunkResponse) routedMessageBody()   {}
func (PartialEncodedChunkResponse) ExpectResponse() bool { return false }

// PartialEncodedChunkForward re-sends a subset of parts/receipts another
// validator is missing, without a corresponding request.
type PartialEncodedChunkForward struct {
	ChunkHash Hash
	Parts     []ChunkPart
	Receipts  []ReceiptProof
}

func (PartialEncodedChunkForward) routedMessageBody()   {}
func (PartialEncodedChunkForward) ExpectResponse() bool { return false }

// PartialEncodedChunkMessage is the chunk-producer's initial broadcast of a
// chunk's header plus whatever parts/receipts it chooses to push eagerly.
type PartialEncodedChunkMessage struct {
	Header   ChunkHeader
	Parts    []ChunkPart
	Receipts []ReceiptProof
}

func (PartialEncodedChunkMessage) routedMessageBody()   {}
func (PartialEncodedChunkMessage) ExpectResponse() bool { return false }

type BlockApproval struct {
	BlockHash Hash
	AccountId string
	Signature []byte
}

func (BlockApproval) routedMessageBody()   {}
func (BlockApproval) ExpectResponse() bool { return false }

type ForwardTx struct {
	Raw []byte
}

func (ForwardTx) routedMessageBody()   {}
func (ForwardTx) ExpectResponse() bool { return false }
