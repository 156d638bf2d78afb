package wire

import "github.com/shardmesh/netcore/netid"

// MessageKind is the stable on-wire discriminant for each PeerMessage
// variant (spec §3, §6). Both the Proto and Borsh encodings agree on this
// numbering so autodetection and tier checks don't need to know which
// encoding produced a decoded Message.
type MessageKind uint8

const (
	KindHandshake MessageKind = iota
	KindHandshakeFailure
	KindLastEdge
	KindPeersRequest
	KindPeersResponse
	KindSyncRoutingTable
	KindSyncAccountsData
	KindRequestUpdateNonce
	KindResponseUpdateNonce
	KindBlock
	KindBlockRequest
	KindBlockHeadersRequest
	KindBlockHeaders
	KindTransaction
	KindRouted
	KindChallenge
	KindEpochSyncRequest
	KindEpochSyncResponse
	KindDisconnect
)

func (k MessageKind) String() string {
	switch k {
	case KindHandshake:
		return "Handshake"
	case KindHandshakeFailure:
		return "HandshakeFailure"
	case KindLastEdge:
		return "LastEdge"
	case KindPeersRequest:
		return "PeersRequest"
	case KindPeersResponse:
		return "PeersResponse"
	case KindSyncRoutingTable:
		return "SyncRoutingTable"
	case KindSyncAccountsData:
		return "SyncAccountsData"
	case KindRequestUpdateNonce:
		return "RequestUpdateNonce"
	case KindResponseUpdateNonce:
		return "ResponseUpdateNonce"
	case KindBlock:
		return "Block"
	case KindBlockRequest:
		return "BlockRequest"
	case KindBlockHeadersRequest:
		return "BlockHeadersRequest"
	case KindBlockHeaders:
		return "BlockHeaders"
	case KindTransaction:
		return "Transaction"
	case KindRouted:
		return "Routed"
	case KindChallenge:
		return "Challenge"
	case KindEpochSyncRequest:
		return "EpochSyncRequest"
	case KindEpochSyncResponse:
		return "EpochSyncResponse"
	case KindDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// Message is the tagged union of everything that can ride a FramedStream
// once decoded by the MessageCodec (spec §3 PeerMessage).
type Message interface {
	Kind() MessageKind
}

type Handshake struct {
	Tier                   Tier
	ProtocolVersion        uint32
	OldestSupportedVersion uint32
	SenderPeerId           netid.PeerId
	TargetPeerId           netid.PeerId
	SenderListenPort       uint16 // 0 means absent
	SenderChainInfo        ChainInfo
	PartialEdgeInfo        netid.PartialEdgeInfo
}

func (Handshake) Kind() MessageKind { return KindHandshake }

type HandshakeFailure struct {
	Reason HandshakeFailureReason
}

func (HandshakeFailure) Kind() MessageKind { return KindHandshakeFailure }

type LastEdge struct {
	Edge netid.Edge
}

func (LastEdge) Kind() MessageKind { return KindLastEdge }

type PeersRequest struct{}

func (PeersRequest) Kind() MessageKind { return KindPeersRequest }

type PeersResponse struct {
	Peers []PeerInfo
}

func (PeersResponse) Kind() MessageKind { return KindPeersResponse }

type SyncRoutingTable struct {
	Edges []netid.Edge
}

func (SyncRoutingTable) Kind() MessageKind { return KindSyncRoutingTable }

type SyncAccountsData struct {
	IncrementalData [][]byte
	RequestFullSync bool
}

func (SyncAccountsData) Kind() MessageKind { return KindSyncAccountsData }

type RequestUpdateNonce struct {
	Info netid.PartialEdgeInfo
}

func (RequestUpdateNonce) Kind() MessageKind { return KindRequestUpdateNonce }

type ResponseUpdateNonce struct {
	Edge netid.Edge
}

func (ResponseUpdateNonce) Kind() MessageKind { return KindResponseUpdateNonce }

type Block struct {
	Header BlockHeader
	Body   []byte
}

func (Block) Kind() MessageKind { return KindBlock }

type BlockRequest struct {
	Hash Hash
}

func (BlockRequest) Kind() MessageKind { return KindBlockRequest }

type BlockHeadersRequest struct {
	Hashes []Hash
}

func (BlockHeadersRequest) Kind() MessageKind { return KindBlockHeadersRequest }

type BlockHeaders struct {
	Headers []BlockHeader
}

func (BlockHeaders) Kind() MessageKind { return KindBlockHeaders }

type Transaction struct {
	Raw []byte
}

func (Transaction) Kind() MessageKind { return KindTransaction }

type Routed struct {
	Message RoutedMessage
}

func (Routed) Kind() MessageKind { return KindRouted }

type Challenge struct {
	Raw []byte
}

func (Challenge) Kind() MessageKind { return KindChallenge }

type EpochSyncRequest struct {
	EpochId Hash
}

func (EpochSyncRequest) Kind() MessageKind { return KindEpochSyncRequest }

type EpochSyncResponse struct {
	Raw []byte
}

func (EpochSyncResponse) Kind() MessageKind { return KindEpochSyncResponse }

type Disconnect struct {
	Reason string
}

func (Disconnect) Kind() MessageKind { return KindDisconnect }
