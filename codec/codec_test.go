package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/wire"
)

func samplePeerId(fill byte) netid.PeerId {
	var id netid.PeerId
	for i := range id {
		id[i] = fill
	}
	return id
}

func sampleHash(fill byte) wire.Hash {
	var h wire.Hash
	for i := range h {
		h[i] = fill
	}
	return h
}

func roundTripMessages() []wire.Message {
	return []wire.Message{
		wire.PeersRequest{},
		wire.Disconnect{Reason: "banned"},
		wire.BlockRequest{Hash: sampleHash(9)},
		wire.Handshake{
			Tier:                   wire.T2,
			ProtocolVersion:        67,
			OldestSupportedVersion: 60,
			SenderPeerId:           samplePeerId(1),
			TargetPeerId:           samplePeerId(2),
			SenderListenPort:       24567,
			SenderChainInfo: wire.ChainInfo{
				GenesisId:     sampleHash(3),
				Height:        4200,
				TrackedShards: []wire.ShardId{0, 1, 2},
				Archival:      true,
			},
			PartialEdgeInfo: netid.PartialEdgeInfo{Nonce: 77, Signature: []byte{1, 2, 3, 4}},
		},
		wire.HandshakeFailure{Reason: wire.ProtocolVersionMismatchReason{Version: 67, Oldest: 60}},
		wire.HandshakeFailure{Reason: wire.GenesisMismatchReason{Genesis: sampleHash(5)}},
		wire.HandshakeFailure{Reason: wire.InvalidTargetReason{}},
		wire.PeersResponse{Peers: []wire.PeerInfo{
			{Id: samplePeerId(6), Addr: "127.0.0.1:24567", AccountId: "alice.near"},
		}},
		wire.SyncAccountsData{IncrementalData: [][]byte{{1}, {2, 3}}, RequestFullSync: true},
		wire.Block{Header: wire.BlockHeader{Hash: sampleHash(7), PrevHash: sampleHash(8), Height: 10, EpochId: sampleHash(9)}, Body: []byte("block-body")},
		wire.Transaction{Raw: []byte("tx-bytes")},
		wire.Routed{Message: wire.RoutedMessage{
			Author:    samplePeerId(10),
			Target:    wire.TargetPeer(samplePeerId(11)),
			Signature: []byte{9, 9, 9},
			TTL:       5,
			Hash:      sampleHash(12),
			Body:      wire.Ping{Nonce: 42},
		}},
		wire.Routed{Message: wire.RoutedMessage{
			Author:    samplePeerId(13),
			Target:    wire.TargetHash(sampleHash(14)),
			Signature: []byte{8},
			TTL:       1,
			Hash:      sampleHash(15),
			Body: wire.PartialEncodedChunkMessage{
				Header: wire.ChunkHeader{ChunkHash: sampleHash(16), PrevBlockHash: sampleHash(17), Height: 5, ShardId: 2, PartsCount: 4, ShardsCount: 2},
				Parts:  []wire.ChunkPart{{Ord: 0, Payload: []byte("p0")}, {Ord: 1, Payload: []byte("p1")}},
				Receipts: []wire.ReceiptProof{
					{ToShardId: 1, Payload: []byte("r1")},
				},
			},
		}},
		wire.Routed{Message: wire.RoutedMessage{
			Author:    samplePeerId(18),
			Target:    wire.TargetPeer(samplePeerId(19)),
			Signature: []byte{7},
			TTL:       3,
			Hash:      sampleHash(20),
			Body:      wire.BlockApproval{BlockHash: sampleHash(21), AccountId: "bob.near", Signature: []byte{1, 2}},
		}},
	}
}

func TestBorshRoundTrip(t *testing.T) {
	for _, msg := range roundTripMessages() {
		data, err := Encode(msg, Borsh)
		require.NoError(t, err, "encode %s", msg.Kind())
		got, err := Decode(data, Borsh)
		require.NoError(t, err, "decode %s", msg.Kind())
		require.Equal(t, msg, got, "round trip %s", msg.Kind())
	}
}

func TestProtoRoundTrip(t *testing.T) {
	for _, msg := range roundTripMessages() {
		data, err := Encode(msg, Proto)
		require.NoError(t, err, "encode %s", msg.Kind())
		got, err := Decode(data, Proto)
		require.NoError(t, err, "decode %s", msg.Kind())
		require.Equal(t, msg, got, "round trip %s", msg.Kind())
	}
}

func TestDetectAndDecodePrefersProto(t *testing.T) {
	msg := wire.Disconnect{Reason: "bye"}

	protoBytes, err := Encode(msg, Proto)
	require.NoError(t, err)
	got, enc, err := DetectAndDecode(protoBytes)
	require.NoError(t, err)
	require.Equal(t, Proto, enc)
	require.Equal(t, msg, got)

	borshBytes, err := Encode(msg, Borsh)
	require.NoError(t, err)
	got, enc, err = DetectAndDecode(borshBytes)
	require.NoError(t, err)
	require.Equal(t, Borsh, enc)
	require.Equal(t, msg, got)
}

func TestDetectAndDecodeRejectsGarbage(t *testing.T) {
	_, _, err := DetectAndDecode([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
