package codec

import (
	"fmt"

	"github.com/shardmesh/netcore/internal/xborsh"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/wire"
)

func marshalBorsh(msg wire.Message) ([]byte, error) {
	w := xborsh.NewWriter()
	w.WriteU8(uint8(msg.Kind()))
	if err := writeBorshBody(w, msg); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func unmarshalBorsh(data []byte) (wire.Message, error) {
	r := xborsh.NewReader(data)
	kindByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	msg, err := readBorshBody(r, wire.MessageKind(kindByte))
	if err != nil {
		return nil, err
	}
	if !r.Done() {
		return nil, fmt.Errorf("codec: trailing bytes after borsh %s", msg.Kind())
	}
	return msg, nil
}

func writePeerId(w *xborsh.Writer, id netid.PeerId) { w.WriteFixed(id[:]) }

func readPeerId(r *xborsh.Reader) (netid.PeerId, error) {
	var id netid.PeerId
	b, err := r.ReadFixed(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

func writeHash(w *xborsh.Writer, h wire.Hash) { w.WriteFixed(h[:]) }

func readHash(r *xborsh.Reader) (wire.Hash, error) {
	var h wire.Hash
	b, err := r.ReadFixed(len(h))
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func writePartialEdgeInfo(w *xborsh.Writer, info netid.PartialEdgeInfo) {
	w.WriteU64(info.Nonce)
	w.WriteBytes(info.Signature)
}

func readPartialEdgeInfo(r *xborsh.Reader) (netid.PartialEdgeInfo, error) {
	var info netid.PartialEdgeInfo
	nonce, err := r.ReadU64()
	if err != nil {
		return info, err
	}
	sig, err := r.ReadBytes()
	if err != nil {
		return info, err
	}
	info.Nonce = nonce
	info.Signature = sig
	return info, nil
}

func writeEdge(w *xborsh.Writer, e netid.Edge) {
	writePeerId(w, e.A)
	writePeerId(w, e.B)
	w.WriteU64(e.Nonce)
	w.WriteBytes(e.SignatureA)
	w.WriteBytes(e.SignatureB)
	w.WriteU8(uint8(e.State))
}

func readEdge(r *xborsh.Reader) (netid.Edge, error) {
	var e netid.Edge
	var err error
	if e.A, err = readPeerId(r); err != nil {
		return e, err
	}
	if e.B, err = readPeerId(r); err != nil {
		return e, err
	}
	if e.Nonce, err = r.ReadU64(); err != nil {
		return e, err
	}
	if e.SignatureA, err = r.ReadBytes(); err != nil {
		return e, err
	}
	if e.SignatureB, err = r.ReadBytes(); err != nil {
		return e, err
	}
	state, err := r.ReadU8()
	if err != nil {
		return e, err
	}
	e.State = netid.EdgeState(state)
	return e, nil
}

func writeChainInfo(w *xborsh.Writer, ci wire.ChainInfo) {
	writeHash(w, ci.GenesisId)
	w.WriteU64(ci.Height)
	w.WriteU32(uint32(len(ci.TrackedShards)))
	for _, s := range ci.TrackedShards {
		w.WriteU64(uint64(s))
	}
	w.WriteBool(ci.Archival)
}

func readChainInfo(r *xborsh.Reader) (wire.ChainInfo, error) {
	var ci wire.ChainInfo
	var err error
	if ci.GenesisId, err = readHash(r); err != nil {
		return ci, err
	}
	if ci.Height, err = r.ReadU64(); err != nil {
		return ci, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return ci, err
	}
	ci.TrackedShards = make([]wire.ShardId, n)
	for i := range ci.TrackedShards {
		v, err := r.ReadU64()
		if err != nil {
			return ci, err
		}
		ci.TrackedShards[i] = wire.ShardId(v)
	}
	if ci.Archival, err = r.ReadBool(); err != nil {
		return ci, err
	}
	return ci, nil
}

func writeBlockHeader(w *xborsh.Writer, h wire.BlockHeader) {
	writeHash(w, h.Hash)
	writeHash(w, h.PrevHash)
	w.WriteU64(h.Height)
	writeHash(w, h.EpochId)
}

func readBlockHeader(r *xborsh.Reader) (wire.BlockHeader, error) {
	var h wire.BlockHeader
	var err error
	if h.Hash, err = readHash(r); err != nil {
		return h, err
	}
	if h.PrevHash, err = readHash(r); err != nil {
		return h, err
	}
	if h.Height, err = r.ReadU64(); err != nil {
		return h, err
	}
	if h.EpochId, err = readHash(r); err != nil {
		return h, err
	}
	return h, nil
}

func writeChunkHeader(w *xborsh.Writer, h wire.ChunkHeader) {
	writeHash(w, h.ChunkHash)
	writeHash(w, h.PrevBlockHash)
	w.WriteU64(uint64(h.Height))
	w.WriteU64(uint64(h.ShardId))
	w.WriteU64(h.PartsCount)
	w.WriteU64(h.ShardsCount)
}

func readChunkHeader(r *xborsh.Reader) (wire.ChunkHeader, error) {
	var h wire.ChunkHeader
	var err error
	if h.ChunkHash, err = readHash(r); err != nil {
		return h, err
	}
	if h.PrevBlockHash, err = readHash(r); err != nil {
		return h, err
	}
	height, err := r.ReadU64()
	if err != nil {
		return h, err
	}
	h.Height = wire.BlockHeight(height)
	shard, err := r.ReadU64()
	if err != nil {
		return h, err
	}
	h.ShardId = wire.ShardId(shard)
	if h.PartsCount, err = r.ReadU64(); err != nil {
		return h, err
	}
	if h.ShardsCount, err = r.ReadU64(); err != nil {
		return h, err
	}
	return h, nil
}

func writeChunkParts(w *xborsh.Writer, parts []wire.ChunkPart) {
	w.WriteU32(uint32(len(parts)))
	for _, p := range parts {
		w.WriteU64(uint64(p.Ord))
		w.WriteBytes(p.Payload)
	}
}

func readChunkParts(r *xborsh.Reader) ([]wire.ChunkPart, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	parts := make([]wire.ChunkPart, n)
	for i := range parts {
		ord, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		parts[i] = wire.ChunkPart{Ord: wire.PartOrd(ord), Payload: payload}
	}
	return parts, nil
}

func writeReceipts(w *xborsh.Writer, receipts []wire.ReceiptProof) {
	w.WriteU32(uint32(len(receipts)))
	for _, rc := range receipts {
		w.WriteU64(uint64(rc.ToShardId))
		w.WriteBytes(rc.Payload)
	}
}

func readReceipts(r *xborsh.Reader) ([]wire.ReceiptProof, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	receipts := make([]wire.ReceiptProof, n)
	for i := range receipts {
		shard, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		receipts[i] = wire.ReceiptProof{ToShardId: wire.ShardId(shard), Payload: payload}
	}
	return receipts, nil
}

func writeRoutedTarget(w *xborsh.Writer, t wire.RoutedTarget) {
	w.WriteBool(t.IsPeerId)
	if t.IsPeerId {
		writePeerId(w, t.PeerId)
	} else {
		writeHash(w, t.ReplyHash)
	}
}

func readRoutedTarget(r *xborsh.Reader) (wire.RoutedTarget, error) {
	isPeer, err := r.ReadBool()
	if err != nil {
		return wire.RoutedTarget{}, err
	}
	if isPeer {
		id, err := readPeerId(r)
		if err != nil {
			return wire.RoutedTarget{}, err
		}
		return wire.TargetPeer(id), nil
	}
	h, err := readHash(r)
	if err != nil {
		return wire.RoutedTarget{}, err
	}
	return wire.TargetHash(h), nil
}

func writeBorshBody(w *xborsh.Writer, msg wire.Message) error {
	switch m := msg.(type) {
	case wire.Handshake:
		w.WriteU8(uint8(m.Tier))
		w.WriteU32(m.ProtocolVersion)
		w.WriteU32(m.OldestSupportedVersion)
		writePeerId(w, m.SenderPeerId)
		writePeerId(w, m.TargetPeerId)
		w.WriteU16(m.SenderListenPort)
		writeChainInfo(w, m.SenderChainInfo)
		writePartialEdgeInfo(w, m.PartialEdgeInfo)
	case wire.HandshakeFailure:
		writeHandshakeFailureReason(w, m.Reason)
	case wire.LastEdge:
		writeEdge(w, m.Edge)
	case wire.PeersRequest:
	case wire.PeersResponse:
		w.WriteU32(uint32(len(m.Peers)))
		for _, p := range m.Peers {
			writePeerId(w, p.Id)
			w.WriteString(p.Addr)
			w.WriteString(p.AccountId)
		}
	case wire.SyncRoutingTable:
		w.WriteU32(uint32(len(m.Edges)))
		for _, e := range m.Edges {
			writeEdge(w, e)
		}
	case wire.SyncAccountsData:
		w.WriteU32(uint32(len(m.IncrementalData)))
		for _, d := range m.IncrementalData {
			w.WriteBytes(d)
		}
		w.WriteBool(m.RequestFullSync)
	case wire.RequestUpdateNonce:
		writePartialEdgeInfo(w, m.Info)
	case wire.ResponseUpdateNonce:
		writeEdge(w, m.Edge)
	case wire.Block:
		writeBlockHeader(w, m.Header)
		w.WriteBytes(m.Body)
	case wire.BlockRequest:
		writeHash(w, m.Hash)
	case wire.BlockHeadersRequest:
		w.WriteU32(uint32(len(m.Hashes)))
		for _, h := range m.Hashes {
			writeHash(w, h)
		}
	case wire.BlockHeaders:
		w.WriteU32(uint32(len(m.Headers)))
		for _, h := range m.Headers {
			writeBlockHeader(w, h)
		}
	case wire.Transaction:
		w.WriteBytes(m.Raw)
	case wire.Routed:
		writePeerId(w, m.Message.Author)
		writeRoutedTarget(w, m.Message.Target)
		w.WriteBytes(m.Message.Signature)
		w.WriteU8(m.Message.TTL)
		writeHash(w, m.Message.Hash)
		w.WriteU8(uint8(wire.BodyKind(m.Message.Body)))
		writeRoutedBody(w, m.Message.Body)
	case wire.Challenge:
		w.WriteBytes(m.Raw)
	case wire.EpochSyncRequest:
		writeHash(w, m.EpochId)
	case wire.EpochSyncResponse:
		w.WriteBytes(m.Raw)
	case wire.Disconnect:
		w.WriteString(m.Reason)
	default:
		return fmt.Errorf("codec: borsh: unhandled message type %T", msg)
	}
	return nil
}

func readBorshBody(r *xborsh.Reader, kind wire.MessageKind) (wire.Message, error) {
	switch kind {
	case wire.KindHandshake:
		tier, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		pv, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		oldest, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		sender, err := readPeerId(r)
		if err != nil {
			return nil, err
		}
		target, err := readPeerId(r)
		if err != nil {
			return nil, err
		}
		port, err := r.ReadU16()
		if err != nil {
			return nil, err
		}
		ci, err := readChainInfo(r)
		if err != nil {
			return nil, err
		}
		info, err := readPartialEdgeInfo(r)
		if err != nil {
			return nil, err
		}
		return wire.Handshake{
			Tier:                   wire.Tier(tier),
			ProtocolVersion:        pv,
			OldestSupportedVersion: oldest,
			SenderPeerId:           sender,
			TargetPeerId:           target,
			SenderListenPort:       port,
			SenderChainInfo:        ci,
			PartialEdgeInfo:        info,
		}, nil
	case wire.KindHandshakeFailure:
		reason, err := readHandshakeFailureReason(r)
		if err != nil {
			return nil, err
		}
		return wire.HandshakeFailure{Reason: reason}, nil
	case wire.KindLastEdge:
		e, err := readEdge(r)
		if err != nil {
			return nil, err
		}
		return wire.LastEdge{Edge: e}, nil
	case wire.KindPeersRequest:
		return wire.PeersRequest{}, nil
	case wire.KindPeersResponse:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		peers := make([]wire.PeerInfo, n)
		for i := range peers {
			id, err := readPeerId(r)
			if err != nil {
				return nil, err
			}
			addr, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			acct, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			peers[i] = wire.PeerInfo{Id: id, Addr: addr, AccountId: acct}
		}
		return wire.PeersResponse{Peers: peers}, nil
	case wire.KindSyncRoutingTable:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		edges := make([]netid.Edge, n)
		for i := range edges {
			edges[i], err = readEdge(r)
			if err != nil {
				return nil, err
			}
		}
		return wire.SyncRoutingTable{Edges: edges}, nil
	case wire.KindSyncAccountsData:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		data := make([][]byte, n)
		for i := range data {
			data[i], err = r.ReadBytes()
			if err != nil {
				return nil, err
			}
		}
		full, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		return wire.SyncAccountsData{IncrementalData: data, RequestFullSync: full}, nil
	case wire.KindRequestUpdateNonce:
		info, err := readPartialEdgeInfo(r)
		if err != nil {
			return nil, err
		}
		return wire.RequestUpdateNonce{Info: info}, nil
	case wire.KindResponseUpdateNonce:
		e, err := readEdge(r)
		if err != nil {
			return nil, err
		}
		return wire.ResponseUpdateNonce{Edge: e}, nil
	case wire.KindBlock:
		h, err := readBlockHeader(r)
		if err != nil {
			return nil, err
		}
		body, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.Block{Header: h, Body: body}, nil
	case wire.KindBlockRequest:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		return wire.BlockRequest{Hash: h}, nil
	case wire.KindBlockHeadersRequest:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		hashes := make([]wire.Hash, n)
		for i := range hashes {
			hashes[i], err = readHash(r)
			if err != nil {
				return nil, err
			}
		}
		return wire.BlockHeadersRequest{Hashes: hashes}, nil
	case wire.KindBlockHeaders:
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		headers := make([]wire.BlockHeader, n)
		for i := range headers {
			headers[i], err = readBlockHeader(r)
			if err != nil {
				return nil, err
			}
		}
		return wire.BlockHeaders{Headers: headers}, nil
	case wire.KindTransaction:
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.Transaction{Raw: raw}, nil
	case wire.KindRouted:
		author, err := readPeerId(r)
		if err != nil {
			return nil, err
		}
		target, err := readRoutedTarget(r)
		if err != nil {
			return nil, err
		}
		sig, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		ttl, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		bodyKindByte, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		body, err := readRoutedBody(r, wire.RoutedBodyKind(bodyKindByte))
		if err != nil {
			return nil, err
		}
		return wire.Routed{Message: wire.RoutedMessage{
			Author: author, Target: target, Signature: sig, TTL: ttl, Hash: h, Body: body,
		}}, nil
	case wire.KindChallenge:
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.Challenge{Raw: raw}, nil
	case wire.KindEpochSyncRequest:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		return wire.EpochSyncRequest{EpochId: h}, nil
	case wire.KindEpochSyncResponse:
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.EpochSyncResponse{Raw: raw}, nil
	case wire.KindDisconnect:
		reason, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return wire.Disconnect{Reason: reason}, nil
	default:
		return nil, fmt.Errorf("codec: borsh: unknown message kind %d", kind)
	}
}

func writeHandshakeFailureReason(w *xborsh.Writer, reason wire.HandshakeFailureReason) {
	switch r := reason.(type) {
	case wire.ProtocolVersionMismatchReason:
		w.WriteU8(0)
		w.WriteU32(r.Version)
		w.WriteU32(r.Oldest)
	case wire.GenesisMismatchReason:
		w.WriteU8(1)
		writeHash(w, r.Genesis)
	case wire.InvalidTargetReason:
		w.WriteU8(2)
	}
}

func readHandshakeFailureReason(r *xborsh.Reader) (wire.HandshakeFailureReason, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		o, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		return wire.ProtocolVersionMismatchReason{Version: v, Oldest: o}, nil
	case 1:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		return wire.GenesisMismatchReason{Genesis: h}, nil
	case 2:
		return wire.InvalidTargetReason{}, nil
	default:
		return nil, fmt.Errorf("codec: borsh: unknown handshake failure reason tag %d", tag)
	}
}

func writeRoutedBody(w *xborsh.Writer, body wire.RoutedMessageBody) {
	switch b := body.(type) {
	case wire.Ping:
		w.WriteU64(b.Nonce)
	case wire.Pong:
		w.WriteU64(b.Nonce)
	case wire.TxStatusRequest:
		writeHash(w, b.TxHash)
		w.WriteString(b.SignerId)
	case wire.TxStatusResponse:
		writeHash(w, b.TxHash)
		w.WriteBytes(b.Status)
	case wire.StateRequestHeader:
		w.WriteU64(uint64(b.ShardId))
		writeHash(w, b.SyncHash)
	case wire.StateRequestPart:
		w.WriteU64(uint64(b.ShardId))
		writeHash(w, b.SyncHash)
		w.WriteU64(b.PartId)
	case wire.StateResponse:
		w.WriteU64(uint64(b.ShardId))
		w.WriteBytes(b.Payload)
	case wire.PartialEncodedChunkRequest:
		writeHash(w, b.ChunkHash)
		w.WriteU32(uint32(len(b.PartOrds)))
		for _, o := range b.PartOrds {
			w.WriteU64(uint64(o))
		}
		w.WriteU32(uint32(len(b.ShardIds)))
		for _, s := range b.ShardIds {
			w.WriteU64(uint64(s))
		}
	case wire.PartialEncodedChunkResponse:
		writeHash(w, b.ChunkHash)
		writeChunkParts(w, b.Parts)
		writeReceipts(w, b.Receipts)
	case wire.PartialEncodedChunkForward:
		writeHash(w, b.ChunkHash)
		writeChunkParts(w, b.Parts)
		writeReceipts(w, b.Receipts)
	case wire.PartialEncodedChunkMessage:
		writeChunkHeader(w, b.Header)
		writeChunkParts(w, b.Parts)
		writeReceipts(w, b.Receipts)
	case wire.BlockApproval:
		writeHash(w, b.BlockHash)
		w.WriteString(b.AccountId)
		w.WriteBytes(b.Signature)
	case wire.ForwardTx:
		w.WriteBytes(b.Raw)
	}
}

func readRoutedBody(r *xborsh.Reader, kind wire.RoutedBodyKind) (wire.RoutedMessageBody, error) {
	switch kind {
	case wire.RoutedBodyPing:
		n, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		return wire.Ping{Nonce: n}, nil
	case wire.RoutedBodyPong:
		n, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		return wire.Pong{Nonce: n}, nil
	case wire.RoutedBodyTxStatusRequest:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		signer, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return wire.TxStatusRequest{TxHash: h, SignerId: signer}, nil
	case wire.RoutedBodyTxStatusResponse:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		status, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.TxStatusResponse{TxHash: h, Status: status}, nil
	case wire.RoutedBodyStateRequestHeader:
		shard, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		return wire.StateRequestHeader{ShardId: wire.ShardId(shard), SyncHash: h}, nil
	case wire.RoutedBodyStateRequestPart:
		shard, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		partId, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		return wire.StateRequestPart{ShardId: wire.ShardId(shard), SyncHash: h, PartId: partId}, nil
	case wire.RoutedBodyStateResponse:
		shard, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.StateResponse{ShardId: wire.ShardId(shard), Payload: payload}, nil
	case wire.RoutedBodyPartialEncodedChunkRequest:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		n, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		ords := make([]wire.PartOrd, n)
		for i := range ords {
			v, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			ords[i] = wire.PartOrd(v)
		}
		m, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		shards := make([]wire.ShardId, m)
		for i := range shards {
			v, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			shards[i] = wire.ShardId(v)
		}
		return wire.PartialEncodedChunkRequest{ChunkHash: h, PartOrds: ords, ShardIds: shards}, nil
	case wire.RoutedBodyPartialEncodedChunkResponse:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		parts, err := readChunkParts(r)
		if err != nil {
			return nil, err
		}
		receipts, err := readReceipts(r)
		if err != nil {
			return nil, err
		}
		return wire.PartialEncodedChunkResponse{ChunkHash: h, Parts: parts, Receipts: receipts}, nil
	case wire.RoutedBodyPartialEncodedChunkForward:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		parts, err := readChunkParts(r)
		if err != nil {
			return nil, err
		}
		receipts, err := readReceipts(r)
		if err != nil {
			return nil, err
		}
		return wire.PartialEncodedChunkForward{ChunkHash: h, Parts: parts, Receipts: receipts}, nil
	case wire.RoutedBodyPartialEncodedChunkMessage:
		h, err := readChunkHeader(r)
		if err != nil {
			return nil, err
		}
		parts, err := readChunkParts(r)
		if err != nil {
			return nil, err
		}
		receipts, err := readReceipts(r)
		if err != nil {
			return nil, err
		}
		return wire.PartialEncodedChunkMessage{Header: h, Parts: parts, Receipts: receipts}, nil
	case wire.RoutedBodyBlockApproval:
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		acct, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		sig, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.BlockApproval{BlockHash: h, AccountId: acct, Signature: sig}, nil
	case wire.RoutedBodyForwardTx:
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		return wire.ForwardTx{Raw: raw}, nil
	default:
		return nil, fmt.Errorf("codec: borsh: unknown routed body kind %d", kind)
	}
}
