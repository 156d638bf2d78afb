package peer

import (
	"context"
	"errors"
	"time"

	"github.com/anacrolix/log"

	"github.com/shardmesh/netcore/codec"
	"github.com/shardmesh/netcore/events"
	"github.com/shardmesh/netcore/framing"
	"github.com/shardmesh/netcore/netid"
	"github.com/shardmesh/netcore/wire"
)

// handshakeProposal is kept only by outbound machines, between sending the
// initial Handshake and receiving the reply, so the full Edge can be formed
// once the remote's half of the signature arrives.
type handshakeProposal struct {
	info netid.PartialEdgeInfo
}

func (m *Machine) sendInitialHandshake() error {
	nonce := m.nextNonce(*m.expectedRemote)
	m.proposedNonce = nonce
	info := netid.NewPartialEdgeInfo(m.cfg.SelfKeys, *m.expectedRemote, nonce)
	m.proposal = &handshakeProposal{info: info}

	hs := wire.Handshake{
		Tier:                   m.cfg.Tier,
		ProtocolVersion:        m.cfg.ProtocolVersion,
		OldestSupportedVersion: m.cfg.MinAllowedVersion,
		SenderPeerId:           m.cfg.SelfID,
		TargetPeerId:           *m.expectedRemote,
		SenderListenPort:       m.cfg.ListenPort,
		SenderChainInfo:        m.cfg.ChainInfo,
		PartialEdgeInfo:        info,
	}
	return m.sendDuringHandshake(hs)
}

// sendDuringHandshake implements the duplicated-send rule of spec §4.2:
// force_encoding wins outright; T1 is hard-coded to Proto; otherwise send
// under both encodings until the peer's first successful Proto parse
// latches protocol_buffers_supported.
func (m *Machine) sendDuringHandshake(msg wire.Message) error {
	if m.cfg.ForceEncoding != nil {
		data, err := codec.Encode(msg, *m.cfg.ForceEncoding)
		if err != nil {
			return err
		}
		return m.stream.Send(data)
	}
	if m.cfg.Tier == wire.T1 || m.protoSupported {
		data, err := codec.Encode(msg, codec.Proto)
		if err != nil {
			return err
		}
		return m.stream.Send(data)
	}
	protoData, err := codec.Encode(msg, codec.Proto)
	if err != nil {
		return err
	}
	if err := m.stream.Send(protoData); err != nil {
		return err
	}
	borshData, err := codec.Encode(msg, codec.Borsh)
	if err != nil {
		return err
	}
	return m.stream.Send(borshData)
}

func (m *Machine) recvRaw(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := m.stream.Recv(context.Background(), m.limiter)
		ch <- result{data, err}
	}()
	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		m.stream.Close(ErrHandshakeTimeout)
		return nil, ctx.Err()
	}
}

// decodeFrame decodes data under the negotiated encoding if one is already
// fixed (ForceEncoding, T1, or protoSupported latched), otherwise
// autodetects (spec §4.2).
func (m *Machine) decodeFrame(data []byte) (wire.Message, error) {
	if m.cfg.ForceEncoding != nil {
		return codec.Decode(data, *m.cfg.ForceEncoding)
	}
	if m.cfg.Tier == wire.T1 || m.protoSupported {
		return codec.Decode(data, m.encoding)
	}
	msg, enc, err := codec.DetectAndDecode(data)
	if err != nil {
		return nil, err
	}
	if enc == codec.Proto {
		m.protoSupported = true
		m.encoding = codec.Proto
	}
	return msg, nil
}

func (m *Machine) runHandshakePhase(ctx context.Context) error {
	for {
		data, err := m.recvRaw(ctx)
		if err != nil {
			var tooLarge framing.MessageTooLargeError
			if errors.As(err, &tooLarge) {
				return m.ban(BanAbusive)
			}
			return err
		}
		msg, err := m.decodeFrame(data)
		if err != nil {
			m.deps.Logger.WithDefaultLevel(log.Debug).Printf("peer: handshake decode: %v", err)
			return err
		}

		var done bool
		var stepErr error
		switch typed := msg.(type) {
		case wire.Handshake:
			if m.direction == Outbound {
				done, stepErr = m.handleOutboundHandshakeReply(typed)
			} else {
				done, stepErr = m.handleInboundHandshake(typed)
			}
		case wire.HandshakeFailure:
			if m.direction != Outbound {
				return ErrHandshakeTimeout
			}
			done, stepErr = m.handleHandshakeFailure(typed)
		case wire.LastEdge:
			if m.direction != Outbound {
				return ErrInvalidNonce
			}
			stepErr = m.handleLastEdge(typed)
		default:
			return ProtocolError{Reason: "unexpected message type during handshake"}
		}
		if stepErr != nil {
			return stepErr
		}
		if done {
			return nil
		}
	}
}

func (m *Machine) handleInboundHandshake(hs wire.Handshake) (bool, error) {
	if hs.ProtocolVersion < m.cfg.MinAllowedVersion || hs.ProtocolVersion > m.cfg.ProtocolVersion {
		return false, m.sendDuringHandshake(wire.HandshakeFailure{
			Reason: wire.ProtocolVersionMismatchReason{Version: m.cfg.ProtocolVersion, Oldest: m.cfg.MinAllowedVersion},
		})
	}
	if hs.SenderChainInfo.GenesisId != m.cfg.GenesisID {
		return false, m.sendDuringHandshake(wire.HandshakeFailure{
			Reason: wire.GenesisMismatchReason{Genesis: m.cfg.GenesisID},
		})
	}
	if hs.TargetPeerId != m.cfg.SelfID {
		return false, m.sendDuringHandshake(wire.HandshakeFailure{Reason: wire.InvalidTargetReason{}})
	}
	if !netid.NonceWithinClockBounds(hs.PartialEdgeInfo.Nonce, time.Now(), m.cfg.ClockSkew) {
		return false, ErrInvalidNonce
	}
	if local, ok := m.deps.Edges.LocalEdge(hs.SenderPeerId); ok && local.Nonce >= hs.PartialEdgeInfo.Nonce {
		return false, m.sendDuringHandshake(wire.LastEdge{Edge: local})
	}
	if hs.SenderPeerId == m.cfg.SelfID {
		return false, ErrSelfConnect
	}
	if !netid.VerifyPartial(hs.PartialEdgeInfo, hs.SenderPeerId, hs.SenderPeerId, m.cfg.SelfID, netid.Active) {
		return true, m.ban(BanInvalidSignature)
	}

	ourInfo := netid.NewPartialEdgeInfo(m.cfg.SelfKeys, hs.SenderPeerId, hs.PartialEdgeInfo.Nonce)
	edge := netid.NewEdge(hs.SenderPeerId, m.cfg.SelfID, hs.PartialEdgeInfo.Nonce, hs.PartialEdgeInfo.Signature, ourInfo.Signature)
	if !edge.Verify() {
		return true, m.ban(BanInvalidSignature)
	}
	m.deps.Edges.SaveEdge(edge)

	conn := newConnection(hs.Tier, wire.PeerInfo{Id: hs.SenderPeerId}, Inbound, edge)
	if err := m.deps.Admission.RegisterPeer(hs.SenderPeerId, Inbound, conn); err != nil {
		return false, err
	}

	reply := wire.Handshake{
		Tier:                   hs.Tier,
		ProtocolVersion:        m.cfg.ProtocolVersion,
		OldestSupportedVersion: m.cfg.MinAllowedVersion,
		SenderPeerId:           m.cfg.SelfID,
		TargetPeerId:           hs.SenderPeerId,
		SenderListenPort:       m.cfg.ListenPort,
		SenderChainInfo:        m.cfg.ChainInfo,
		PartialEdgeInfo:        ourInfo,
	}
	if err := m.sendDuringHandshake(reply); err != nil {
		return false, err
	}

	m.mu.Lock()
	m.state = StateReady
	m.conn = conn
	m.mu.Unlock()
	m.deps.Events.Emit(events.HandshakeCompleted{})
	return true, nil
}

func (m *Machine) handleOutboundHandshakeReply(hs wire.Handshake) (bool, error) {
	if hs.Tier != m.cfg.Tier {
		return false, ErrTierMismatch
	}
	if hs.SenderPeerId != *m.expectedRemote {
		return false, ErrPeerIdMismatch
	}
	if hs.SenderChainInfo.GenesisId != m.cfg.GenesisID {
		return false, ErrGenesisMismatch
	}
	if hs.PartialEdgeInfo.Nonce != m.proposedNonce {
		return false, ErrInvalidNonce
	}
	if !netid.VerifyPartial(hs.PartialEdgeInfo, hs.SenderPeerId, m.cfg.SelfID, hs.SenderPeerId, netid.Active) {
		return true, m.ban(BanInvalidSignature)
	}

	edge := netid.NewEdge(m.cfg.SelfID, hs.SenderPeerId, m.proposedNonce, m.proposal.info.Signature, hs.PartialEdgeInfo.Signature)
	if !edge.Verify() {
		return true, m.ban(BanInvalidSignature)
	}
	m.deps.Edges.SaveEdge(edge)

	conn := newConnection(hs.Tier, wire.PeerInfo{Id: hs.SenderPeerId}, Outbound, edge)
	if err := m.deps.Admission.RegisterPeer(hs.SenderPeerId, Outbound, conn); err != nil {
		return false, err
	}

	m.mu.Lock()
	m.state = StateReady
	m.conn = conn
	m.mu.Unlock()
	m.deps.Events.Emit(events.HandshakeCompleted{})

	if hs.Tier == wire.T2 {
		m.deps.Dispatch.AccountsDataFullSync(conn)
	}
	return true, nil
}

// handleHandshakeFailure implements "HandshakeFailure handling (outbound
// only)" (spec §4.5).
func (m *Machine) handleHandshakeFailure(f wire.HandshakeFailure) (bool, error) {
	switch reason := f.Reason.(type) {
	case wire.GenesisMismatchReason:
		return true, ErrGenesisMismatch
	case wire.ProtocolVersionMismatchReason:
		retryVersion := reason.Version
		if m.cfg.ProtocolVersion < retryVersion {
			retryVersion = m.cfg.ProtocolVersion
		}
		floor := reason.Oldest
		if m.cfg.MinAllowedVersion > floor {
			floor = m.cfg.MinAllowedVersion
		}
		if retryVersion < floor {
			return true, ErrProtocolVersionMismatch
		}
		m.cfg.ProtocolVersion = retryVersion
		return false, m.sendInitialHandshake()
	case wire.InvalidTargetReason:
		m.deps.PeerStore.UpdatePeerInfo(wire.PeerInfo{Id: *m.expectedRemote})
		return true, ErrInvalidTarget
	default:
		return true, ProtocolError{Reason: "unknown handshake failure reason"}
	}
}

// handleLastEdge implements "LastEdge handling (outbound only)" (spec
// §4.5): verify, derive a strictly greater nonce, and re-send.
func (m *Machine) handleLastEdge(le wire.LastEdge) error {
	if !le.Edge.Verify() {
		return ErrInvalidSignature
	}
	m.proposedNonce = le.Edge.Next()
	info := netid.NewPartialEdgeInfo(m.cfg.SelfKeys, *m.expectedRemote, m.proposedNonce)
	m.proposal = &handshakeProposal{info: info}

	hs := wire.Handshake{
		Tier:                   m.cfg.Tier,
		ProtocolVersion:        m.cfg.ProtocolVersion,
		OldestSupportedVersion: m.cfg.MinAllowedVersion,
		SenderPeerId:           m.cfg.SelfID,
		TargetPeerId:           *m.expectedRemote,
		SenderListenPort:       m.cfg.ListenPort,
		SenderChainInfo:        m.cfg.ChainInfo,
		PartialEdgeInfo:        info,
	}
	return m.sendDuringHandshake(hs)
}
