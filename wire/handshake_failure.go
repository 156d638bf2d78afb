package wire

// HandshakeFailureReason enumerates why an inbound handshake was rejected
// (spec §4.5, §7). Each implements a tag method so callers can type-switch.
type HandshakeFailureReason interface {
	handshakeFailureReason()
}

// ProtocolVersionMismatchReason carries the responder's own version and the
// oldest version it still supports, so the initiator can retry once
// (spec §4.5 "HandshakeFailure handling").
type ProtocolVersionMismatchReason struct {
	Version uint32
	Oldest  uint32
}

func (ProtocolVersionMismatchReason) handshakeFailureReason() {}

// GenesisMismatchReason carries the responder's genesis id.
type GenesisMismatchReason struct {
	Genesis Hash
}

func (GenesisMismatchReason) handshakeFailureReason() {}

// InvalidTargetReason means handshake.TargetPeerId didn't match the
// responder's own id.
type InvalidTargetReason struct{}

func (InvalidTargetReason) handshakeFailureReason() {}
