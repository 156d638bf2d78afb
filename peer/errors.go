package peer

import "fmt"

// BanReason is why a Machine transitioned to Banned (spec §4.5, §7).
type BanReason string

const (
	BanAbusive         BanReason = "abusive"
	BanInvalidSignature BanReason = "invalid_signature"
	BanCustom          BanReason = "custom"
)

// HandshakeError covers every reason §4.5/§7 names for rejecting or
// abandoning a handshake. Most cause a clean close; InvalidSignature
// additionally bans.
type HandshakeError struct {
	Reason string
}

func (e HandshakeError) Error() string { return fmt.Sprintf("peer: handshake: %s", e.Reason) }

var (
	ErrProtocolVersionMismatch = HandshakeError{Reason: "protocol version mismatch"}
	ErrGenesisMismatch         = HandshakeError{Reason: "genesis mismatch"}
	ErrInvalidTarget           = HandshakeError{Reason: "invalid target peer id"}
	ErrInvalidNonce            = HandshakeError{Reason: "invalid nonce"}
	ErrSelfConnect             = HandshakeError{Reason: "self connection"}
	ErrInvalidSignature        = HandshakeError{Reason: "invalid partial signature"}
	ErrTierMismatch            = HandshakeError{Reason: "tier mismatch"}
	ErrPeerIdMismatch          = HandshakeError{Reason: "peer id mismatch"}
	ErrHandshakeTimeout        = HandshakeError{Reason: "timed out"}
)

// ProtocolError is a steady-state protocol violation (spec §7 "Protocol
// abuse at steady state").
type ProtocolError struct {
	Reason string
}

func (e ProtocolError) Error() string { return fmt.Sprintf("peer: protocol: %s", e.Reason) }

var ErrDisallowedOnTier = ProtocolError{Reason: "message not allowed on this tier"}
