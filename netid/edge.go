package netid

import (
	"bytes"
	"encoding/binary"
	"time"

	sha256simd "github.com/minio/sha256-simd"
)

// EdgeState is one of the two states an Edge can be in (spec §3).
type EdgeState uint8

const (
	Active EdgeState = iota
	Tombstone
)

func (s EdgeState) String() string {
	if s == Tombstone {
		return "Tombstone"
	}
	return "Active"
}

// PartialEdgeInfo is one side of a prospective edge: a nonce and this
// node's signature over (a, b, nonce, state), verified against the pair of
// PeerIds once both sides are known (spec §3).
type PartialEdgeInfo struct {
	Nonce     uint64
	Signature []byte
}

// orderedPair returns (x, y) sorted so an edge's signing message is
// identical regardless of which endpoint constructs it.
func orderedPair(x, y PeerId) (lo, hi PeerId) {
	if bytes.Compare(x[:], y[:]) <= 0 {
		return x, y
	}
	return y, x
}

func signingMessage(a, b PeerId, nonce uint64, state EdgeState) []byte {
	lo, hi := orderedPair(a, b)
	buf := make([]byte, 0, len(lo)+len(hi)+9)
	buf = append(buf, lo[:]...)
	buf = append(buf, hi[:]...)
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], nonce)
	buf = append(buf, nb[:]...)
	buf = append(buf, byte(state))
	digest := sha256simd.Sum256(buf)
	return digest[:]
}

// NewPartialEdgeInfo signs a proposed (peer, nonce) pair as self.
func NewPartialEdgeInfo(self KeyPair, peer PeerId, nonce uint64) PartialEdgeInfo {
	msg := signingMessage(self.Id, peer, nonce, Active)
	return PartialEdgeInfo{Nonce: nonce, Signature: self.sign(msg)}
}

// VerifyPartial checks a PartialEdgeInfo's signature was produced by signer
// over (a, b, info.Nonce, state).
func VerifyPartial(info PartialEdgeInfo, signer, a, b PeerId, state EdgeState) bool {
	msg := signingMessage(a, b, info.Nonce, state)
	return verify(signer, msg, info.Signature)
}

// Edge is a pair of PeerIds plus a strictly monotonic nonce and two
// signatures, one per endpoint (spec §3).
type Edge struct {
	A, B       PeerId
	Nonce      uint64
	SignatureA []byte
	SignatureB []byte
	State      EdgeState
}

// NewEdge combines two verified PartialEdgeInfo values (which must share a
// nonce) into a full, symmetric Edge.
func NewEdge(a, b PeerId, nonce uint64, sigA, sigB []byte) Edge {
	return Edge{A: a, B: b, Nonce: nonce, SignatureA: sigA, SignatureB: sigB, State: Active}
}

// Verify holds iff both signatures match (a, b, nonce, state) under the
// respective public keys (spec §3 invariant).
func (e Edge) Verify() bool {
	msg := signingMessage(e.A, e.B, e.Nonce, e.State)
	return verify(e.A, msg, e.SignatureA) && verify(e.B, msg, e.SignatureB)
}

// Other returns the peer on the far side of the edge from id.
func (e Edge) Other(id PeerId) (PeerId, bool) {
	switch id {
	case e.A:
		return e.B, true
	case e.B:
		return e.A, true
	default:
		return PeerId{}, false
	}
}

// Next derives the nonce to propose for a re-handshake after this edge: it
// must be strictly greater than e.Nonce, and — so two peers racing a
// reconnect after a restart don't collide — at least the current wall
// clock reading, the same parity discipline the original handshake signer
// uses. See DESIGN.md "Edge nonce derivation".
func (e Edge) Next() uint64 {
	clockNonce := uint64(time.Now().UnixNano())
	if clockNonce > e.Nonce {
		return clockNonce
	}
	return e.Nonce + 1
}

// NonceWithinClockBounds implements the "wall-clock bounds" sanity check
// referenced by spec §4.5 step 4: a proposed nonce must be positive and
// must not claim to come from further in the future than skew allows,
// since nonces are derived from the sender's clock (Edge.Next).
func NonceWithinClockBounds(nonce uint64, now time.Time, skew time.Duration) bool {
	if nonce == 0 {
		return false
	}
	ceiling := uint64(now.Add(skew).UnixNano())
	return nonce <= ceiling
}
