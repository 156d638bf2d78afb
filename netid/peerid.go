// Package netid implements peer identities and the signed Edge records that
// prove two peers agreed to connect (see spec §3 DATA MODEL).
package netid

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// PeerId is a public-key-derived identifier, globally unique per node.
// It is a fixed-size value so it can be used directly as a map key.
type PeerId [ed25519.PublicKeySize]byte

// String renders the PeerId the way node operators expect to see it in
// logs: a base58-encoded public key, the same encoding convention used by
// account identifiers throughout the pack's blockchain examples.
func (id PeerId) String() string {
	return base58.Encode(id[:])
}

func (id PeerId) publicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

// ParsePeerId decodes a base58-encoded public key.
func ParsePeerId(s string) (PeerId, error) {
	var id PeerId
	b, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("netid: decode peer id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("netid: peer id has wrong length %d, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// KeyPair is a node's signing identity: its PeerId and the private key that
// signs Edge proposals and handshakes on its behalf.
type KeyPair struct {
	Id         PeerId
	PrivateKey ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh node identity.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("netid: generate key: %w", err)
	}
	var id PeerId
	copy(id[:], pub)
	return KeyPair{Id: id, PrivateKey: priv}, nil
}

func (kp KeyPair) sign(msg []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, msg)
}

func verify(signer PeerId, msg, sig []byte) bool {
	return ed25519.Verify(signer.publicKey(), msg, sig)
}
