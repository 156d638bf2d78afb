package netid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustKeyPair(t *testing.T) KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestEdgeVerifyRoundTrip(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)

	infoA := NewPartialEdgeInfo(a, b.Id, 7)
	infoB := NewPartialEdgeInfo(b, a.Id, 7)

	require.True(t, VerifyPartial(infoA, a.Id, a.Id, b.Id, Active))
	require.True(t, VerifyPartial(infoB, b.Id, a.Id, b.Id, Active))

	edge := NewEdge(a.Id, b.Id, 7, infoA.Signature, infoB.Signature)
	require.True(t, edge.Verify())
}

func TestEdgeVerifyRejectsTamperedSignature(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	infoA := NewPartialEdgeInfo(a, b.Id, 3)
	infoB := NewPartialEdgeInfo(b, a.Id, 3)

	edge := NewEdge(a.Id, b.Id, 3, infoA.Signature, infoB.Signature)
	edge.Nonce = 4 // signatures were made over nonce 3
	require.False(t, edge.Verify())
}

func TestEdgeOther(t *testing.T) {
	a := mustKeyPair(t)
	b := mustKeyPair(t)
	edge := Edge{A: a.Id, B: b.Id, Nonce: 1}

	other, ok := edge.Other(a.Id)
	require.True(t, ok)
	require.Equal(t, b.Id, other)

	_, ok = edge.Other(mustKeyPair(t).Id)
	require.False(t, ok)
}

func TestEdgeNextIsMonotonic(t *testing.T) {
	edge := Edge{Nonce: 1}
	n := edge.Next()
	require.Greater(t, n, edge.Nonce)

	// A nonce already far in the future still yields a strictly larger one.
	future := Edge{Nonce: uint64(time.Now().Add(time.Hour).UnixNano())}
	require.Equal(t, future.Nonce+1, future.Next())
}

func TestNonceWithinClockBounds(t *testing.T) {
	now := time.Now()
	require.False(t, NonceWithinClockBounds(0, now, time.Minute))
	require.True(t, NonceWithinClockBounds(uint64(now.UnixNano()), now, time.Minute))
	require.False(t, NonceWithinClockBounds(uint64(now.Add(time.Hour).UnixNano()), now, time.Minute))
}
