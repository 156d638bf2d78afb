package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsAllowedT2AllowsEverything(t *testing.T) {
	require.True(t, IsAllowed(T2, Transaction{}))
	require.True(t, IsAllowed(T2, PeersRequest{}))
	require.True(t, IsAllowed(T2, Routed{Message: RoutedMessage{Body: ForwardTx{}}}))
}

func TestIsAllowedT1RestrictsDataPlane(t *testing.T) {
	require.False(t, IsAllowed(T1, Transaction{}))
	require.False(t, IsAllowed(T1, PeersRequest{}))
	require.False(t, IsAllowed(T1, SyncAccountsData{}))
	require.True(t, IsAllowed(T1, HandshakeFailure{}))
	require.True(t, IsAllowed(T1, Disconnect{}))
}

func TestIsAllowedT1RoutedBodyRestriction(t *testing.T) {
	require.True(t, IsAllowed(T1, Routed{Message: RoutedMessage{Body: BlockApproval{}}}))
	require.True(t, IsAllowed(T1, Routed{Message: RoutedMessage{Body: Ping{}}}))
	require.False(t, IsAllowed(T1, Routed{Message: RoutedMessage{Body: ForwardTx{}}}))
	require.False(t, IsAllowed(T1, Routed{Message: RoutedMessage{Body: TxStatusRequest{}}}))
}
