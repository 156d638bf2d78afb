package wire

// TierAllowList enumerates, explicitly, which MessageKinds a connection of
// the given tier may exchange at steady state (spec §6 "Tier allow-lists",
// Design Note (c): "the T1 allow-list in the source is implicit in
// Tier::is_allowed; enumerate it in the wire spec before reimplementing").
//
// T2 is the general mesh and permits every variant. T1 is reserved for
// validators and is restricted to handshake-management traffic plus routed
// bodies that carry validator duties (chunk production/distribution and
// block approvals); see DESIGN.md "Open Question (c)".
func TierAllowList(t Tier) map[MessageKind]bool {
	if t == T2 {
		return map[MessageKind]bool{
			KindHandshake:           true,
			KindHandshakeFailure:    true,
			KindLastEdge:            true,
			KindPeersRequest:        true,
			KindPeersResponse:       true,
			KindSyncRoutingTable:    true,
			KindSyncAccountsData:    true,
			KindRequestUpdateNonce:  true,
			KindResponseUpdateNonce: true,
			KindBlock:               true,
			KindBlockRequest:        true,
			KindBlockHeadersRequest: true,
			KindBlockHeaders:        true,
			KindTransaction:         true,
			KindRouted:              true,
			KindChallenge:           true,
			KindEpochSyncRequest:    true,
			KindEpochSyncResponse:  true,
			KindDisconnect:          true,
		}
	}
	return map[MessageKind]bool{
		KindHandshake:           true,
		KindHandshakeFailure:    true,
		KindLastEdge:            true,
		KindRequestUpdateNonce:  true,
		KindResponseUpdateNonce: true,
		KindRouted:              true,
		KindDisconnect:          true,
	}
}

// t1RoutedBodyAllowList is the set of RoutedMessageBody kinds considered
// "related to validator duties" and therefore permitted over a T1 link.
var t1RoutedBodyAllowList = map[RoutedBodyKind]bool{
	RoutedBodyPing:                        true,
	RoutedBodyPong:                        true,
	RoutedBodyPartialEncodedChunkRequest:  true,
	RoutedBodyPartialEncodedChunkResponse: true,
	RoutedBodyPartialEncodedChunkForward:  true,
	RoutedBodyPartialEncodedChunkMessage:  true,
	RoutedBodyBlockApproval:               true,
}

// RoutedBodyKind is a stable discriminant for RoutedMessageBody, used both
// for tier admission checks and, by the codec, as the body's on-wire
// discriminant byte.
type RoutedBodyKind uint8

const (
	RoutedBodyPing RoutedBodyKind = iota
	RoutedBodyPong
	RoutedBodyTxStatusRequest
	RoutedBodyTxStatusResponse
	RoutedBodyStateRequestHeader
	RoutedBodyStateRequestPart
	RoutedBodyStateResponse
	RoutedBodyPartialEncodedChunkRequest
	RoutedBodyPartialEncodedChunkResponse
	RoutedBodyPartialEncodedChunkForward
	RoutedBodyPartialEncodedChunkMessage
	RoutedBodyBlockApproval
	RoutedBodyForwardTx
)

// BodyKind returns the discriminant for a RoutedMessageBody value.
func BodyKind(b RoutedMessageBody) RoutedBodyKind {
	switch b.(type) {
	case Ping:
		return RoutedBodyPing
	case Pong:
		return RoutedBodyPong
	case TxStatusRequest:
		return RoutedBodyTxStatusRequest
	case TxStatusResponse:
		return RoutedBodyTxStatusResponse
	case StateRequestHeader:
		return RoutedBodyStateRequestHeader
	case StateRequestPart:
		return RoutedBodyStateRequestPart
	case StateResponse:
		return RoutedBodyStateResponse
	case PartialEncodedChunkRequest:
		return RoutedBodyPartialEncodedChunkRequest
	case PartialEncodedChunkResponse:
		return RoutedBodyPartialEncodedChunkResponse
	case PartialEncodedChunkForward:
		return RoutedBodyPartialEncodedChunkForward
	case PartialEncodedChunkMessage:
		return RoutedBodyPartialEncodedChunkMessage
	case BlockApproval:
		return RoutedBodyBlockApproval
	case ForwardTx:
		return RoutedBodyForwardTx
	default:
		panic("wire: unknown routed message body type")
	}
}

// IsAllowed reports whether msg may be exchanged on a connection of tier t.
func IsAllowed(t Tier, msg Message) bool {
	allow := TierAllowList(t)
	if !allow[msg.Kind()] {
		return false
	}
	if t == T1 && msg.Kind() == KindRouted {
		routed := msg.(Routed)
		return t1RoutedBodyAllowList[BodyKind(routed.Message.Body)]
	}
	return true
}
