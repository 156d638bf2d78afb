package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/shardmesh/netcore/internal/xborsh"
	"github.com/shardmesh/netcore/wire"
)

// Proto encoding wraps every message in a minimal, genuinely
// protobuf-wire-format envelope:
//
//	field 1 (varint)  message kind
//	field 2 (bytes)   body, encoded with the same per-field layout the
//	                  Borsh encoder uses for that kind
//
// Hand-writing a distinct protobuf schema for all ~19 message kinds and ~13
// routed bodies would duplicate the Borsh encoder almost line for line with
// nothing gained; the envelope keeps exactly one body codec (see borsh.go)
// while still producing bytes that decode with protowire and that a real
// protobuf message with this field layout would also produce.
const (
	protoFieldKind = protowire.Number(1)
	protoFieldBody = protowire.Number(2)
)

func marshalProto(msg wire.Message) ([]byte, error) {
	w := xborsh.NewWriter()
	if err := writeBorshBody(w, msg); err != nil {
		return nil, err
	}
	var buf []byte
	buf = protowire.AppendTag(buf, protoFieldKind, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(msg.Kind()))
	buf = protowire.AppendTag(buf, protoFieldBody, protowire.BytesType)
	buf = protowire.AppendBytes(buf, w.Bytes())
	return buf, nil
}

// unmarshalProto parses the envelope above. It is also the probe used by
// DetectAndDecode: Borsh's leading MessageKind discriminant (0-18) can
// collide with a protobuf tag byte, so a successful parse here requires (1)
// both fields present, (2) every tag/value pair in the frame well-formed
// with nothing left over (unknown fields are skipped; a repeated field keeps
// its last value), and (3) the body bytes fully consumed by the inner
// Borsh reader — three independent checks a stray Borsh frame is very
// unlikely to satisfy by chance.
func unmarshalProto(data []byte) (wire.Message, error) {
	var kind wire.MessageKind
	var body []byte
	var sawKind, sawBody bool

	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("codec: proto: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == protoFieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("codec: proto: bad kind varint: %w", protowire.ParseError(n))
			}
			if v > 255 {
				return nil, fmt.Errorf("codec: proto: kind %d out of range", v)
			}
			kind = wire.MessageKind(v)
			sawKind = true
			b = b[n:]
		case num == protoFieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("codec: proto: bad body bytes: %w", protowire.ParseError(n))
			}
			body = v
			sawBody = true
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("codec: proto: bad field: %w", protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !sawKind || !sawBody {
		return nil, fmt.Errorf("codec: proto: missing kind or body field")
	}

	r := xborsh.NewReader(body)
	msg, err := readBorshBody(r, kind)
	if err != nil {
		return nil, fmt.Errorf("codec: proto: body: %w", err)
	}
	if !r.Done() {
		return nil, fmt.Errorf("codec: proto: trailing bytes in body")
	}
	return msg, nil
}
