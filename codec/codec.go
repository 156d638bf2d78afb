// Package codec implements MessageCodec: encoding and decoding wire
// messages under the Proto and Borsh encodings, with autodetection during
// handshake (spec §4.2, §6).
package codec

import (
	"fmt"

	"github.com/shardmesh/netcore/wire"
)

// Encoding selects which wire format Encode/Decode use.
type Encoding uint8

const (
	Borsh Encoding = iota
	Proto
)

func (e Encoding) String() string {
	if e == Proto {
		return "Proto"
	}
	return "Borsh"
}

// Encode serializes msg under the given encoding.
func Encode(msg wire.Message, enc Encoding) ([]byte, error) {
	switch enc {
	case Borsh:
		return marshalBorsh(msg)
	case Proto:
		return marshalProto(msg)
	default:
		return nil, fmt.Errorf("codec: unknown encoding %d", enc)
	}
}

// Decode deserializes msg under the given, already-known encoding.
func Decode(data []byte, enc Encoding) (wire.Message, error) {
	switch enc {
	case Borsh:
		return unmarshalBorsh(data)
	case Proto:
		return unmarshalProto(data)
	default:
		return nil, fmt.Errorf("codec: unknown encoding %d", enc)
	}
}

// DetectAndDecode implements the handshake-time parse rule from spec §4.2:
// "during handshake (before encoding is known), parse by trying Proto
// first, then Borsh". It returns the decoded message and which encoding
// actually parsed it, so the caller can latch protocol_buffers_supported.
func DetectAndDecode(data []byte) (wire.Message, Encoding, error) {
	if msg, err := unmarshalProto(data); err == nil {
		return msg, Proto, nil
	}
	msg, err := unmarshalBorsh(data)
	if err != nil {
		return nil, 0, fmt.Errorf("codec: failed to parse under either encoding: %w", err)
	}
	return msg, Borsh, nil
}
