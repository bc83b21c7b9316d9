package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MaxMessageBytes bounds a single framed wire message to 2^20 bytes.
const MaxMessageBytes = 1 << 20

// MessageTag identifies the body of a length-prefixed wire message.
type MessageTag byte

const (
	TagProposal  MessageTag = 0x01
	TagVote      MessageTag = 0x02
	TagBlock     MessageTag = 0x03
	TagViewChange MessageTag = 0x04
	TagCheckpoint MessageTag = 0x05
	TagSync      MessageTag = 0x06
	TagHeartbeat MessageTag = 0x07
)

var canonicalEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: building canonical CBOR encoder: %v", err))
	}
	return mode
}()

var canonicalDecMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: building CBOR decoder: %v", err))
	}
	return mode
}()

// EncodeCanonical produces the deterministic binary encoding every peer
// must agree on bit-for-bit: fields in declaration order (via explicit
// "n,keyasint" struct tags so map-key sorting never reorders them) and
// no implicit padding. It is built on the canonical CBOR mode of
// github.com/fxamacker/cbor/v2 (CanonicalEncOptions, RFC 7049 canonical
// CBOR), which guarantees shortest-form integers and definite-length
// items byte-for-byte across implementations.
func EncodeCanonical(v any) ([]byte, error) {
	b, err := canonicalEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: canonical encode: %v", ErrValidation, err)
	}
	return b, nil
}

// DecodeCanonical decodes a value previously produced by EncodeCanonical.
func DecodeCanonical(b []byte, v any) error {
	if err := canonicalDecMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: canonical decode: %v", ErrValidation, err)
	}
	return nil
}

// FrameMessage length-prefixes body with a 4-byte big-endian length
// followed by the tag byte and body bytes.
func FrameMessage(tag MessageTag, body []byte) ([]byte, error) {
	if len(body)+1 > MaxMessageBytes {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrValidation, MaxMessageBytes)
	}
	out := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)+1))
	out[4] = byte(tag)
	copy(out[5:], body)
	return out, nil
}

// ParseFrame splits a single framed message off the front of buf,
// returning its tag, body, and the number of bytes consumed. It returns
// ok=false if buf does not yet contain a complete frame (the caller
// should wait for more bytes from the transport).
func ParseFrame(buf []byte) (tag MessageTag, body []byte, consumed int, ok bool, err error) {
	if len(buf) < 4 {
		return 0, nil, 0, false, nil
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	if length == 0 {
		return 0, nil, 0, false, fmt.Errorf("%w: zero-length frame", ErrValidation)
	}
	if length > MaxMessageBytes {
		return 0, nil, 0, false, fmt.Errorf("%w: frame length %d exceeds max %d", ErrValidation, length, MaxMessageBytes)
	}
	total := 4 + int(length)
	if len(buf) < total {
		return 0, nil, 0, false, nil
	}
	tag = MessageTag(buf[4])
	body = buf[5:total]
	return tag, body, total, true, nil
}
