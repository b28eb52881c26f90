package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the header in front of every message.
//
// A request is [u32 body length][u32 command][payload] and a response is
// [u32 body length][i32 result][payload]. The body length counts the tag and the payload.
// Integers are little endian. Handles travel as SCM_RIGHTS ancillary data on the first
// byte of the message.
const HeaderSize = 8

// Header is the decoded header of a message. Tag is a Command on requests and a Result on responses.
type Header struct {
	BodyLen uint32
	Tag     uint32
}

// PayloadLen is the length of the payload that follows the header.
func (h Header) PayloadLen() int {
	return int(h.BodyLen) - 4
}

// ParseHeader decodes the header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header is %d bytes, need %d", len(b), HeaderSize)
	}
	h := Header{
		BodyLen: binary.LittleEndian.Uint32(b[0:4]),
		Tag:     binary.LittleEndian.Uint32(b[4:8]),
	}
	if h.BodyLen < 4 {
		return Header{}, fmt.Errorf("body length %d is shorter than the tag", h.BodyLen)
	}
	if h.BodyLen > MaxFrameSize {
		return Header{}, fmt.Errorf("body length %d exceeds max frame size %d", h.BodyLen, MaxFrameSize)
	}
	return h, nil
}

// AppendFrame appends a full message with tag and payload to b.
func AppendFrame(b []byte, tag uint32, payload []byte) ([]byte, error) {
	if len(payload)+4 > MaxFrameSize {
		return nil, fmt.Errorf("payload of %d bytes exceeds max frame size %d", len(payload), MaxFrameSize)
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)+4))
	b = binary.LittleEndian.AppendUint32(b, tag)
	return append(b, payload...), nil
}
