package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: MaxFrameSize,
		MaxMapPairs:      MaxFrameSize,
		MaxNestedLevels:  16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes a payload. A nil v encodes to an empty payload.
func Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes a payload into v. An empty payload leaves v at its zero value.
func Unmarshal(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}

// EncodeRequest returns the full framed request for cmd with payload req (which may be nil).
func EncodeRequest(cmd Command, req any) ([]byte, error) {
	p, err := Marshal(req)
	if err != nil {
		return nil, err
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(p)), uint32(cmd), p)
}

// EncodeResponse returns the full framed response with result r and payload resp (which may be nil).
func EncodeResponse(r Result, resp any) ([]byte, error) {
	p, err := Marshal(resp)
	if err != nil {
		return nil, err
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(p)), uint32(r), p)
}
