// Package cellcodec implements the binary encoding for a single time-value
// cell: a one-byte variant tag, a little-endian UTC offset, and a value
// payload. The format is part of the on-disk contract (§6 of the storage
// design) and must round-trip bit-exact across independent implementations.
package cellcodec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Variant distinguishes the two value families a cell can carry.
type Variant byte

const (
	// Float is a single-precision IEEE-754 value.
	Float Variant = 1
	// Dict is an opaque string -> JSON-scalar map, used for events.
	Dict Variant = 2
)

func (v Variant) String() string {
	switch v {
	case Float:
		return "float"
	case Dict:
		return "dict"
	default:
		return fmt.Sprintf("variant(%d)", byte(v))
	}
}

// MismatchError is returned when a decoded cell's tag disagrees with the
// variant the caller expected.
type MismatchError struct {
	Expected Variant
	Got      Variant
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cellcodec: expected %s cell, got %s", e.Expected, e.Got)
}

const headerLen = 1 + 4 // tag byte + int32 offset

// EncodeFloat encodes a float cell: tag(1) + offset(int32 LE) + value(float32 LE).
func EncodeFloat(value float32, offsetSeconds int32) []byte {
	b := make([]byte, headerLen+4)
	b[0] = byte(Float)
	binary.LittleEndian.PutUint32(b[1:5], uint32(offsetSeconds))
	binary.LittleEndian.PutUint32(b[5:9], math.Float32bits(value))
	return b
}

// EncodeDict encodes a dict cell: tag(1) + offset(int32 LE) + len(uint32 LE) + JSON bytes.
// The map must marshal to a JSON object; non-map-like values are a caller bug
// and the error is therefore exported rather than panicking.
func EncodeDict(value map[string]interface{}, offsetSeconds int32) ([]byte, error) {
	if value == nil {
		value = map[string]interface{}{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cellcodec: encode dict: %w", err)
	}
	b := make([]byte, headerLen+4+len(payload))
	b[0] = byte(Dict)
	binary.LittleEndian.PutUint32(b[1:5], uint32(offsetSeconds))
	binary.LittleEndian.PutUint32(b[5:9], uint32(len(payload)))
	copy(b[9:], payload)
	return b, nil
}

// Decoded is the result of decoding a cell: the offset and one of the two
// value families, selected by Variant.
type Decoded struct {
	Variant      Variant
	OffsetSecond int32
	FloatValue   float32
	DictValue    map[string]interface{}
}

// Decode parses a cell's bytes and checks that its tag matches expected.
func Decode(b []byte, expected Variant) (Decoded, error) {
	if len(b) < headerLen {
		return Decoded{}, fmt.Errorf("cellcodec: cell too short (%d bytes)", len(b))
	}
	tag := Variant(b[0])
	offset := int32(binary.LittleEndian.Uint32(b[1:5]))

	switch tag {
	case Float:
		if expected != Float {
			return Decoded{}, &MismatchError{Expected: expected, Got: tag}
		}
		if len(b) < headerLen+4 {
			return Decoded{}, fmt.Errorf("cellcodec: truncated float cell")
		}
		bits := binary.LittleEndian.Uint32(b[5:9])
		return Decoded{Variant: Float, OffsetSecond: offset, FloatValue: math.Float32frombits(bits)}, nil
	case Dict:
		if expected != Dict {
			return Decoded{}, &MismatchError{Expected: expected, Got: tag}
		}
		if len(b) < headerLen+4 {
			return Decoded{}, fmt.Errorf("cellcodec: truncated dict cell")
		}
		n := binary.LittleEndian.Uint32(b[5:9])
		rest := b[9:]
		if uint32(len(rest)) < n {
			return Decoded{}, fmt.Errorf("cellcodec: dict length prefix exceeds payload")
		}
		var m map[string]interface{}
		if err := json.Unmarshal(rest[:n], &m); err != nil {
			return Decoded{}, fmt.Errorf("cellcodec: decode dict: %w", err)
		}
		return Decoded{Variant: Dict, OffsetSecond: offset, DictValue: m}, nil
	default:
		return Decoded{}, &MismatchError{Expected: expected, Got: tag}
	}
}
