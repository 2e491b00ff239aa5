package packing

import (
	"encoding/binary"
	"math"

	"github.com/c360/nodecomm/errors"
)

// All primitive codecs use little-endian layout.

type uint8Codec struct{}

func (uint8Codec) Size() int { return 1 }

func (uint8Codec) Encode(buf []byte, v uint8) error {
	if err := checkEncode(buf, 1); err != nil {
		return err
	}
	buf[0] = v
	return nil
}

func (uint8Codec) Decode(data []byte) (uint8, error) {
	if err := checkDecode(data, 1); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Uint8 returns the codec for uint8 values.
func Uint8() Codec[uint8] { return uint8Codec{} }

type uint16Codec struct{}

func (uint16Codec) Size() int { return 2 }

func (uint16Codec) Encode(buf []byte, v uint16) error {
	if err := checkEncode(buf, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(buf, v)
	return nil
}

func (uint16Codec) Decode(data []byte) (uint16, error) {
	if err := checkDecode(data, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// Uint16 returns the codec for uint16 values.
func Uint16() Codec[uint16] { return uint16Codec{} }

type uint32Codec struct{}

func (uint32Codec) Size() int { return 4 }

func (uint32Codec) Encode(buf []byte, v uint32) error {
	if err := checkEncode(buf, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf, v)
	return nil
}

func (uint32Codec) Decode(data []byte) (uint32, error) {
	if err := checkDecode(data, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Uint32 returns the codec for uint32 values.
func Uint32() Codec[uint32] { return uint32Codec{} }

type uint64Codec struct{}

func (uint64Codec) Size() int { return 8 }

func (uint64Codec) Encode(buf []byte, v uint64) error {
	if err := checkEncode(buf, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf, v)
	return nil
}

func (uint64Codec) Decode(data []byte) (uint64, error) {
	if err := checkDecode(data, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// Uint64 returns the codec for uint64 values.
func Uint64() Codec[uint64] { return uint64Codec{} }

type int32Codec struct{}

func (int32Codec) Size() int { return 4 }

func (int32Codec) Encode(buf []byte, v int32) error {
	return Uint32().Encode(buf, uint32(v))
}

func (int32Codec) Decode(data []byte) (int32, error) {
	u, err := Uint32().Decode(data)
	return int32(u), err
}

// Int32 returns the codec for int32 values.
func Int32() Codec[int32] { return int32Codec{} }

type int64Codec struct{}

func (int64Codec) Size() int { return 8 }

func (int64Codec) Encode(buf []byte, v int64) error {
	return Uint64().Encode(buf, uint64(v))
}

func (int64Codec) Decode(data []byte) (int64, error) {
	u, err := Uint64().Decode(data)
	return int64(u), err
}

// Int64 returns the codec for int64 values.
func Int64() Codec[int64] { return int64Codec{} }

type float64Codec struct{}

func (float64Codec) Size() int { return 8 }

func (float64Codec) Encode(buf []byte, v float64) error {
	return Uint64().Encode(buf, math.Float64bits(v))
}

func (float64Codec) Decode(data []byte) (float64, error) {
	u, err := Uint64().Decode(data)
	return math.Float64frombits(u), err
}

// Float64 returns the codec for float64 values.
func Float64() Codec[float64] { return float64Codec{} }

type float32Codec struct{}

func (float32Codec) Size() int { return 4 }

func (float32Codec) Encode(buf []byte, v float32) error {
	return Uint32().Encode(buf, math.Float32bits(v))
}

func (float32Codec) Decode(data []byte) (float32, error) {
	u, err := Uint32().Decode(data)
	return math.Float32frombits(u), err
}

// Float32 returns the codec for float32 values.
func Float32() Codec[float32] { return float32Codec{} }

type boolCodec struct{}

func (boolCodec) Size() int { return 1 }

func (boolCodec) Encode(buf []byte, v bool) error {
	if err := checkEncode(buf, 1); err != nil {
		return err
	}
	if v {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	return nil
}

func (boolCodec) Decode(data []byte) (bool, error) {
	if err := checkDecode(data, 1); err != nil {
		return false, err
	}
	switch data[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.ErrShortPayload
	}
}

// Bool returns the codec for bool values.
func Bool() Codec[bool] { return boolCodec{} }

// stringCodec packs a string as a 2-byte little-endian length prefix followed
// by the raw bytes, padded up to the declared capacity.
type stringCodec struct {
	max int
}

func (c stringCodec) Size() int { return 2 + c.max }

func (c stringCodec) Encode(buf []byte, v string) error {
	if len(v) > c.max {
		return errors.ErrBufferTooSmall
	}
	if err := checkEncode(buf, c.Size()); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(buf, uint16(len(v)))
	copy(buf[2:], v)
	for i := 2 + len(v); i < c.Size(); i++ {
		buf[i] = 0
	}
	return nil
}

func (c stringCodec) Decode(data []byte) (string, error) {
	if err := checkDecode(data, 2); err != nil {
		return "", err
	}
	n := int(binary.LittleEndian.Uint16(data))
	if n > c.max || len(data) < 2+n {
		return "", errors.ErrShortPayload
	}
	return string(data[2 : 2+n]), nil
}

// String returns a codec for strings of at most max bytes.
func String(max int) Codec[string] { return stringCodec{max: max} }
