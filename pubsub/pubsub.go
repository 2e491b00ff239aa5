package pubsub

import (
	"encoding/binary"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/packing"
)

// Sample carries a published value together with its publish sequence.
// Sequences start at 1 and increase by one per publish on a given
// publisher, so a subscriber can detect fresh data by comparing the
// sequence of consecutive reads.
type Sample[T any] struct {
	Value T
	Seq   uint64
}

// frame layout for remote transports: 8-byte little-endian sequence
// followed by the packed value.
const seqHeaderLen = 8

func encodeFrame[T any](codec packing.Codec[T], sample Sample[T]) ([]byte, error) {
	buf := make([]byte, seqHeaderLen+codec.Size())
	binary.LittleEndian.PutUint64(buf[:seqHeaderLen], sample.Seq)
	if err := codec.Encode(buf[seqHeaderLen:], sample.Value); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeFrame[T any](codec packing.Codec[T], data []byte) (Sample[T], error) {
	if len(data) < seqHeaderLen+codec.Size() {
		return Sample[T]{}, ncerrors.ErrShortPayload
	}
	seq := binary.LittleEndian.Uint64(data[:seqHeaderLen])
	value, err := codec.Decode(data[seqHeaderLen:])
	if err != nil {
		return Sample[T]{}, err
	}
	return Sample[T]{Value: value, Seq: seq}, nil
}
