// Package packing defines the binary packing contract used by byte-oriented
// transports to move typed values across serial links and UDP datagrams.
package packing

import (
	"github.com/c360/nodecomm/errors"
)

// Codec packs values of type T into fixed- or bounded-size byte buffers and
// unpacks them again. Implementations must satisfy the round-trip law
// Decode(Encode(v)) == v for every value representable within Size() bytes.
//
// Encode must fail with errors.ErrBufferTooSmall, without partial writes the
// caller can observe, when the destination is smaller than the packed form.
// Decode must fail with errors.ErrShortPayload on truncated or malformed
// input. Both failures are deterministic.
type Codec[T any] interface {
	// Size returns the declared maximum packed length in bytes.
	Size() int

	// Encode packs v into buf[:Size()].
	Encode(buf []byte, v T) error

	// Decode unpacks a value from data.
	Decode(data []byte) (T, error)
}

// check bounds for a fixed-width primitive of n bytes.
func checkEncode(buf []byte, n int) error {
	if len(buf) < n {
		return errors.ErrBufferTooSmall
	}
	return nil
}

func checkDecode(data []byte, n int) error {
	if len(data) < n {
		return errors.ErrShortPayload
	}
	return nil
}
