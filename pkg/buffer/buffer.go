// Package buffer provides a generic, thread-safe bounded ring buffer with
// configurable overflow policies. It stages frames between transport sockets
// and the non-blocking polls of the communication primitives.
package buffer

import (
	"github.com/c360/nodecomm/metric"
)

// Buffer is a bounded FIFO parameterized by item type T. All operations are
// non-blocking: transports poll, they never wait on the buffer.
type Buffer[T any] interface {
	// Write adds an item to the buffer. When the buffer is full the overflow
	// policy decides which item is dropped; Write itself never blocks.
	Write(item T) error

	// Read retrieves and removes one item. Returns the zero value and false
	// if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items.
	ReadBatch(max int) []T

	// Peek retrieves one item without removing it.
	Peek() (T, bool)

	// Size returns the current number of items.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// Clear removes all items.
	Clear()

	// Stats returns buffer statistics.
	Stats() Statistics
}

// OverflowPolicy defines behavior when the buffer reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items while the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// Option configures a ring buffer.
type Option[T any] func(*options[T])

type options[T any] struct {
	overflowPolicy OverflowPolicy
	metricsReg     *metric.Registry
	metricsPrefix  string
}

// WithOverflowPolicy sets the overflow policy (default DropOldest).
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *options[T]) {
		o.overflowPolicy = policy
	}
}

// WithMetrics exposes buffer statistics as Prometheus metrics registered
// under the given prefix.
func WithMetrics[T any](registry *metric.Registry, prefix string) Option[T] {
	return func(o *options[T]) {
		o.metricsReg = registry
		o.metricsPrefix = prefix
	}
}

// NewRing creates a bounded ring buffer with the given capacity.
func NewRing[T any](capacity int, opts ...Option[T]) (Buffer[T], error) {
	o := &options[T]{overflowPolicy: DropOldest}
	for _, opt := range opts {
		opt(o)
	}
	return newRing(capacity, o)
}
