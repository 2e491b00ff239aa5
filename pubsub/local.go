package pubsub

import (
	"sync/atomic"
)

// Publisher is an in-process latest-value publisher. Each Publish
// atomically replaces the shared slot; intermediate values a subscriber
// did not read are lost. Publish never blocks and never fails.
type Publisher[T any] struct {
	slot *atomic.Pointer[Sample[T]]
	seq  atomic.Uint64
}

// NewPublisher creates a local publisher with an empty slot
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{
		slot: &atomic.Pointer[Sample[T]]{},
	}
}

// Publish replaces the latest value and advances the sequence
func (p *Publisher[T]) Publish(value T) {
	seq := p.seq.Add(1)
	p.slot.Store(&Sample[T]{Value: value, Seq: seq})
}

// Subscribe returns a subscriber sharing the publisher's slot.
// Subscribers created at any time see the current latest value.
func (p *Publisher[T]) Subscribe() *Subscriber[T] {
	return &Subscriber[T]{slot: p.slot}
}

// Subscriber reads the latest value published to a shared slot.
// A Subscriber is intended for use by a single goroutine.
type Subscriber[T any] struct {
	slot    *atomic.Pointer[Sample[T]]
	lastSeq uint64
}

// Get returns the latest sample. The boolean is false until the first
// publish. The observed sequence never decreases across calls.
func (s *Subscriber[T]) Get() (Sample[T], bool) {
	sample := s.slot.Load()
	if sample == nil {
		return Sample[T]{}, false
	}
	if sample.Seq > s.lastSeq {
		s.lastSeq = sample.Seq
	}
	return *sample, true
}

// Fresh reports whether a sample newer than the last Get is available
func (s *Subscriber[T]) Fresh() bool {
	sample := s.slot.Load()
	return sample != nil && sample.Seq > s.lastSeq
}
