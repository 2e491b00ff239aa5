// Package pubsub provides latest-value publish/subscribe primitives.
//
// The data model is a single overwritten slot, not a queue: each publish
// replaces the previous value and advances a uint64 sequence, and a
// subscriber reading the slot sees only the most recent sample. This
// suits periodic sensor-style data where stale intermediate values have
// no use.
//
// Four transports share the model:
//
//   - Publisher/Subscriber: in-process, an atomic pointer swap per publish.
//   - UDPPublisher/UDPSubscriber: packed samples as datagrams, best effort.
//   - NATSPublisher/NATSSubscriber: packed samples on a core NATS subject.
//   - WSHub/WSSubscriber: broadcast to websocket clients, late joiners
//     receive the current value on connect.
//
// Remote transports carry the publisher's sequence in an 8-byte frame
// header; receivers discard frames with a stale sequence so the observed
// sequence never decreases even when the network reorders delivery.
package pubsub
