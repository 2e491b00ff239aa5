// Package nodecomm is a node-based communication framework for building
// concurrent, periodically-scheduled components ("nodes") that exchange data
// through typed, transport-agnostic primitives.
//
// # Architecture
//
// A Node is a unit of work with an identifier, an update period, and three
// lifecycle callbacks (Start, Update, Shutdown). An Executor owns a collection
// of nodes and drives their lifecycle: Start once per node, Update no earlier
// than one period after the previous scheduled update, Shutdown once per node
// when the run context is cancelled.
//
// Two executors are provided:
//
//   - executor.Simple: single-threaded cooperative scheduling. Updates never
//     overlap; a node that blocks inside Update delays every other node.
//   - executor.Pool: worker-pool scheduling. Different nodes update
//     concurrently; updates of the same node are strictly serialized.
//
// Nodes communicate through three primitives:
//
//   - pubsub: single-writer, multi-reader latest-value broadcast. No queueing,
//     no delivery guarantee beyond "most recent wins". Local, UDP, NATS and
//     WebSocket variants.
//   - clientserver: keyed request/response exchange with multiplexed in-flight
//     requests. Local, serial (framed byte stream) and UDP datagram variants.
//   - updateclientserver: client/server extended with ordered intermediate
//     update messages per request, for long-running progress-reporting
//     operations. Local and UDP variants.
//
// Byte-oriented transports serialize values through the packing contract
// (packing.Codec): a fixed-maximum-length encode/decode pair obeying the
// round-trip law Decode(Encode(v)) == v.
//
// # Supporting packages
//
//   - errors: classified error handling (transient/invalid/fatal) with
//     component.method context wrapping.
//   - metric: Prometheus registry and core framework metrics.
//   - config: YAML framework configuration with validation.
//   - pkg/buffer: bounded generic ring buffer used by the byte transports.
//   - pkg/worker: generic worker pool backing the Pool executor.
//   - pkg/retry: exponential backoff for socket binds and broker connects.
//
// All state is in-memory and scoped to the process run. The framework provides
// no durable log, no delivery retry across restarts, and no per-request
// timeouts; applications needing those build them above this layer.
package nodecomm
