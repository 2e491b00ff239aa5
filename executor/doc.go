// Package executor schedules nodes for periodic updates.
//
// Both executors share the same bookkeeping: each node carries the
// instant its next update is due, the earliest due node runs next, and
// after an update the node is rescheduled one period after the time it
// was due rather than the time it finished, so scheduling does not
// drift with update cost. Nodes due at the same instant run in
// insertion order.
//
// Simple runs everything on the calling goroutine and suits
// cooperatively-written nodes with short updates. Pool dispatches due
// nodes to a fixed worker pool so one slow node cannot stall the
// schedule; a node is out of the schedule while its update is in
// flight, which keeps a single node's updates strictly sequential.
//
// Run drives the full lifecycle: Start every node, update until the
// context is cancelled, then Shutdown every node that started. A node
// whose Start fails is marked failed and excluded from both the update
// schedule and the shutdown phase. Update errors are logged and counted
// but leave the node scheduled.
package executor
