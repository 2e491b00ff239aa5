// Package node defines the lifecycle contract for periodically-scheduled
// units of work.
package node

import (
	"time"
)

// State represents the current lifecycle state of a node
type State int

const (
	// StateNotStarted indicates the node was created but Start has not run
	StateNotStarted State = iota
	// StateRunning indicates Start completed and the node receives updates
	StateRunning
	// StateShutDown indicates Shutdown completed; no further calls occur
	StateShutDown
	// StateFailed indicates Start returned an error; the node is excluded
	// from update and shutdown dispatch
	StateFailed
)

// String returns a string representation of the node state
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateShutDown:
		return "shut_down"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Node is a singular unit of work performed once per update period.
//
// An executor calls Start exactly once at the NotStarted to Running
// transition, then Update no earlier than one period after the node's
// previous scheduled update, then Shutdown exactly once at the Running to
// ShutDown transition. Lifecycle methods mutate only state the node owns (its
// communication primitives and private fields) and must not block
// indefinitely: a node using a blocking transport is expected to poll
// non-blockingly or bound its wait to well under its own period.
//
// The identifier type is any comparable value; an executor uses it to locate,
// add, and remove a specific node.
type Node[ID comparable] interface {
	// ID returns the node's identifier, unique within its executor.
	ID() ID

	// UpdatePeriod returns the interval at which Update should be called.
	UpdatePeriod() time.Duration

	// Start performs node setup. Called once before the first Update.
	Start() error

	// Update performs one tick of the node's work.
	Update() error

	// Shutdown cleans up the node's resources. Called once after the last
	// Update.
	Shutdown() error
}
