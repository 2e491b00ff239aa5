package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/node"
)

// Executor schedules a set of nodes for periodic updates.
//
// Run drives the full lifecycle: every node's Start, then periodic
// Updates until the context is cancelled, then every node's Shutdown.
// Node membership is fixed while Run is in progress.
type Executor[ID comparable] interface {
	// AddNode registers a node. A node with the same ID is replaced.
	AddNode(n node.Node[ID]) error

	// RemoveNode deregisters a node and returns it.
	RemoveNode(id ID) (node.Node[ID], error)

	// Run blocks until the context is cancelled, then performs the
	// shutdown phase and returns.
	Run(ctx context.Context) error

	// RunFor runs for at most d before shutting down.
	RunFor(ctx context.Context, d time.Duration) error

	// NodeState reports a node's current lifecycle state.
	NodeState(id ID) (node.State, error)
}

// entry is a node's scheduling bookkeeping: when its next update is
// due and its insertion order for tie-breaking at equal due times.
type entry[ID comparable] struct {
	n     node.Node[ID]
	next  time.Time
	order uint64
}

// schedule keeps entries sorted by due time, earliest first. Entries
// due at the same instant run in insertion order; a reinserted entry
// receives a fresh order so equal-period nodes take turns.
type schedule[ID comparable] struct {
	entries   []*entry[ID]
	nextOrder uint64
}

func (s *schedule[ID]) insert(e *entry[ID]) {
	s.nextOrder++
	e.order = s.nextOrder

	lo, hi := 0, len(s.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		other := s.entries[mid]
		if other.next.Before(e.next) || (other.next.Equal(e.next) && other.order < e.order) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[lo+1:], s.entries[lo:])
	s.entries[lo] = e
}

func (s *schedule[ID]) peek() *entry[ID] {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[0]
}

func (s *schedule[ID]) pop() *entry[ID] {
	if len(s.entries) == 0 {
		return nil
	}
	e := s.entries[0]
	s.entries[0] = nil
	s.entries = s.entries[1:]
	return e
}

func (s *schedule[ID]) len() int {
	return len(s.entries)
}

// fmtID renders a node identifier as a metric label
func fmtID[ID comparable](id ID) string {
	return fmt.Sprint(id)
}

// recordUpdate captures the outcome of one node update in the core
// metrics, when a registry is present.
func recordUpdate[ID comparable](metrics *metric.Metrics, id ID, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	name := fmtID(id)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.NodeUpdates.WithLabelValues(name, status).Inc()
	metrics.UpdateDuration.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		metrics.NodeErrors.WithLabelValues(name, "update").Inc()
	}
}

// recordState mirrors a node's lifecycle state into the status gauge
func recordState[ID comparable](metrics *metric.Metrics, id ID, state node.State) {
	if metrics == nil {
		return
	}
	metrics.NodeStatus.WithLabelValues(fmtID(id)).Set(float64(state))
}
