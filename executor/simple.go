package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/node"
)

// SimpleDeps holds runtime dependencies for a Simple executor
type SimpleDeps struct {
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// Simple runs every node on the calling goroutine. The loop sleeps
// until the earliest due time, runs that node's update, and reschedules
// it one period after the time it was due, so periods do not drift with
// update cost.
type Simple[ID comparable] struct {
	logger  *slog.Logger
	metrics *metric.Metrics

	mu      sync.Mutex
	nodes   map[ID]node.Node[ID]
	ordered []ID
	states  map[ID]node.State
	running atomic.Bool
	done    atomic.Bool
}

// NewSimple creates a single-threaded executor
func NewSimple[ID comparable](deps SimpleDeps) *Simple[ID] {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "simple-executor")
	}
	s := &Simple[ID]{
		logger: logger,
		nodes:  make(map[ID]node.Node[ID]),
		states: make(map[ID]node.State),
	}
	if deps.MetricsRegistry != nil {
		s.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return s
}

// AddNode registers a node, replacing any node with the same ID
func (s *Simple[ID]) AddNode(n node.Node[ID]) error {
	if s.running.Load() {
		return ncerrors.ErrAlreadyStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := n.ID()
	if _, exists := s.nodes[id]; !exists {
		s.ordered = append(s.ordered, id)
	}
	s.nodes[id] = n
	s.states[id] = node.StateNotStarted
	return nil
}

// RemoveNode deregisters a node and returns it
func (s *Simple[ID]) RemoveNode(id ID) (node.Node[ID], error) {
	if s.running.Load() {
		return nil, ncerrors.ErrAlreadyStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, ncerrors.ErrNodeNotFound
	}
	delete(s.nodes, id)
	delete(s.states, id)
	for i, other := range s.ordered {
		if other == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return n, nil
}

// NodeState reports a node's current lifecycle state
func (s *Simple[ID]) NodeState(id ID) (node.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return node.StateNotStarted, ncerrors.ErrNodeNotFound
	}
	return state, nil
}

func (s *Simple[ID]) setState(id ID, state node.State) {
	s.mu.Lock()
	s.states[id] = state
	s.mu.Unlock()
	recordState(s.metrics, id, state)
}

// Run starts every node, updates them on schedule until the context is
// cancelled, then shuts them down. A Run that has returned leaves the
// executor terminated; further Run calls fail with ErrExecutorDone.
func (s *Simple[ID]) Run(ctx context.Context) error {
	if s.done.Load() {
		return ncerrors.ErrExecutorDone
	}
	if !s.running.CompareAndSwap(false, true) {
		return ncerrors.ErrAlreadyStarted
	}
	defer func() {
		s.done.Store(true)
		s.running.Store(false)
	}()

	sched := &schedule[ID]{}
	start := time.Now()

	// Start phase: nodes start in insertion order. A start failure
	// marks the node failed and keeps it out of the schedule.
	s.mu.Lock()
	ordered := make([]ID, len(s.ordered))
	copy(ordered, s.ordered)
	nodes := make(map[ID]node.Node[ID], len(s.nodes))
	for id, n := range s.nodes {
		nodes[id] = n
	}
	s.mu.Unlock()

	for _, id := range ordered {
		n := nodes[id]
		if err := n.Start(); err != nil {
			s.setState(id, node.StateFailed)
			s.logger.Error("node start failed", "node", id, "error", err)
			if s.metrics != nil {
				s.metrics.NodeErrors.WithLabelValues(fmtID(id), "start").Inc()
			}
			continue
		}
		s.setState(id, node.StateRunning)
		sched.insert(&entry[ID]{n: n, next: start})
	}

	s.loop(ctx, sched)

	// Shutdown phase: every node that started shuts down, even if the
	// loop exited mid-schedule.
	for _, id := range ordered {
		s.mu.Lock()
		state := s.states[id]
		s.mu.Unlock()
		if state != node.StateRunning {
			continue
		}
		if err := nodes[id].Shutdown(); err != nil {
			s.logger.Error("node shutdown failed", "node", id, "error", err)
			if s.metrics != nil {
				s.metrics.NodeErrors.WithLabelValues(fmtID(id), "shutdown").Inc()
			}
		}
		s.setState(id, node.StateShutDown)
	}

	return nil
}

// RunFor runs for at most d before shutting down
func (s *Simple[ID]) RunFor(ctx context.Context, d time.Duration) error {
	bounded, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return s.Run(bounded)
}

func (s *Simple[ID]) loop(ctx context.Context, sched *schedule[ID]) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := sched.peek()
		if next == nil {
			// Nothing to schedule; wait out the context.
			<-ctx.Done()
			return
		}

		if wait := time.Until(next.next); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			default:
			}
		}

		e := sched.pop()
		s.runUpdate(e)
		e.next = e.next.Add(e.n.UpdatePeriod())
		sched.insert(e)

		if s.metrics != nil {
			s.metrics.SchedulerTicks.WithLabelValues("simple").Inc()
		}
	}
}

func (s *Simple[ID]) runUpdate(e *entry[ID]) {
	begin := time.Now()
	err := e.n.Update()
	duration := time.Since(begin)

	recordUpdate(s.metrics, e.n.ID(), duration, err)
	if err != nil {
		s.logger.Warn("node update failed", "node", e.n.ID(), "error", err)
	}
}
