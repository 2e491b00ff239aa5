package testutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// CountingNode counts its lifecycle calls and returns the configured
// errors. The zero value is usable after setting Name and Period.
type CountingNode struct {
	Name   string
	Period time.Duration

	StartErr    error
	UpdateErr   error
	ShutdownErr error

	// OnUpdate, when set, runs inside every Update call
	OnUpdate func()

	Starts    atomic.Int64
	Updates   atomic.Int64
	Shutdowns atomic.Int64
}

// ID returns the node's name
func (n *CountingNode) ID() string { return n.Name }

// UpdatePeriod returns the configured period
func (n *CountingNode) UpdatePeriod() time.Duration { return n.Period }

// Start counts the call and returns StartErr
func (n *CountingNode) Start() error {
	n.Starts.Add(1)
	return n.StartErr
}

// Update counts the call, runs OnUpdate, and returns UpdateErr
func (n *CountingNode) Update() error {
	n.Updates.Add(1)
	if n.OnUpdate != nil {
		n.OnUpdate()
	}
	return n.UpdateErr
}

// Shutdown counts the call and returns ShutdownErr
func (n *CountingNode) Shutdown() error {
	n.Shutdowns.Add(1)
	return n.ShutdownErr
}

// RecordingNode captures the wall-clock instant of every update.
type RecordingNode struct {
	Name   string
	Period time.Duration

	mu    sync.Mutex
	ticks []time.Time
}

// ID returns the node's name
func (n *RecordingNode) ID() string { return n.Name }

// UpdatePeriod returns the configured period
func (n *RecordingNode) UpdatePeriod() time.Duration { return n.Period }

// Start is a no-op
func (n *RecordingNode) Start() error { return nil }

// Update records the current instant
func (n *RecordingNode) Update() error {
	n.mu.Lock()
	n.ticks = append(n.ticks, time.Now())
	n.mu.Unlock()
	return nil
}

// Shutdown is a no-op
func (n *RecordingNode) Shutdown() error { return nil }

// Ticks returns a copy of the recorded update instants
func (n *RecordingNode) Ticks() []time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]time.Time, len(n.ticks))
	copy(out, n.ticks)
	return out
}

// SlowNode sleeps for Delay inside every update. It exposes whether
// two of its updates ever overlapped.
type SlowNode struct {
	Name   string
	Period time.Duration
	Delay  time.Duration

	inUpdate   atomic.Int32
	overlapped atomic.Bool
	Updates    atomic.Int64
}

// ID returns the node's name
func (n *SlowNode) ID() string { return n.Name }

// UpdatePeriod returns the configured period
func (n *SlowNode) UpdatePeriod() time.Duration { return n.Period }

// Start is a no-op
func (n *SlowNode) Start() error { return nil }

// Update sleeps for Delay, flagging any overlapping invocation
func (n *SlowNode) Update() error {
	if n.inUpdate.Add(1) > 1 {
		n.overlapped.Store(true)
	}
	time.Sleep(n.Delay)
	n.inUpdate.Add(-1)
	n.Updates.Add(1)
	return nil
}

// Shutdown is a no-op
func (n *SlowNode) Shutdown() error { return nil }

// Overlapped reports whether two updates ever ran at the same time
func (n *SlowNode) Overlapped() bool { return n.overlapped.Load() }
