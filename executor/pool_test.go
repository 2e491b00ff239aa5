package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/node"
	"github.com/c360/nodecomm/testutil"
)

func TestPoolLifecycle(t *testing.T) {
	exec := NewPool[string](PoolDeps{Workers: 2})
	n := &testutil.CountingNode{Name: "counter", Period: 5 * time.Millisecond}
	require.NoError(t, exec.AddNode(n))

	require.NoError(t, exec.RunFor(context.Background(), 60*time.Millisecond))

	assert.Equal(t, int64(1), n.Starts.Load())
	assert.Equal(t, int64(1), n.Shutdowns.Load())
	assert.Greater(t, n.Updates.Load(), int64(5))

	state, err := exec.NodeState("counter")
	require.NoError(t, err)
	assert.Equal(t, node.StateShutDown, state)
}

func TestPoolSameNodeNeverOverlaps(t *testing.T) {
	// The update takes three periods, so an overlap would occur
	// immediately if the same node could be dispatched twice.
	exec := NewPool[string](PoolDeps{Workers: 4})
	slow := &testutil.SlowNode{Name: "slow", Period: 5 * time.Millisecond, Delay: 15 * time.Millisecond}
	require.NoError(t, exec.AddNode(slow))

	require.NoError(t, exec.RunFor(context.Background(), 100*time.Millisecond))

	assert.False(t, slow.Overlapped())
	assert.Greater(t, slow.Updates.Load(), int64(2))
}

func TestPoolSlowNodeDoesNotStallOthers(t *testing.T) {
	exec := NewPool[string](PoolDeps{Workers: 2, ShutdownTimeout: time.Second})
	slow := &testutil.SlowNode{Name: "slow", Period: 5 * time.Millisecond, Delay: 40 * time.Millisecond}
	fast := &testutil.CountingNode{Name: "fast", Period: 2 * time.Millisecond}
	require.NoError(t, exec.AddNode(slow))
	require.NoError(t, exec.AddNode(fast))

	require.NoError(t, exec.RunFor(context.Background(), 100*time.Millisecond))

	// The fast node keeps its cadence despite the slow one occupying
	// a worker most of the run.
	assert.Greater(t, fast.Updates.Load(), int64(20))
}

func TestPoolStartAndShutdownPhasesSequential(t *testing.T) {
	exec := NewPool[string](PoolDeps{Workers: 4})

	bad := &testutil.CountingNode{Name: "bad", Period: time.Millisecond, StartErr: errors.New("init failure")}
	good := &testutil.CountingNode{Name: "good", Period: time.Millisecond}
	require.NoError(t, exec.AddNode(bad))
	require.NoError(t, exec.AddNode(good))

	require.NoError(t, exec.RunFor(context.Background(), 30*time.Millisecond))

	assert.Equal(t, int64(0), bad.Updates.Load())
	assert.Equal(t, int64(0), bad.Shutdowns.Load())
	assert.Equal(t, int64(1), good.Shutdowns.Load())

	state, err := exec.NodeState("bad")
	require.NoError(t, err)
	assert.Equal(t, node.StateFailed, state)
}

func TestPoolInFlightUpdateFinishesBeforeShutdown(t *testing.T) {
	exec := NewPool[string](PoolDeps{Workers: 1, ShutdownTimeout: time.Second})

	var shutdownDuringUpdate atomic.Bool
	var inUpdate atomic.Bool
	n := &testutil.CountingNode{Name: "careful", Period: time.Millisecond}
	n.OnUpdate = func() {
		inUpdate.Store(true)
		time.Sleep(10 * time.Millisecond)
		inUpdate.Store(false)
	}
	wrapped := &shutdownObserver{CountingNode: n, onShutdown: func() {
		if inUpdate.Load() {
			shutdownDuringUpdate.Store(true)
		}
	}}
	require.NoError(t, exec.AddNode(wrapped))

	require.NoError(t, exec.RunFor(context.Background(), 25*time.Millisecond))

	assert.False(t, shutdownDuringUpdate.Load())
	assert.Equal(t, int64(1), n.Shutdowns.Load())
}

// shutdownObserver observes the instant Shutdown is called
type shutdownObserver struct {
	*testutil.CountingNode
	onShutdown func()
}

func (o *shutdownObserver) Shutdown() error {
	o.onShutdown()
	return o.CountingNode.Shutdown()
}

func TestPoolNotRerunnableAfterTermination(t *testing.T) {
	exec := NewPool[string](PoolDeps{Workers: 2})
	n := &testutil.CountingNode{Name: "once", Period: time.Millisecond}
	require.NoError(t, exec.AddNode(n))

	require.NoError(t, exec.RunFor(context.Background(), 10*time.Millisecond))

	err := exec.RunFor(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ncerrors.ErrExecutorDone)
	assert.ErrorIs(t, exec.Run(context.Background()), ncerrors.ErrExecutorDone)

	assert.Equal(t, int64(1), n.Starts.Load())
	assert.Equal(t, int64(1), n.Shutdowns.Load())
}

func TestPoolDeferredNodeRunsAfterQueueDrains(t *testing.T) {
	// One worker and a one-slot queue: with three slow nodes due at
	// once the dispatch queue saturates, so deferred nodes only run
	// when completions free capacity.
	exec := NewPool[string](PoolDeps{Workers: 1, QueueSize: 1, ShutdownTimeout: time.Second})
	var nodes []*testutil.CountingNode
	for _, name := range []string{"a", "b", "c"} {
		n := &testutil.CountingNode{Name: name, Period: 2 * time.Millisecond}
		n.OnUpdate = func() { time.Sleep(5 * time.Millisecond) }
		require.NoError(t, exec.AddNode(n))
		nodes = append(nodes, n)
	}

	require.NoError(t, exec.RunFor(context.Background(), 100*time.Millisecond))

	for _, n := range nodes {
		assert.Greater(t, n.Updates.Load(), int64(2), n.Name)
		assert.Equal(t, int64(1), n.Shutdowns.Load(), n.Name)
	}
}
