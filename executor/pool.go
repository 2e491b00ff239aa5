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
	"github.com/c360/nodecomm/pkg/worker"
)

// PoolDeps holds runtime dependencies for a Pool executor
type PoolDeps struct {
	// Workers is the number of concurrent update workers
	Workers int
	// QueueSize bounds the dispatch queue; defaults to the worker count
	QueueSize int
	// ShutdownTimeout bounds the wait for in-flight updates on exit
	ShutdownTimeout time.Duration
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// Pool runs node updates on a fixed worker pool. Scheduling follows the
// same due-time bookkeeping as Simple, but due nodes are dispatched to
// workers so slow nodes do not delay the rest. A node is absent from
// the schedule while its update is in flight, so updates of the same
// node never overlap; a node that overruns its period is rescheduled
// one period after its previous due time and simply runs late.
type Pool[ID comparable] struct {
	workers         int
	queueSize       int
	shutdownTimeout time.Duration
	logger          *slog.Logger
	metrics         *metric.Metrics

	mu      sync.Mutex
	nodes   map[ID]node.Node[ID]
	ordered []ID
	states  map[ID]node.State
	running atomic.Bool
	done    atomic.Bool
}

// NewPool creates a concurrent executor
func NewPool[ID comparable](deps PoolDeps) *Pool[ID] {
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = workers
	}
	shutdownTimeout := deps.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "pool-executor")
	}

	p := &Pool[ID]{
		workers:         workers,
		queueSize:       queueSize,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		nodes:           make(map[ID]node.Node[ID]),
		states:          make(map[ID]node.State),
	}
	if deps.MetricsRegistry != nil {
		p.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return p
}

// AddNode registers a node, replacing any node with the same ID
func (p *Pool[ID]) AddNode(n node.Node[ID]) error {
	if p.running.Load() {
		return ncerrors.ErrAlreadyStarted
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	id := n.ID()
	if _, exists := p.nodes[id]; !exists {
		p.ordered = append(p.ordered, id)
	}
	p.nodes[id] = n
	p.states[id] = node.StateNotStarted
	return nil
}

// RemoveNode deregisters a node and returns it
func (p *Pool[ID]) RemoveNode(id ID) (node.Node[ID], error) {
	if p.running.Load() {
		return nil, ncerrors.ErrAlreadyStarted
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	n, ok := p.nodes[id]
	if !ok {
		return nil, ncerrors.ErrNodeNotFound
	}
	delete(p.nodes, id)
	delete(p.states, id)
	for i, other := range p.ordered {
		if other == id {
			p.ordered = append(p.ordered[:i], p.ordered[i+1:]...)
			break
		}
	}
	return n, nil
}

// NodeState reports a node's current lifecycle state
func (p *Pool[ID]) NodeState(id ID) (node.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[id]
	if !ok {
		return node.StateNotStarted, ncerrors.ErrNodeNotFound
	}
	return state, nil
}

func (p *Pool[ID]) setState(id ID, state node.State) {
	p.mu.Lock()
	p.states[id] = state
	p.mu.Unlock()
	recordState(p.metrics, id, state)
}

// Run starts every node, dispatches updates to the worker pool until
// the context is cancelled, then shuts the nodes down. A Run that has
// returned leaves the executor terminated; further Run calls fail with
// ErrExecutorDone.
func (p *Pool[ID]) Run(ctx context.Context) error {
	if p.done.Load() {
		return ncerrors.ErrExecutorDone
	}
	if !p.running.CompareAndSwap(false, true) {
		return ncerrors.ErrAlreadyStarted
	}
	defer func() {
		p.done.Store(true)
		p.running.Store(false)
	}()

	p.mu.Lock()
	ordered := make([]ID, len(p.ordered))
	copy(ordered, p.ordered)
	nodes := make(map[ID]node.Node[ID], len(p.nodes))
	for id, n := range p.nodes {
		nodes[id] = n
	}
	p.mu.Unlock()

	sched := &schedule[ID]{}
	start := time.Now()

	// Start phase runs to completion before any update dispatches.
	for _, id := range ordered {
		n := nodes[id]
		if err := n.Start(); err != nil {
			p.setState(id, node.StateFailed)
			p.logger.Error("node start failed", "node", id, "error", err)
			if p.metrics != nil {
				p.metrics.NodeErrors.WithLabelValues(fmtID(id), "start").Inc()
			}
			continue
		}
		p.setState(id, node.StateRunning)
		sched.insert(&entry[ID]{n: n, next: start})
	}

	completionCh := make(chan *entry[ID], len(ordered)+p.queueSize)
	pool := worker.NewPool(p.workers, p.queueSize, func(_ context.Context, e *entry[ID]) error {
		p.runUpdate(e)
		completionCh <- e
		return nil
	})

	// The pool gets its own context: workers must survive scheduler
	// cancellation long enough to finish in-flight updates.
	poolCtx, poolCancel := context.WithCancel(context.Background())
	defer poolCancel()
	if err := pool.Start(poolCtx); err != nil {
		return ncerrors.Wrap(err, "pool-executor", "Run", "worker pool start")
	}

	inFlight := p.dispatch(ctx, sched, pool, completionCh)

	// Wait for in-flight updates so shutdown never overlaps an update.
	drainDeadline := time.After(p.shutdownTimeout)
	for inFlight > 0 {
		select {
		case <-completionCh:
			inFlight--
		case <-drainDeadline:
			p.logger.Error("in-flight updates did not finish before shutdown",
				"remaining", inFlight, "timeout", p.shutdownTimeout)
			inFlight = 0
		}
	}

	if err := pool.Stop(p.shutdownTimeout); err != nil {
		p.logger.Error("worker pool stop failed", "error", err)
	}

	// Shutdown phase after every worker is quiet.
	for _, id := range ordered {
		p.mu.Lock()
		state := p.states[id]
		p.mu.Unlock()
		if state != node.StateRunning {
			continue
		}
		if err := nodes[id].Shutdown(); err != nil {
			p.logger.Error("node shutdown failed", "node", id, "error", err)
			if p.metrics != nil {
				p.metrics.NodeErrors.WithLabelValues(fmtID(id), "shutdown").Inc()
			}
		}
		p.setState(id, node.StateShutDown)
	}

	return nil
}

// RunFor runs for at most d before shutting down
func (p *Pool[ID]) RunFor(ctx context.Context, d time.Duration) error {
	bounded, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.Run(bounded)
}

// dispatch feeds due nodes to the pool and reinserts completed ones
// until the context is cancelled. Returns the number of updates still
// in flight at exit.
func (p *Pool[ID]) dispatch(ctx context.Context, sched *schedule[ID],
	pool *worker.Pool[*entry[ID]], completionCh chan *entry[ID]) int {

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	inFlight := 0
	for {
		// Dispatch everything currently due. Popped entries stay out
		// of the schedule until their completion arrives.
		queueFull := false
		now := time.Now()
		for {
			next := sched.peek()
			if next == nil || next.next.After(now) {
				break
			}
			e := sched.pop()
			if err := pool.Submit(e); err != nil {
				// Queue saturated; a worker completion is the only
				// thing that frees capacity, so park until one arrives
				// rather than re-arming the already-expired timer.
				sched.insert(e)
				queueFull = true
				p.logger.Warn("dispatch queue full, node deferred", "node", e.n.ID())
				break
			}
			inFlight++
			if p.metrics != nil {
				p.metrics.SchedulerTicks.WithLabelValues("pool").Inc()
			}
		}

		var timerCh <-chan time.Time
		if next := sched.peek(); next != nil && !queueFull {
			timer.Reset(time.Until(next.next))
			timerCh = timer.C
		}

		select {
		case <-ctx.Done():
			if timerCh != nil && !timer.Stop() {
				<-timer.C
			}
			return inFlight
		case e := <-completionCh:
			if timerCh != nil && !timer.Stop() {
				<-timer.C
			}
			inFlight--
			e.next = e.next.Add(e.n.UpdatePeriod())
			sched.insert(e)
		case <-timerCh:
		}
	}
}

func (p *Pool[ID]) runUpdate(e *entry[ID]) {
	begin := time.Now()
	err := e.n.Update()
	duration := time.Since(begin)

	recordUpdate(p.metrics, e.n.ID(), duration, err)
	if err != nil {
		p.logger.Warn("node update failed", "node", e.n.ID(), "error", err)
	}
}
