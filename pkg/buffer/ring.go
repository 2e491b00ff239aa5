package buffer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/nodecomm/errors"
)

// Statistics captures buffer observability counters.
type Statistics struct {
	Writes    int64
	Reads     int64
	Dropped   int64
	Overflows int64
}

type ringMetrics struct {
	depth   prometheus.Gauge
	dropped prometheus.Counter
}

// ring is a thread-safe bounded circular buffer.
type ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	policy   OverflowPolicy
	stats    Statistics
	metrics  *ringMetrics
}

func newRing[T any](capacity int, o *options[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	r := &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		policy:   o.overflowPolicy,
	}

	if o.metricsReg != nil && o.metricsPrefix != "" {
		depth := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: o.metricsPrefix + "_buffer_depth",
			Help: "Current buffer depth",
		})
		dropped := prometheus.NewCounter(prometheus.CounterOpts{
			Name: o.metricsPrefix + "_buffer_dropped_total",
			Help: "Items dropped by the buffer overflow policy",
		})
		if err := o.metricsReg.RegisterGauge(o.metricsPrefix, "buffer_depth", depth); err != nil {
			return nil, errors.Wrap(err, "buffer", "newRing", "metrics registration")
		}
		if err := o.metricsReg.RegisterCounter(o.metricsPrefix, "buffer_dropped", dropped); err != nil {
			return nil, errors.Wrap(err, "buffer", "newRing", "metrics registration")
		}
		r.metrics = &ringMetrics{depth: depth, dropped: dropped}
	}

	return r, nil
}

func (r *ring[T]) Write(item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == r.capacity {
		r.stats.Overflows++
		r.stats.Dropped++
		if r.metrics != nil {
			r.metrics.dropped.Inc()
		}

		switch r.policy {
		case DropOldest:
			// Overwrite the oldest item
			r.tail = (r.tail + 1) % r.capacity
			r.size--
		case DropNewest:
			return nil
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	r.stats.Writes++
	if r.metrics != nil {
		r.metrics.depth.Set(float64(r.size))
	}
	return nil
}

func (r *ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readLocked()
}

func (r *ring[T]) readLocked() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // release the reference
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	r.stats.Reads++
	if r.metrics != nil {
		r.metrics.depth.Set(float64(r.size))
	}
	return item, true
}

func (r *ring[T]) ReadBatch(max int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max <= 0 || r.size == 0 {
		return nil
	}
	if max > r.size {
		max = r.size
	}

	batch := make([]T, 0, max)
	for i := 0; i < max; i++ {
		item, ok := r.readLocked()
		if !ok {
			break
		}
		batch = append(batch, item)
	}
	return batch
}

func (r *ring[T]) Peek() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

func (r *ring[T]) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *ring[T]) Capacity() int {
	return r.capacity
}

func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.tail, r.size = 0, 0, 0
	if r.metrics != nil {
		r.metrics.depth.Set(0)
	}
}

func (r *ring[T]) Stats() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
