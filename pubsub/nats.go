package pubsub

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/packing"
)

const natsTransportLabel = "nats"

// NATSPublisherDeps holds runtime dependencies for a NATS publisher
type NATSPublisherDeps[T any] struct {
	Conn            *nats.Conn
	Subject         string
	Codec           packing.Codec[T]
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// NATSPublisher publishes packed samples on a core NATS subject.
// Subscribers joining late see the next publish, not history.
type NATSPublisher[T any] struct {
	conn    *nats.Conn
	subject string
	codec   packing.Codec[T]
	logger  *slog.Logger
	seq     atomic.Uint64
	metrics *metric.Metrics
}

// NewNATSPublisher creates a publisher for the given subject
func NewNATSPublisher[T any](deps NATSPublisherDeps[T]) (*NATSPublisher[T], error) {
	if deps.Conn == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil NATS connection"),
			"nats-publisher", "NewNATSPublisher", "connection validation")
	}
	if deps.Subject == "" {
		return nil, ncerrors.WrapInvalid(ncerrors.ErrMissingConfig,
			"nats-publisher", "NewNATSPublisher", "subject validation")
	}
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"nats-publisher", "NewNATSPublisher", "codec validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-publisher", "subject", deps.Subject)
	}

	p := &NATSPublisher[T]{
		conn:    deps.Conn,
		subject: deps.Subject,
		codec:   deps.Codec,
		logger:  logger,
	}
	if deps.MetricsRegistry != nil {
		p.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return p, nil
}

// Publish packs the value and publishes it to the subject
func (p *NATSPublisher[T]) Publish(value T) error {
	seq := p.seq.Add(1)
	frame, err := encodeFrame(p.codec, Sample[T]{Value: value, Seq: seq})
	if err != nil {
		return ncerrors.WrapInvalid(err, "nats-publisher", "Publish", "frame encoding")
	}

	if err := p.conn.Publish(p.subject, frame); err != nil {
		return ncerrors.WrapTransient(err, "nats-publisher", "Publish", "NATS publish")
	}

	if p.metrics != nil {
		p.metrics.MessagesPublished.WithLabelValues(natsTransportLabel).Inc()
		p.metrics.BytesSent.WithLabelValues(natsTransportLabel).Add(float64(len(frame)))
	}
	return nil
}

// NATSSubscriberDeps holds runtime dependencies for a NATS subscriber
type NATSSubscriberDeps[T any] struct {
	Conn            *nats.Conn
	Subject         string
	Codec           packing.Codec[T]
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// NATSSubscriber keeps the most recent sample seen on a subject.
// Messages with a stale sequence are discarded.
type NATSSubscriber[T any] struct {
	id      string
	codec   packing.Codec[T]
	logger  *slog.Logger
	sub     *nats.Subscription
	slot    atomic.Pointer[Sample[T]]
	lastSeq uint64
	metrics *metric.Metrics
}

// NewNATSSubscriber subscribes to the subject and begins receiving
func NewNATSSubscriber[T any](deps NATSSubscriberDeps[T]) (*NATSSubscriber[T], error) {
	if deps.Conn == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil NATS connection"),
			"nats-subscriber", "NewNATSSubscriber", "connection validation")
	}
	if deps.Subject == "" {
		return nil, ncerrors.WrapInvalid(ncerrors.ErrMissingConfig,
			"nats-subscriber", "NewNATSSubscriber", "subject validation")
	}
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"nats-subscriber", "NewNATSSubscriber", "codec validation")
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-subscriber", "subject", deps.Subject, "id", id)
	}

	s := &NATSSubscriber[T]{
		id:     id,
		codec:  deps.Codec,
		logger: logger,
	}
	if deps.MetricsRegistry != nil {
		s.metrics = deps.MetricsRegistry.CoreMetrics()
	}

	// Message handlers for a single subscription run serially, so
	// lastSeq needs no lock.
	sub, err := deps.Conn.Subscribe(deps.Subject, func(msg *nats.Msg) {
		sample, err := decodeFrame(s.codec, msg.Data)
		if err != nil {
			s.logger.Warn("malformed message discarded", "bytes", len(msg.Data), "error", err)
			return
		}
		if s.metrics != nil {
			s.metrics.BytesReceived.WithLabelValues(natsTransportLabel).Add(float64(len(msg.Data)))
		}
		if sample.Seq <= s.lastSeq {
			return
		}
		s.lastSeq = sample.Seq
		s.slot.Store(&sample)
	})
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "nats-subscriber", "NewNATSSubscriber", "NATS subscribe")
	}
	s.sub = sub
	return s, nil
}

// ID returns the subscriber's unique identity
func (s *NATSSubscriber[T]) ID() string {
	return s.id
}

// Get returns the most recent sample received, false before any arrive
func (s *NATSSubscriber[T]) Get() (Sample[T], bool) {
	sample := s.slot.Load()
	if sample == nil {
		return Sample[T]{}, false
	}
	return *sample, true
}

// Close drains the subscription
func (s *NATSSubscriber[T]) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return ncerrors.WrapTransient(err, "nats-subscriber", "Close", "unsubscribe")
	}
	return nil
}
