package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/packing"
	"github.com/c360/nodecomm/pkg/retry"
)

const udpTransportLabel = "udp"

// UDPPublisherDeps holds runtime dependencies for a UDP publisher
type UDPPublisherDeps[T any] struct {
	Codec           packing.Codec[T]
	Targets         []string
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// UDPPublisher sends packed samples as datagrams to a set of target
// addresses. Each Publish stamps the next sequence and fires one
// datagram per target; delivery is best effort.
type UDPPublisher[T any] struct {
	codec  packing.Codec[T]
	logger *slog.Logger

	mu      sync.Mutex
	conn    *net.UDPConn
	targets []*net.UDPAddr
	closed  bool

	seq     atomic.Uint64
	metrics *metric.Metrics
}

// NewUDPPublisher creates a UDP publisher bound to an ephemeral local port
func NewUDPPublisher[T any](deps UDPPublisherDeps[T]) (*UDPPublisher[T], error) {
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-publisher", "NewUDPPublisher", "codec validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-publisher")
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "udp-publisher", "NewUDPPublisher", "socket binding")
	}

	p := &UDPPublisher[T]{
		codec:  deps.Codec,
		logger: logger,
		conn:   conn,
	}
	if deps.MetricsRegistry != nil {
		p.metrics = deps.MetricsRegistry.CoreMetrics()
	}

	for _, target := range deps.Targets {
		if err := p.AddTarget(target); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return p, nil
}

// AddTarget adds a destination address for subsequent publishes
func (p *UDPPublisher[T]) AddTarget(target string) error {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return ncerrors.WrapInvalid(err, "udp-publisher", "AddTarget", "address resolution")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ncerrors.ErrTransportClosed
	}
	p.targets = append(p.targets, addr)
	return nil
}

// Publish packs the value and sends it to every target
func (p *UDPPublisher[T]) Publish(value T) error {
	seq := p.seq.Add(1)
	frame, err := encodeFrame(p.codec, Sample[T]{Value: value, Seq: seq})
	if err != nil {
		return ncerrors.WrapInvalid(err, "udp-publisher", "Publish", "frame encoding")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ncerrors.ErrTransportClosed
	}

	var lastErr error
	for _, addr := range p.targets {
		n, err := p.conn.WriteToUDP(frame, addr)
		if err != nil {
			lastErr = err
			p.logger.Warn("datagram send failed", "target", addr.String(), "error", err)
			continue
		}
		if p.metrics != nil {
			p.metrics.MessagesPublished.WithLabelValues(udpTransportLabel).Inc()
			p.metrics.BytesSent.WithLabelValues(udpTransportLabel).Add(float64(n))
		}
	}
	if lastErr != nil {
		return ncerrors.WrapTransient(lastErr, "udp-publisher", "Publish", "datagram send")
	}
	return nil
}

// LocalAddr returns the publisher's bound address
func (p *UDPPublisher[T]) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// Close releases the socket
func (p *UDPPublisher[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

// UDPSubscriberDeps holds runtime dependencies for a UDP subscriber
type UDPSubscriberDeps[T any] struct {
	Codec           packing.Codec[T]
	BindAddr        string
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// UDPSubscriber receives packed samples on a bound socket and keeps
// only the most recent one. Out-of-order datagrams with a stale
// sequence are discarded so observed sequences never decrease.
type UDPSubscriber[T any] struct {
	codec    packing.Codec[T]
	bindAddr string
	logger   *slog.Logger

	slot atomic.Pointer[Sample[T]]

	retryConfig retry.Config
	shutdown    chan struct{}
	done        chan struct{}
	running     atomic.Bool
	mu          sync.RWMutex
	wg          sync.WaitGroup
	conn        *net.UDPConn
	lastSeq     uint64

	datagramsReceived atomic.Int64
	datagramsStale    atomic.Int64
	errors            atomic.Int64

	metrics *metric.Metrics
}

// NewUDPSubscriber creates a UDP subscriber. Start binds the socket.
func NewUDPSubscriber[T any](deps UDPSubscriberDeps[T]) (*UDPSubscriber[T], error) {
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-subscriber", "NewUDPSubscriber", "codec validation")
	}
	if deps.BindAddr == "" {
		return nil, ncerrors.WrapInvalid(ncerrors.ErrMissingConfig,
			"udp-subscriber", "NewUDPSubscriber", "bind address validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-subscriber", "bind", deps.BindAddr)
	}

	s := &UDPSubscriber[T]{
		codec:       deps.Codec,
		bindAddr:    deps.BindAddr,
		logger:      logger,
		retryConfig: retry.DefaultConfig(),
	}
	if deps.MetricsRegistry != nil {
		s.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return s, nil
}

// Start binds the socket and launches the receive loop
func (s *UDPSubscriber[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})

	if err := retry.Do(ctx, s.retryConfig, s.bindSocket); err != nil {
		return ncerrors.WrapTransient(err, "udp-subscriber", "Start", "socket binding")
	}

	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		s.readLoop(ctx)
	}()

	return nil
}

func (s *UDPSubscriber[T]) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", s.bindAddr)
	if err != nil {
		return retry.NonRetryable(fmt.Errorf("resolve %s: %w", s.bindAddr, err))
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bindAddr, err)
	}
	s.conn = conn
	return nil
}

// Stop terminates the receive loop and closes the socket
func (s *UDPSubscriber[T]) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		close(s.shutdown)
		s.shutdown = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return ncerrors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"udp-subscriber", "Stop", "graceful shutdown")
	}
}

// LocalAddr returns the bound address, or nil before Start
func (s *UDPSubscriber[T]) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Get returns the most recent sample received, false before any arrive
func (s *UDPSubscriber[T]) Get() (Sample[T], bool) {
	sample := s.slot.Load()
	if sample == nil {
		return Sample[T]{}, false
	}
	return *sample, true
}

func (s *UDPSubscriber[T]) readLoop(ctx context.Context) {
	frame := make([]byte, seqHeaderLen+s.codec.Size())

	for s.running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(frame)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if !s.running.Load() {
				return
			}
			s.errors.Add(1)
			continue
		}

		sample, err := decodeFrame(s.codec, frame[:n])
		if err != nil {
			s.errors.Add(1)
			s.logger.Warn("malformed datagram discarded", "bytes", n, "error", err)
			continue
		}

		s.datagramsReceived.Add(1)
		if s.metrics != nil {
			s.metrics.BytesReceived.WithLabelValues(udpTransportLabel).Add(float64(n))
		}

		if sample.Seq <= s.lastSeq {
			s.datagramsStale.Add(1)
			continue
		}
		s.lastSeq = sample.Seq
		s.slot.Store(&sample)
	}
}

// Stats returns receive-side counters
func (s *UDPSubscriber[T]) Stats() (received, stale, errors int64) {
	return s.datagramsReceived.Load(), s.datagramsStale.Load(), s.errors.Load()
}
