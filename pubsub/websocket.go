package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/metric"
	"github.com/c360/nodecomm/packing"
)

const wsTransportLabel = "websocket"

// WSHubDeps holds runtime dependencies for a websocket hub
type WSHubDeps[T any] struct {
	Addr            string
	Path            string
	Codec           packing.Codec[T]
	MetricsRegistry *metric.Registry
	Logger          *slog.Logger
}

// WSHub is a latest-value publisher serving websocket subscribers.
// Each Publish is broadcast as a binary frame to every connected
// client; a new client immediately receives the current latest value.
type WSHub[T any] struct {
	addr   string
	path   string
	codec  packing.Codec[T]
	logger *slog.Logger

	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]struct{}

	slot    atomic.Pointer[[]byte]
	seq     atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup

	metrics *metric.Metrics
}

// NewWSHub creates a websocket hub. Start binds the listener.
func NewWSHub[T any](deps WSHubDeps[T]) (*WSHub[T], error) {
	if deps.Addr == "" {
		return nil, ncerrors.WrapInvalid(ncerrors.ErrMissingConfig,
			"ws-hub", "NewWSHub", "address validation")
	}
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"ws-hub", "NewWSHub", "codec validation")
	}

	path := deps.Path
	if path == "" {
		path = "/stream"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ws-hub", "addr", deps.Addr)
	}

	h := &WSHub[T]{
		addr:    deps.Addr,
		path:    path,
		codec:   deps.Codec,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if deps.MetricsRegistry != nil {
		h.metrics = deps.MetricsRegistry.CoreMetrics()
	}
	return h, nil
}

// Start binds the listener and begins accepting subscribers
func (h *WSHub[T]) Start(_ context.Context) error {
	if h.running.Load() {
		return nil
	}

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return ncerrors.WrapTransient(err, "ws-hub", "Start", "listener binding")
	}
	h.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(h.path, h.handleSubscriber)
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.running.Store(true)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			h.logger.Error("websocket server exited", "error", err)
		}
	}()
	return nil
}

func (h *WSHub[T]) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = struct{}{}
	h.clientsMu.Unlock()

	// Late joiners get the current latest value right away.
	if frame := h.slot.Load(); frame != nil {
		_ = conn.WriteMessage(websocket.BinaryMessage, *frame)
	}

	// Drain the client's read side so close frames are processed.
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		h.clientsMu.Lock()
		delete(h.clients, conn)
		h.clientsMu.Unlock()
		_ = conn.Close()
	}()
}

// Publish packs the value and broadcasts it to all connected clients
func (h *WSHub[T]) Publish(value T) error {
	if !h.running.Load() {
		return ncerrors.ErrNotStarted
	}

	seq := h.seq.Add(1)
	frame, err := encodeFrame(h.codec, Sample[T]{Value: value, Seq: seq})
	if err != nil {
		return ncerrors.WrapInvalid(err, "ws-hub", "Publish", "frame encoding")
	}
	h.slot.Store(&frame)

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			h.logger.Warn("client write failed", "remote", conn.RemoteAddr().String(), "error", err)
			continue
		}
		if h.metrics != nil {
			h.metrics.MessagesPublished.WithLabelValues(wsTransportLabel).Inc()
			h.metrics.BytesSent.WithLabelValues(wsTransportLabel).Add(float64(len(frame)))
		}
	}
	return nil
}

// Addr returns the bound listener address, or empty before Start
func (h *WSHub[T]) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// ClientCount returns the number of connected subscribers
func (h *WSHub[T]) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Stop disconnects clients and shuts the server down
func (h *WSHub[T]) Stop(timeout time.Duration) error {
	if !h.running.Load() {
		return nil
	}
	h.running.Store(false)

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return ncerrors.WrapTransient(err, "ws-hub", "Stop", "server shutdown")
	}
	h.wg.Wait()
	return nil
}

// WSSubscriberDeps holds runtime dependencies for a websocket subscriber
type WSSubscriberDeps[T any] struct {
	URL    string
	Codec  packing.Codec[T]
	Logger *slog.Logger
}

// WSSubscriber dials a hub and keeps the most recent broadcast sample
type WSSubscriber[T any] struct {
	codec  packing.Codec[T]
	logger *slog.Logger
	conn   *websocket.Conn

	slot    atomic.Pointer[Sample[T]]
	lastSeq uint64
	done    chan struct{}
}

// NewWSSubscriber dials the hub URL and begins receiving
func NewWSSubscriber[T any](deps WSSubscriberDeps[T]) (*WSSubscriber[T], error) {
	if deps.URL == "" {
		return nil, ncerrors.WrapInvalid(ncerrors.ErrMissingConfig,
			"ws-subscriber", "NewWSSubscriber", "url validation")
	}
	if deps.Codec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"ws-subscriber", "NewWSSubscriber", "codec validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ws-subscriber", "url", deps.URL)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(deps.URL, nil)
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "ws-subscriber", "NewWSSubscriber", "hub dial")
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s := &WSSubscriber[T]{
		codec:  deps.Codec,
		logger: logger,
		conn:   conn,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			sample, err := decodeFrame(s.codec, data)
			if err != nil {
				s.logger.Warn("malformed frame discarded", "bytes", len(data), "error", err)
				continue
			}
			if sample.Seq <= s.lastSeq {
				continue
			}
			s.lastSeq = sample.Seq
			s.slot.Store(&sample)
		}
	}()
	return s, nil
}

// Get returns the most recent sample received, false before any arrive
func (s *WSSubscriber[T]) Get() (Sample[T], bool) {
	sample := s.slot.Load()
	if sample == nil {
		return Sample[T]{}, false
	}
	return *sample, true
}

// Close disconnects from the hub
func (s *WSSubscriber[T]) Close() error {
	err := s.conn.Close()
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
	return err
}
