package clientserver

import (
	"log/slog"
	"sync"

	ncerrors "github.com/c360/nodecomm/errors"
)

// LocalKey identifies a request accepted by a local server: which
// client sent it and the client's key for it.
type LocalKey struct {
	ClientID uint64
	Seq      uint64
}

type localEnvelope[Req any] struct {
	key LocalKey
	req Req
}

type localResponse[Res any] struct {
	seq uint64
	res Res
}

// LocalServerDeps holds configuration for a local server
type LocalServerDeps struct {
	// QueueSize bounds the request and per-client response queues
	QueueSize int
	Logger    *slog.Logger
}

// LocalServer is an in-process server. Clients are created from the
// server and exchange messages over buffered channels.
type LocalServer[Req, Res any] struct {
	logger    *slog.Logger
	queueSize int
	reqCh     chan localEnvelope[Req]

	mu           sync.Mutex
	nextClientID uint64
	clients      map[uint64]chan localResponse[Res]
	accepted     map[LocalKey]struct{}
}

// NewLocalServer creates a local server
func NewLocalServer[Req, Res any](deps LocalServerDeps) *LocalServer[Req, Res] {
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "local-server")
	}
	return &LocalServer[Req, Res]{
		logger:    logger,
		queueSize: queueSize,
		reqCh:     make(chan localEnvelope[Req], queueSize),
		clients:   make(map[uint64]chan localResponse[Res]),
		accepted:  make(map[LocalKey]struct{}),
	}
}

// CreateClient registers a new client with the server
func (s *LocalServer[Req, Res]) CreateClient() *LocalClient[Req, Res] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextClientID++
	id := s.nextClientID
	resCh := make(chan localResponse[Res], s.queueSize)
	s.clients[id] = resCh

	return &LocalClient[Req, Res]{
		id:          id,
		server:      s,
		resCh:       resCh,
		outstanding: make(map[uint64]struct{}),
		pending:     make(map[uint64]Res),
	}
}

// PollRequest checks for a pending request without blocking
func (s *LocalServer[Req, Res]) PollRequest() (LocalKey, Req, bool, error) {
	select {
	case env := <-s.reqCh:
		s.mu.Lock()
		s.accepted[env.key] = struct{}{}
		s.mu.Unlock()
		return env.key, env.req, true, nil
	default:
		var zero Req
		return LocalKey{}, zero, false, nil
	}
}

// SendResponse routes a response back to the client that sent the request
func (s *LocalServer[Req, Res]) SendResponse(key LocalKey, res Res) error {
	s.mu.Lock()
	if _, ok := s.accepted[key]; !ok {
		s.mu.Unlock()
		return ncerrors.ErrUnknownKey
	}
	resCh, ok := s.clients[key.ClientID]
	if !ok {
		s.mu.Unlock()
		return ncerrors.ErrUnknownKey
	}
	delete(s.accepted, key)
	s.mu.Unlock()

	select {
	case resCh <- localResponse[Res]{seq: key.Seq, res: res}:
		return nil
	default:
		return ncerrors.WrapTransient(ncerrors.ErrSendFailed,
			"local-server", "SendResponse", "response queue full")
	}
}

func (s *LocalServer[Req, Res]) submit(env localEnvelope[Req]) error {
	select {
	case s.reqCh <- env:
		return nil
	default:
		return ncerrors.WrapTransient(ncerrors.ErrSendFailed,
			"local-client", "SendRequest", "request queue full")
	}
}

// LocalClient sends requests to the local server it was created from.
// A LocalClient is intended for use by a single goroutine.
type LocalClient[Req, Res any] struct {
	id     uint64
	server *LocalServer[Req, Res]
	resCh  chan localResponse[Res]

	nextSeq     uint64
	outstanding map[uint64]struct{}
	pending     map[uint64]Res
}

// ID returns the client's identity with its server
func (c *LocalClient[Req, Res]) ID() uint64 {
	return c.id
}

// SendRequest submits a request and returns its key
func (c *LocalClient[Req, Res]) SendRequest(req Req) (uint64, error) {
	c.nextSeq++
	key := c.nextSeq
	// A wrapped sequence may land on a key still awaiting its response.
	if _, ok := c.outstanding[key]; ok {
		c.nextSeq--
		return 0, ncerrors.ErrKeysExhausted
	}

	env := localEnvelope[Req]{
		key: LocalKey{ClientID: c.id, Seq: key},
		req: req,
	}
	if err := c.server.submit(env); err != nil {
		c.nextSeq--
		return 0, err
	}
	c.outstanding[key] = struct{}{}
	return key, nil
}

// PollResponse checks for the response to an outstanding key
func (c *LocalClient[Req, Res]) PollResponse(key uint64) (Res, bool, error) {
	var zero Res
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.drainResponses()

	res, ok := c.pending[key]
	if !ok {
		return zero, false, nil
	}
	delete(c.pending, key)
	delete(c.outstanding, key)
	return res, true, nil
}

func (c *LocalClient[Req, Res]) drainResponses() {
	for {
		select {
		case r := <-c.resCh:
			c.pending[r.seq] = r.res
		default:
			return
		}
	}
}
