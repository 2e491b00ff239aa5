package updateclientserver

import (
	"log/slog"
	"sync"

	"github.com/c360/nodecomm/clientserver"
	ncerrors "github.com/c360/nodecomm/errors"
)

type localEnvelope[Req any] struct {
	key clientserver.LocalKey
	req Req
}

// localDelivery carries either an update or the final response
type localDelivery[Upd, Res any] struct {
	seq   uint64
	upd   Upd
	res   Res
	final bool
}

// LocalUpdateServerDeps holds configuration for a local update server
type LocalUpdateServerDeps struct {
	// QueueSize bounds the request and per-client delivery queues
	QueueSize int
	Logger    *slog.Logger
}

// LocalUpdateServer is an in-process server that streams updates to
// its clients before concluding each request with a response.
type LocalUpdateServer[Req, Upd, Res any] struct {
	logger    *slog.Logger
	queueSize int
	reqCh     chan localEnvelope[Req]

	mu           sync.Mutex
	nextClientID uint64
	clients      map[uint64]chan localDelivery[Upd, Res]
	accepted     map[clientserver.LocalKey]struct{}
}

// NewLocalUpdateServer creates a local update server
func NewLocalUpdateServer[Req, Upd, Res any](deps LocalUpdateServerDeps) *LocalUpdateServer[Req, Upd, Res] {
	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "local-update-server")
	}
	return &LocalUpdateServer[Req, Upd, Res]{
		logger:    logger,
		queueSize: queueSize,
		reqCh:     make(chan localEnvelope[Req], queueSize),
		clients:   make(map[uint64]chan localDelivery[Upd, Res]),
		accepted:  make(map[clientserver.LocalKey]struct{}),
	}
}

// CreateClient registers a new client with the server
func (s *LocalUpdateServer[Req, Upd, Res]) CreateClient() *LocalUpdateClient[Req, Upd, Res] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextClientID++
	id := s.nextClientID
	deliveryCh := make(chan localDelivery[Upd, Res], s.queueSize)
	s.clients[id] = deliveryCh

	return &LocalUpdateClient[Req, Upd, Res]{
		id:          id,
		server:      s,
		deliveryCh:  deliveryCh,
		outstanding: make(map[uint64]struct{}),
		updates:     make(map[uint64][]Upd),
		responses:   make(map[uint64]Res),
	}
}

// PollRequest checks for a pending request without blocking
func (s *LocalUpdateServer[Req, Upd, Res]) PollRequest() (clientserver.LocalKey, Req, bool, error) {
	select {
	case env := <-s.reqCh:
		s.mu.Lock()
		s.accepted[env.key] = struct{}{}
		s.mu.Unlock()
		return env.key, env.req, true, nil
	default:
		var zero Req
		return clientserver.LocalKey{}, zero, false, nil
	}
}

// SendUpdate streams an intermediate update for an accepted key
func (s *LocalUpdateServer[Req, Upd, Res]) SendUpdate(key clientserver.LocalKey, upd Upd) error {
	return s.deliver(key, localDelivery[Upd, Res]{seq: key.Seq, upd: upd}, false)
}

// SendResponse concludes an accepted key with its final response
func (s *LocalUpdateServer[Req, Upd, Res]) SendResponse(key clientserver.LocalKey, res Res) error {
	return s.deliver(key, localDelivery[Upd, Res]{seq: key.Seq, res: res, final: true}, true)
}

func (s *LocalUpdateServer[Req, Upd, Res]) deliver(key clientserver.LocalKey, d localDelivery[Upd, Res], release bool) error {
	s.mu.Lock()
	if _, ok := s.accepted[key]; !ok {
		s.mu.Unlock()
		return ncerrors.ErrUnknownKey
	}
	deliveryCh, ok := s.clients[key.ClientID]
	if !ok {
		s.mu.Unlock()
		return ncerrors.ErrUnknownKey
	}
	if release {
		delete(s.accepted, key)
	}
	s.mu.Unlock()

	select {
	case deliveryCh <- d:
		return nil
	default:
		return ncerrors.WrapTransient(ncerrors.ErrSendFailed,
			"local-update-server", "deliver", "delivery queue full")
	}
}

func (s *LocalUpdateServer[Req, Upd, Res]) submit(env localEnvelope[Req]) error {
	select {
	case s.reqCh <- env:
		return nil
	default:
		return ncerrors.WrapTransient(ncerrors.ErrSendFailed,
			"local-update-client", "SendRequest", "request queue full")
	}
}

// LocalUpdateClient sends requests and collects streamed updates and
// the final response by key. Intended for use by a single goroutine.
type LocalUpdateClient[Req, Upd, Res any] struct {
	id         uint64
	server     *LocalUpdateServer[Req, Upd, Res]
	deliveryCh chan localDelivery[Upd, Res]

	nextSeq     uint64
	outstanding map[uint64]struct{}
	updates     map[uint64][]Upd
	responses   map[uint64]Res
}

// ID returns the client's identity with its server
func (c *LocalUpdateClient[Req, Upd, Res]) ID() uint64 {
	return c.id
}

// SendRequest submits a request and returns its key
func (c *LocalUpdateClient[Req, Upd, Res]) SendRequest(req Req) (uint64, error) {
	c.nextSeq++
	key := c.nextSeq
	// A wrapped sequence may land on a key still awaiting its response.
	if _, ok := c.outstanding[key]; ok {
		c.nextSeq--
		return 0, ncerrors.ErrKeysExhausted
	}

	env := localEnvelope[Req]{
		key: clientserver.LocalKey{ClientID: c.id, Seq: key},
		req: req,
	}
	if err := c.server.submit(env); err != nil {
		c.nextSeq--
		return 0, err
	}
	c.outstanding[key] = struct{}{}
	return key, nil
}

// PollUpdate returns the oldest unretrieved update for the key
func (c *LocalUpdateClient[Req, Upd, Res]) PollUpdate(key uint64) (Upd, bool, error) {
	var zero Upd
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.drain()

	queue := c.updates[key]
	if len(queue) == 0 {
		return zero, false, nil
	}
	upd := queue[0]
	if len(queue) == 1 {
		delete(c.updates, key)
	} else {
		c.updates[key] = queue[1:]
	}
	return upd, true, nil
}

// PollResponse returns the final response once every retrievable update
// for the key has been consumed. Consuming the response releases the key.
func (c *LocalUpdateClient[Req, Upd, Res]) PollResponse(key uint64) (Res, bool, error) {
	var zero Res
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.drain()

	// Updates take precedence over the conclusion.
	if len(c.updates[key]) > 0 {
		return zero, false, nil
	}
	res, ok := c.responses[key]
	if !ok {
		return zero, false, nil
	}
	delete(c.responses, key)
	delete(c.outstanding, key)
	return res, true, nil
}

func (c *LocalUpdateClient[Req, Upd, Res]) drain() {
	for {
		select {
		case d := <-c.deliveryCh:
			if d.final {
				c.responses[d.seq] = d.res
			} else {
				c.updates[d.seq] = append(c.updates[d.seq], d.upd)
			}
		default:
			return
		}
	}
}
