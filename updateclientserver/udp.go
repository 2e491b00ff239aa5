package updateclientserver

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/c360/nodecomm/clientserver"
	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/packing"
)

// Datagram layout: 8-byte little-endian key, 1-byte kind, packed payload.
const (
	keyHeaderLen = 8
	kindOffset   = keyHeaderLen
	payloadStart = keyHeaderLen + 1

	kindRequest  = byte(0)
	kindUpdate   = byte(1)
	kindResponse = byte(2)
)

// pollWindow bounds how long a non-blocking poll may wait on the socket
const pollWindow = 100 * time.Microsecond

// UDPUpdateClientDeps holds runtime dependencies for a UDP update client
type UDPUpdateClientDeps[Req, Upd, Res any] struct {
	ServerAddr string
	ReqCodec   packing.Codec[Req]
	UpdCodec   packing.Codec[Upd]
	ResCodec   packing.Codec[Res]
	Logger     *slog.Logger
}

// UDPUpdateClient exchanges datagrams with an update server. Updates
// for a key are queued in arrival order; the response is withheld
// until the queue is empty. Intended for use by a single goroutine.
type UDPUpdateClient[Req, Upd, Res any] struct {
	conn     *net.UDPConn
	reqCodec packing.Codec[Req]
	updCodec packing.Codec[Upd]
	resCodec packing.Codec[Res]
	logger   *slog.Logger

	nextSeq     uint64
	outstanding map[uint64]struct{}
	updates     map[uint64][]Upd
	responses   map[uint64]Res
	readBuf     []byte
}

// NewUDPUpdateClient creates a client connected to the server address
func NewUDPUpdateClient[Req, Upd, Res any](deps UDPUpdateClientDeps[Req, Upd, Res]) (*UDPUpdateClient[Req, Upd, Res], error) {
	if deps.ReqCodec == nil || deps.UpdCodec == nil || deps.ResCodec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-update-client", "NewUDPUpdateClient", "codec validation")
	}

	addr, err := net.ResolveUDPAddr("udp", deps.ServerAddr)
	if err != nil {
		return nil, ncerrors.WrapInvalid(err, "udp-update-client", "NewUDPUpdateClient", "address resolution")
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "udp-update-client", "NewUDPUpdateClient", "socket dial")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-update-client", "server", deps.ServerAddr)
	}

	readSize := deps.UpdCodec.Size()
	if deps.ResCodec.Size() > readSize {
		readSize = deps.ResCodec.Size()
	}

	return &UDPUpdateClient[Req, Upd, Res]{
		conn:        conn,
		reqCodec:    deps.ReqCodec,
		updCodec:    deps.UpdCodec,
		resCodec:    deps.ResCodec,
		logger:      logger,
		outstanding: make(map[uint64]struct{}),
		updates:     make(map[uint64][]Upd),
		responses:   make(map[uint64]Res),
		readBuf:     make([]byte, payloadStart+readSize),
	}, nil
}

// SendRequest packs the request into a datagram and sends it
func (c *UDPUpdateClient[Req, Upd, Res]) SendRequest(req Req) (uint64, error) {
	c.nextSeq++
	key := c.nextSeq
	// A wrapped sequence may land on a key still awaiting its response.
	if _, ok := c.outstanding[key]; ok {
		c.nextSeq--
		return 0, ncerrors.ErrKeysExhausted
	}

	datagram := make([]byte, payloadStart+c.reqCodec.Size())
	binary.LittleEndian.PutUint64(datagram[:keyHeaderLen], key)
	datagram[kindOffset] = kindRequest
	if err := c.reqCodec.Encode(datagram[payloadStart:], req); err != nil {
		c.nextSeq--
		return 0, ncerrors.WrapInvalid(err, "udp-update-client", "SendRequest", "request encoding")
	}

	if _, err := c.conn.Write(datagram); err != nil {
		c.nextSeq--
		return 0, ncerrors.WrapTransient(err, "udp-update-client", "SendRequest", "datagram send")
	}
	c.outstanding[key] = struct{}{}
	return key, nil
}

// PollUpdate returns the oldest unretrieved update for the key
func (c *UDPUpdateClient[Req, Upd, Res]) PollUpdate(key uint64) (Upd, bool, error) {
	var zero Upd
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.pump()

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
func (c *UDPUpdateClient[Req, Upd, Res]) PollResponse(key uint64) (Res, bool, error) {
	var zero Res
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.pump()

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

func (c *UDPUpdateClient[Req, Upd, Res]) pump() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, err := c.conn.Read(c.readBuf)
		if err != nil {
			return
		}
		if n < payloadStart {
			c.logger.Warn("truncated datagram discarded", "bytes", n)
			continue
		}

		key := binary.LittleEndian.Uint64(c.readBuf[:keyHeaderLen])
		if _, ok := c.outstanding[key]; !ok {
			c.logger.Warn("datagram for unknown key discarded", "key", key)
			continue
		}

		switch c.readBuf[kindOffset] {
		case kindUpdate:
			upd, err := c.updCodec.Decode(c.readBuf[payloadStart:n])
			if err != nil {
				c.logger.Warn("malformed update discarded", "key", key, "error", err)
				continue
			}
			c.updates[key] = append(c.updates[key], upd)
		case kindResponse:
			res, err := c.resCodec.Decode(c.readBuf[payloadStart:n])
			if err != nil {
				c.logger.Warn("malformed response discarded", "key", key, "error", err)
				continue
			}
			c.responses[key] = res
		default:
			c.logger.Warn("datagram with unknown kind discarded", "key", key, "kind", c.readBuf[kindOffset])
		}
	}
}

// Close releases the socket
func (c *UDPUpdateClient[Req, Upd, Res]) Close() error {
	return c.conn.Close()
}

// UDPUpdateServerDeps holds runtime dependencies for a UDP update server
type UDPUpdateServerDeps[Req, Upd, Res any] struct {
	BindAddr string
	ReqCodec packing.Codec[Req]
	UpdCodec packing.Codec[Upd]
	ResCodec packing.Codec[Res]
	Logger   *slog.Logger
}

// UDPUpdateServer answers packed requests with streamed updates and a
// final response. Intended for use by a single goroutine.
type UDPUpdateServer[Req, Upd, Res any] struct {
	conn     *net.UDPConn
	reqCodec packing.Codec[Req]
	updCodec packing.Codec[Upd]
	resCodec packing.Codec[Res]
	logger   *slog.Logger

	accepted map[clientserver.UDPKey]struct{}
	readBuf  []byte
}

// NewUDPUpdateServer creates a server bound to the given address
func NewUDPUpdateServer[Req, Upd, Res any](deps UDPUpdateServerDeps[Req, Upd, Res]) (*UDPUpdateServer[Req, Upd, Res], error) {
	if deps.ReqCodec == nil || deps.UpdCodec == nil || deps.ResCodec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-update-server", "NewUDPUpdateServer", "codec validation")
	}

	addr, err := net.ResolveUDPAddr("udp", deps.BindAddr)
	if err != nil {
		return nil, ncerrors.WrapInvalid(err, "udp-update-server", "NewUDPUpdateServer", "address resolution")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "udp-update-server", "NewUDPUpdateServer", "socket binding")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-update-server", "bind", deps.BindAddr)
	}

	return &UDPUpdateServer[Req, Upd, Res]{
		conn:     conn,
		reqCodec: deps.ReqCodec,
		updCodec: deps.UpdCodec,
		resCodec: deps.ResCodec,
		logger:   logger,
		accepted: make(map[clientserver.UDPKey]struct{}),
		readBuf:  make([]byte, payloadStart+deps.ReqCodec.Size()),
	}, nil
}

// LocalAddr returns the server's bound address
func (s *UDPUpdateServer[Req, Upd, Res]) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// PollRequest checks for a pending request without blocking
func (s *UDPUpdateServer[Req, Upd, Res]) PollRequest() (clientserver.UDPKey, Req, bool, error) {
	var zero Req
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, src, err := s.conn.ReadFromUDPAddrPort(s.readBuf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return clientserver.UDPKey{}, zero, false, nil
			}
			return clientserver.UDPKey{}, zero, false, ncerrors.WrapTransient(err,
				"udp-update-server", "PollRequest", "datagram read")
		}
		if n < payloadStart || s.readBuf[kindOffset] != kindRequest {
			s.logger.Warn("unexpected datagram discarded", "source", src.String(), "bytes", n)
			continue
		}

		seq := binary.LittleEndian.Uint64(s.readBuf[:keyHeaderLen])
		req, err := s.reqCodec.Decode(s.readBuf[payloadStart:n])
		if err != nil {
			s.logger.Warn("malformed datagram discarded", "source", src.String(), "error", err)
			continue
		}

		key := clientserver.UDPKey{Addr: src, Seq: seq}
		s.accepted[key] = struct{}{}
		return key, req, true, nil
	}
}

// SendUpdate streams an intermediate update for an accepted key
func (s *UDPUpdateServer[Req, Upd, Res]) SendUpdate(key clientserver.UDPKey, upd Upd) error {
	if _, ok := s.accepted[key]; !ok {
		return ncerrors.ErrUnknownKey
	}

	datagram := make([]byte, payloadStart+s.updCodec.Size())
	binary.LittleEndian.PutUint64(datagram[:keyHeaderLen], key.Seq)
	datagram[kindOffset] = kindUpdate
	if err := s.updCodec.Encode(datagram[payloadStart:], upd); err != nil {
		return ncerrors.WrapInvalid(err, "udp-update-server", "SendUpdate", "update encoding")
	}

	if _, err := s.conn.WriteToUDPAddrPort(datagram, key.Addr); err != nil {
		return ncerrors.WrapTransient(err, "udp-update-server", "SendUpdate", "datagram send")
	}
	return nil
}

// SendResponse concludes an accepted key with its final response
func (s *UDPUpdateServer[Req, Upd, Res]) SendResponse(key clientserver.UDPKey, res Res) error {
	if _, ok := s.accepted[key]; !ok {
		return ncerrors.ErrUnknownKey
	}

	datagram := make([]byte, payloadStart+s.resCodec.Size())
	binary.LittleEndian.PutUint64(datagram[:keyHeaderLen], key.Seq)
	datagram[kindOffset] = kindResponse
	if err := s.resCodec.Encode(datagram[payloadStart:], res); err != nil {
		return ncerrors.WrapInvalid(err, "udp-update-server", "SendResponse", "response encoding")
	}

	if _, err := s.conn.WriteToUDPAddrPort(datagram, key.Addr); err != nil {
		return ncerrors.WrapTransient(err, "udp-update-server", "SendResponse", "datagram send")
	}
	delete(s.accepted, key)
	return nil
}

// Close releases the socket
func (s *UDPUpdateServer[Req, Upd, Res]) Close() error {
	return s.conn.Close()
}
