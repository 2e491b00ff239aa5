package clientserver

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/packing"
)

// pollWindow bounds how long a non-blocking poll may wait on the
// socket. Data already queued by the kernel is returned immediately;
// an empty socket makes the read time out after this window.
const pollWindow = 100 * time.Microsecond

// UDPKey identifies a request accepted by a UDP server: the source
// address the request arrived from and the client's key for it.
// Responses are routed back to that address.
type UDPKey struct {
	Addr netip.AddrPort
	Seq  uint64
}

// UDPClientDeps holds runtime dependencies for a UDP client
type UDPClientDeps[Req, Res any] struct {
	ServerAddr string
	ReqCodec   packing.Codec[Req]
	ResCodec   packing.Codec[Res]
	Logger     *slog.Logger
}

// UDPClient sends one packed request per datagram and polls for
// responses without blocking. A UDPClient is intended for use by a
// single goroutine.
type UDPClient[Req, Res any] struct {
	conn     *net.UDPConn
	reqCodec packing.Codec[Req]
	resCodec packing.Codec[Res]
	logger   *slog.Logger

	nextSeq     uint64
	outstanding map[uint64]struct{}
	pending     map[uint64]Res
	readBuf     []byte
}

// NewUDPClient creates a client connected to the server address
func NewUDPClient[Req, Res any](deps UDPClientDeps[Req, Res]) (*UDPClient[Req, Res], error) {
	if deps.ReqCodec == nil || deps.ResCodec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-client", "NewUDPClient", "codec validation")
	}

	addr, err := net.ResolveUDPAddr("udp", deps.ServerAddr)
	if err != nil {
		return nil, ncerrors.WrapInvalid(err, "udp-client", "NewUDPClient", "address resolution")
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "udp-client", "NewUDPClient", "socket dial")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-client", "server", deps.ServerAddr)
	}

	return &UDPClient[Req, Res]{
		conn:        conn,
		reqCodec:    deps.ReqCodec,
		resCodec:    deps.ResCodec,
		logger:      logger,
		outstanding: make(map[uint64]struct{}),
		pending:     make(map[uint64]Res),
		readBuf:     make([]byte, keyHeaderLen+deps.ResCodec.Size()),
	}, nil
}

// SendRequest packs the request into a datagram and sends it
func (c *UDPClient[Req, Res]) SendRequest(req Req) (uint64, error) {
	c.nextSeq++
	key := c.nextSeq
	// A wrapped sequence may land on a key still awaiting its response.
	if _, ok := c.outstanding[key]; ok {
		c.nextSeq--
		return 0, ncerrors.ErrKeysExhausted
	}

	datagram := make([]byte, keyHeaderLen+c.reqCodec.Size())
	binary.LittleEndian.PutUint64(datagram[:keyHeaderLen], key)
	if err := c.reqCodec.Encode(datagram[keyHeaderLen:], req); err != nil {
		c.nextSeq--
		return 0, ncerrors.WrapInvalid(err, "udp-client", "SendRequest", "request encoding")
	}

	if _, err := c.conn.Write(datagram); err != nil {
		c.nextSeq--
		return 0, ncerrors.WrapTransient(err, "udp-client", "SendRequest", "datagram send")
	}
	c.outstanding[key] = struct{}{}
	return key, nil
}

// PollResponse drains ready datagrams and checks for the keyed response
func (c *UDPClient[Req, Res]) PollResponse(key uint64) (Res, bool, error) {
	var zero Res
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	c.pump()

	res, ok := c.pending[key]
	if !ok {
		return zero, false, nil
	}
	delete(c.pending, key)
	delete(c.outstanding, key)
	return res, true, nil
}

// pump reads every datagram already buffered by the kernel
func (c *UDPClient[Req, Res]) pump() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, err := c.conn.Read(c.readBuf)
		if err != nil {
			return
		}
		if n < keyHeaderLen {
			c.logger.Warn("truncated datagram discarded", "bytes", n)
			continue
		}

		resKey := binary.LittleEndian.Uint64(c.readBuf[:keyHeaderLen])
		res, err := c.resCodec.Decode(c.readBuf[keyHeaderLen:n])
		if err != nil {
			c.logger.Warn("malformed datagram discarded", "key", resKey, "error", err)
			continue
		}
		if _, ok := c.outstanding[resKey]; !ok {
			c.logger.Warn("datagram for unknown key discarded", "key", resKey)
			continue
		}
		c.pending[resKey] = res
	}
}

// Close releases the socket
func (c *UDPClient[Req, Res]) Close() error {
	return c.conn.Close()
}

// UDPServerDeps holds runtime dependencies for a UDP server
type UDPServerDeps[Req, Res any] struct {
	BindAddr string
	ReqCodec packing.Codec[Req]
	ResCodec packing.Codec[Res]
	Logger   *slog.Logger
}

// UDPServer answers packed requests from any number of clients. The
// accepted key carries the request's source address so responses find
// their way back. A UDPServer is intended for use by a single goroutine.
type UDPServer[Req, Res any] struct {
	conn     *net.UDPConn
	reqCodec packing.Codec[Req]
	resCodec packing.Codec[Res]
	logger   *slog.Logger

	accepted map[UDPKey]struct{}
	readBuf  []byte
}

// NewUDPServer creates a server bound to the given address
func NewUDPServer[Req, Res any](deps UDPServerDeps[Req, Res]) (*UDPServer[Req, Res], error) {
	if deps.ReqCodec == nil || deps.ResCodec == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil codec"),
			"udp-server", "NewUDPServer", "codec validation")
	}

	addr, err := net.ResolveUDPAddr("udp", deps.BindAddr)
	if err != nil {
		return nil, ncerrors.WrapInvalid(err, "udp-server", "NewUDPServer", "address resolution")
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, ncerrors.WrapTransient(err, "udp-server", "NewUDPServer", "socket binding")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-server", "bind", deps.BindAddr)
	}

	return &UDPServer[Req, Res]{
		conn:     conn,
		reqCodec: deps.ReqCodec,
		resCodec: deps.ResCodec,
		logger:   logger,
		accepted: make(map[UDPKey]struct{}),
		readBuf:  make([]byte, keyHeaderLen+deps.ReqCodec.Size()),
	}, nil
}

// LocalAddr returns the server's bound address
func (s *UDPServer[Req, Res]) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// PollRequest checks for a pending request without blocking
func (s *UDPServer[Req, Res]) PollRequest() (UDPKey, Req, bool, error) {
	var zero Req
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, src, err := s.conn.ReadFromUDPAddrPort(s.readBuf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return UDPKey{}, zero, false, nil
			}
			return UDPKey{}, zero, false, ncerrors.WrapTransient(err,
				"udp-server", "PollRequest", "datagram read")
		}
		if n < keyHeaderLen {
			s.logger.Warn("truncated datagram discarded", "source", src.String(), "bytes", n)
			continue
		}

		seq := binary.LittleEndian.Uint64(s.readBuf[:keyHeaderLen])
		req, err := s.reqCodec.Decode(s.readBuf[keyHeaderLen:n])
		if err != nil {
			s.logger.Warn("malformed datagram discarded", "source", src.String(), "error", err)
			continue
		}

		key := UDPKey{Addr: src, Seq: seq}
		s.accepted[key] = struct{}{}
		return key, req, true, nil
	}
}

// SendResponse packs the response and sends it to the request's source
func (s *UDPServer[Req, Res]) SendResponse(key UDPKey, res Res) error {
	if _, ok := s.accepted[key]; !ok {
		return ncerrors.ErrUnknownKey
	}

	datagram := make([]byte, keyHeaderLen+s.resCodec.Size())
	binary.LittleEndian.PutUint64(datagram[:keyHeaderLen], key.Seq)
	if err := s.resCodec.Encode(datagram[keyHeaderLen:], res); err != nil {
		return ncerrors.WrapInvalid(err, "udp-server", "SendResponse", "response encoding")
	}

	if _, err := s.conn.WriteToUDPAddrPort(datagram, key.Addr); err != nil {
		return ncerrors.WrapTransient(err, "udp-server", "SendResponse", "datagram send")
	}
	delete(s.accepted, key)
	return nil
}

// Close releases the socket
func (s *UDPServer[Req, Res]) Close() error {
	return s.conn.Close()
}
