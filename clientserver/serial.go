package clientserver

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/packing"
	"github.com/c360/nodecomm/pkg/buffer"
)

// Port is a byte-oriented link that can report whether a read would
// block. Serial device wrappers and loopback test fixtures implement it.
type Port interface {
	io.ReadWriter

	// ReadReady reports whether at least one byte is available
	ReadReady() (bool, error)
}

const keyHeaderLen = 8

// checkFrameCapacity validates that both message directions fit the
// declared frame size.
func checkFrameCapacity(capacity, reqSize, resSize int, component string) error {
	need := keyHeaderLen + reqSize
	if keyHeaderLen+resSize > need {
		need = keyHeaderLen + resSize
	}
	if capacity < need {
		return ncerrors.WrapInvalid(
			fmt.Errorf("frame capacity %d below required %d", capacity, need),
			component, "new", "frame capacity validation")
	}
	return nil
}

func writeFrame(port Port, capacity int, key uint64, payload func([]byte) error) error {
	frame := make([]byte, capacity)
	binary.LittleEndian.PutUint64(frame[:keyHeaderLen], key)
	if err := payload(frame[keyHeaderLen:]); err != nil {
		return err
	}
	if _, err := port.Write(frame); err != nil {
		return ncerrors.WrapTransient(err, "serial", "writeFrame", "port write")
	}
	return nil
}

func readFrame(port Port, capacity int) (uint64, []byte, error) {
	frame := make([]byte, capacity)
	if _, err := io.ReadFull(port, frame); err != nil {
		return 0, nil, ncerrors.WrapTransient(err, "serial", "readFrame", "port read")
	}
	key := binary.LittleEndian.Uint64(frame[:keyHeaderLen])
	return key, frame[keyHeaderLen:], nil
}

// SerialClientDeps holds runtime dependencies for a serial client
type SerialClientDeps[Req, Res any] struct {
	Port          Port
	ReqCodec      packing.Codec[Req]
	ResCodec      packing.Codec[Res]
	FrameCapacity int
	Logger        *slog.Logger
}

// SerialClient exchanges fixed-size frames over a byte stream. Every
// frame is FrameCapacity bytes: an 8-byte key followed by the packed
// payload and zero padding.
type SerialClient[Req, Res any] struct {
	port     Port
	reqCodec packing.Codec[Req]
	resCodec packing.Codec[Res]
	capacity int
	logger   *slog.Logger

	nextSeq     uint64
	outstanding map[uint64]struct{}
	pending     map[uint64]Res
}

// NewSerialClient creates a serial client over the given port
func NewSerialClient[Req, Res any](deps SerialClientDeps[Req, Res]) (*SerialClient[Req, Res], error) {
	if deps.Port == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil port"),
			"serial-client", "NewSerialClient", "port validation")
	}
	if err := checkFrameCapacity(deps.FrameCapacity,
		deps.ReqCodec.Size(), deps.ResCodec.Size(), "serial-client"); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "serial-client")
	}

	return &SerialClient[Req, Res]{
		port:        deps.Port,
		reqCodec:    deps.ReqCodec,
		resCodec:    deps.ResCodec,
		capacity:    deps.FrameCapacity,
		logger:      logger,
		outstanding: make(map[uint64]struct{}),
		pending:     make(map[uint64]Res),
	}, nil
}

// SendRequest packs the request into a frame and writes it to the port
func (c *SerialClient[Req, Res]) SendRequest(req Req) (uint64, error) {
	c.nextSeq++
	key := c.nextSeq

	err := writeFrame(c.port, c.capacity, key, func(buf []byte) error {
		return c.reqCodec.Encode(buf, req)
	})
	if err != nil {
		c.nextSeq--
		return 0, err
	}
	c.outstanding[key] = struct{}{}
	return key, nil
}

// PollResponse reads any ready frames and checks for the keyed response
func (c *SerialClient[Req, Res]) PollResponse(key uint64) (Res, bool, error) {
	var zero Res
	if _, ok := c.outstanding[key]; !ok {
		return zero, false, ncerrors.ErrUnknownKey
	}

	if err := c.pump(); err != nil {
		return zero, false, err
	}

	res, ok := c.pending[key]
	if !ok {
		return zero, false, nil
	}
	delete(c.pending, key)
	delete(c.outstanding, key)
	return res, true, nil
}

func (c *SerialClient[Req, Res]) pump() error {
	for {
		ready, err := c.port.ReadReady()
		if err != nil {
			return ncerrors.WrapTransient(err, "serial-client", "pump", "readiness check")
		}
		if !ready {
			return nil
		}

		key, payload, err := readFrame(c.port, c.capacity)
		if err != nil {
			return err
		}
		res, err := c.resCodec.Decode(payload)
		if err != nil {
			c.logger.Warn("malformed frame discarded", "key", key, "error", err)
			continue
		}
		if _, ok := c.outstanding[key]; !ok {
			c.logger.Warn("frame for unknown key discarded", "key", key)
			continue
		}
		c.pending[key] = res
	}
}

// SerialServerDeps holds runtime dependencies for a serial server
type SerialServerDeps[Req, Res any] struct {
	Port          Port
	ReqCodec      packing.Codec[Req]
	ResCodec      packing.Codec[Res]
	FrameCapacity int
	// QueueSize bounds the staged-request buffer
	QueueSize int
	Logger    *slog.Logger
}

type serialRequest[Req any] struct {
	key uint64
	req Req
}

// SerialServer answers framed requests arriving on a byte stream.
// Ready frames are drained into a bounded ring so a burst on the wire
// does not require a matching burst of PollRequest calls.
type SerialServer[Req, Res any] struct {
	port     Port
	reqCodec packing.Codec[Req]
	resCodec packing.Codec[Res]
	capacity int
	logger   *slog.Logger

	staged   buffer.Buffer[serialRequest[Req]]
	accepted map[uint64]struct{}
}

// NewSerialServer creates a serial server over the given port
func NewSerialServer[Req, Res any](deps SerialServerDeps[Req, Res]) (*SerialServer[Req, Res], error) {
	if deps.Port == nil {
		return nil, ncerrors.WrapInvalid(fmt.Errorf("nil port"),
			"serial-server", "NewSerialServer", "port validation")
	}
	if err := checkFrameCapacity(deps.FrameCapacity,
		deps.ReqCodec.Size(), deps.ResCodec.Size(), "serial-server"); err != nil {
		return nil, err
	}

	queueSize := deps.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "serial-server")
	}

	staged, err := buffer.NewRing[serialRequest[Req]](queueSize,
		buffer.WithOverflowPolicy[serialRequest[Req]](buffer.DropOldest))
	if err != nil {
		return nil, ncerrors.Wrap(err, "serial-server", "NewSerialServer", "staging buffer creation")
	}

	return &SerialServer[Req, Res]{
		port:     deps.Port,
		reqCodec: deps.ReqCodec,
		resCodec: deps.ResCodec,
		capacity: deps.FrameCapacity,
		logger:   logger,
		staged:   staged,
		accepted: make(map[uint64]struct{}),
	}, nil
}

// PollRequest drains ready frames and returns the oldest staged request
func (s *SerialServer[Req, Res]) PollRequest() (uint64, Req, bool, error) {
	var zero Req
	if err := s.pump(); err != nil {
		return 0, zero, false, err
	}

	staged, ok := s.staged.Read()
	if !ok {
		return 0, zero, false, nil
	}
	s.accepted[staged.key] = struct{}{}
	return staged.key, staged.req, true, nil
}

func (s *SerialServer[Req, Res]) pump() error {
	for {
		ready, err := s.port.ReadReady()
		if err != nil {
			return ncerrors.WrapTransient(err, "serial-server", "pump", "readiness check")
		}
		if !ready {
			return nil
		}

		key, payload, err := readFrame(s.port, s.capacity)
		if err != nil {
			return err
		}
		req, err := s.reqCodec.Decode(payload)
		if err != nil {
			s.logger.Warn("malformed frame discarded", "key", key, "error", err)
			continue
		}
		if err := s.staged.Write(serialRequest[Req]{key: key, req: req}); err != nil {
			s.logger.Warn("staged request dropped", "key", key, "error", err)
		}
	}
}

// SendResponse packs the response into a frame and writes it to the port
func (s *SerialServer[Req, Res]) SendResponse(key uint64, res Res) error {
	if _, ok := s.accepted[key]; !ok {
		return ncerrors.ErrUnknownKey
	}
	err := writeFrame(s.port, s.capacity, key, func(buf []byte) error {
		return s.resCodec.Encode(buf, res)
	})
	if err != nil {
		return err
	}
	delete(s.accepted, key)
	return nil
}
