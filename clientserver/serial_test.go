package clientserver

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerrors "github.com/c360/nodecomm/errors"
	"github.com/c360/nodecomm/packing"
)

// pipePort is an in-memory byte stream for wiring a client and server
// back to back in tests.
type pipePort struct {
	mu  *sync.Mutex
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newPipePorts() (*pipePort, *pipePort) {
	mu := &sync.Mutex{}
	ab := &bytes.Buffer{}
	ba := &bytes.Buffer{}
	return &pipePort{mu: mu, in: ba, out: ab}, &pipePort{mu: mu, in: ab, out: ba}
}

func (p *pipePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.in.Read(b)
}

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *pipePort) ReadReady() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.in.Len() > 0, nil
}

// sumRequestCodec packs two little-endian int64 operands
type sumRequestCodec struct{}

func (sumRequestCodec) Size() int { return 16 }

func (sumRequestCodec) Encode(buf []byte, v sumRequest) error {
	if len(buf) < 16 {
		return ncerrors.ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint64(buf[0:8], uint64(v.A))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(v.B))
	return nil
}

func (sumRequestCodec) Decode(data []byte) (sumRequest, error) {
	if len(data) < 16 {
		return sumRequest{}, ncerrors.ErrShortPayload
	}
	return sumRequest{
		A: int64(binary.LittleEndian.Uint64(data[0:8])),
		B: int64(binary.LittleEndian.Uint64(data[8:16])),
	}, nil
}

func newSerialPair(t *testing.T, capacity int) (*SerialClient[sumRequest, int64], *SerialServer[sumRequest, int64]) {
	t.Helper()
	clientPort, serverPort := newPipePorts()

	client, err := NewSerialClient(SerialClientDeps[sumRequest, int64]{
		Port:          clientPort,
		ReqCodec:      sumRequestCodec{},
		ResCodec:      packing.Int64(),
		FrameCapacity: capacity,
	})
	require.NoError(t, err)

	server, err := NewSerialServer(SerialServerDeps[sumRequest, int64]{
		Port:          serverPort,
		ReqCodec:      sumRequestCodec{},
		ResCodec:      packing.Int64(),
		FrameCapacity: capacity,
	})
	require.NoError(t, err)
	return client, server
}

func TestSerialRequestResponse(t *testing.T) {
	client, server := newSerialPair(t, 32)

	key, err := client.SendRequest(sumRequest{A: 6, B: 7})
	require.NoError(t, err)

	sk, req, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key, sk)
	assert.Equal(t, sumRequest{A: 6, B: 7}, req)

	require.NoError(t, server.SendResponse(sk, req.A+req.B))

	res, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(13), res)
}

func TestSerialFrameCapacityTooSmall(t *testing.T) {
	clientPort, _ := newPipePorts()
	_, err := NewSerialClient(SerialClientDeps[sumRequest, int64]{
		Port:          clientPort,
		ReqCodec:      sumRequestCodec{},
		ResCodec:      packing.Int64(),
		FrameCapacity: 16, // 8-byte key + 16-byte request does not fit
	})
	require.Error(t, err)
	assert.True(t, ncerrors.IsInvalid(err))
}

func TestSerialPollWithoutData(t *testing.T) {
	client, server := newSerialPair(t, 32)

	_, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	assert.False(t, ok)

	key, err := client.SendRequest(sumRequest{A: 1, B: 1})
	require.NoError(t, err)

	_, ok, err = client.PollResponse(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSerialBurstStagedInOrder(t *testing.T) {
	client, server := newSerialPair(t, 32)

	var keys []uint64
	for i := int64(0); i < 5; i++ {
		key, err := client.SendRequest(sumRequest{A: i, B: 0})
		require.NoError(t, err)
		keys = append(keys, key)
	}

	// One wire burst, five polls.
	for i := int64(0); i < 5; i++ {
		sk, req, ok, err := server.PollRequest()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, keys[i], sk)
		assert.Equal(t, i, req.A)
		require.NoError(t, server.SendResponse(sk, req.A))
	}

	for i, key := range keys {
		res, ok, err := client.PollResponse(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(i), res)
	}
}

func TestSerialUnknownKeyRejected(t *testing.T) {
	client, server := newSerialPair(t, 32)

	_, _, err := client.PollResponse(1)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)

	err = server.SendResponse(7, 0)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}
