package clientserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerrors "github.com/c360/nodecomm/errors"
)

type sumRequest struct {
	A, B int64
}

func TestLocalRequestResponse(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(sumRequest{A: 2, B: 3})
	require.NoError(t, err)

	sk, req, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sumRequest{A: 2, B: 3}, req)
	assert.Equal(t, client.ID(), sk.ClientID)
	assert.Equal(t, key, sk.Seq)

	require.NoError(t, server.SendResponse(sk, req.A+req.B))

	res, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), res)
}

func TestLocalPollBeforeResponse(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(sumRequest{A: 1, B: 1})
	require.NoError(t, err)

	_, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalUnknownKey(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	_, _, err := client.PollResponse(99)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}

func TestLocalKeySpaceExhaustion(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(sumRequest{A: 1, B: 1})
	require.NoError(t, err)

	// Force the sequence to wrap back onto the outstanding key.
	client.nextSeq = key - 1
	_, err = client.SendRequest(sumRequest{A: 2, B: 2})
	assert.ErrorIs(t, err, ncerrors.ErrKeysExhausted)
	assert.True(t, ncerrors.IsFatal(err))

	// The original request is still serviceable.
	sk, req, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, server.SendResponse(sk, req.A+req.B))
	res, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), res)
}

func TestLocalKeyReleasedOnConsumption(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(sumRequest{A: 4, B: 4})
	require.NoError(t, err)

	sk, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, server.SendResponse(sk, 8))

	_, ok, err = client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = client.PollResponse(key)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}

func TestLocalServerRejectsUnacceptedKey(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	err := server.SendResponse(LocalKey{ClientID: client.ID(), Seq: 1}, 0)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}

func TestLocalServerPollEmpty(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})

	_, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalMultipleClients(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	a := server.CreateClient()
	b := server.CreateClient()

	keyA, err := a.SendRequest(sumRequest{A: 1, B: 2})
	require.NoError(t, err)
	keyB, err := b.SendRequest(sumRequest{A: 10, B: 20})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		sk, req, ok, err := server.PollRequest()
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, server.SendResponse(sk, req.A+req.B))
	}

	resA, ok, err := a.PollResponse(keyA)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), resA)

	resB, ok, err := b.PollResponse(keyB)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(30), resB)
}

func TestLocalOutOfOrderResponses(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{})
	client := server.CreateClient()

	key1, err := client.SendRequest(sumRequest{A: 1, B: 0})
	require.NoError(t, err)
	key2, err := client.SendRequest(sumRequest{A: 2, B: 0})
	require.NoError(t, err)

	sk1, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	sk2, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)

	// Respond to the second request first.
	require.NoError(t, server.SendResponse(sk2, 2))
	require.NoError(t, server.SendResponse(sk1, 1))

	res2, ok, err := client.PollResponse(key2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), res2)

	res1, ok, err := client.PollResponse(key1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), res1)
}

func TestLocalQueueFull(t *testing.T) {
	server := NewLocalServer[sumRequest, int64](LocalServerDeps{QueueSize: 1})
	client := server.CreateClient()

	_, err := client.SendRequest(sumRequest{})
	require.NoError(t, err)
	_, err = client.SendRequest(sumRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ncerrors.ErrSendFailed)
}
