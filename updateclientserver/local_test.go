package updateclientserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerrors "github.com/c360/nodecomm/errors"
)

func TestLocalUpdateStream(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(3)
	require.NoError(t, err)

	sk, n, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(3), n)

	for i := uint32(1); i <= n; i++ {
		require.NoError(t, server.SendUpdate(sk, i))
	}
	require.NoError(t, server.SendResponse(sk, n*10))

	for i := uint32(1); i <= n; i++ {
		upd, ok, err := client.PollUpdate(key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, upd)
	}

	res, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(30), res)
}

func TestLocalResponseWithheldWhileUpdatesPending(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(1)
	require.NoError(t, err)

	sk, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, server.SendUpdate(sk, 7))
	require.NoError(t, server.SendUpdate(sk, 8))
	require.NoError(t, server.SendResponse(sk, 99))

	// Both updates must be consumed before the response surfaces.
	_, ok, err = client.PollResponse(key)
	require.NoError(t, err)
	assert.False(t, ok)

	upd, ok, err := client.PollUpdate(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(7), upd)

	_, ok, err = client.PollResponse(key)
	require.NoError(t, err)
	assert.False(t, ok)

	upd, ok, err = client.PollUpdate(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(8), upd)

	res, ok, err := client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(99), res)
}

func TestLocalUpdateAfterResponseRejected(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	_, err := client.SendRequest(1)
	require.NoError(t, err)

	sk, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, server.SendResponse(sk, 1))
	assert.ErrorIs(t, server.SendUpdate(sk, 1), ncerrors.ErrUnknownKey)
}

func TestLocalUpdateUnknownKeys(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	_, _, err := client.PollUpdate(1)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
	_, _, err = client.PollResponse(1)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}

func TestLocalUpdateKeyReleasedOnConsumption(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	key, err := client.SendRequest(1)
	require.NoError(t, err)

	sk, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, server.SendResponse(sk, 5))

	_, ok, err = client.PollResponse(key)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, err = client.PollResponse(key)
	assert.ErrorIs(t, err, ncerrors.ErrUnknownKey)
}

func TestLocalInterleavedKeys(t *testing.T) {
	server := NewLocalUpdateServer[uint32, uint32, uint32](LocalUpdateServerDeps{})
	client := server.CreateClient()

	key1, err := client.SendRequest(1)
	require.NoError(t, err)
	key2, err := client.SendRequest(2)
	require.NoError(t, err)

	sk1, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)
	sk2, _, ok, err := server.PollRequest()
	require.NoError(t, err)
	require.True(t, ok)

	// Interleave updates across the two keys.
	require.NoError(t, server.SendUpdate(sk1, 10))
	require.NoError(t, server.SendUpdate(sk2, 20))
	require.NoError(t, server.SendUpdate(sk1, 11))
	require.NoError(t, server.SendResponse(sk1, 100))
	require.NoError(t, server.SendResponse(sk2, 200))

	// Per-key FIFO holds despite interleaving.
	upd, ok, err := client.PollUpdate(key1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(10), upd)

	upd, ok, err = client.PollUpdate(key2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(20), upd)

	upd, ok, err = client.PollUpdate(key1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(11), upd)

	res, ok, err := client.PollResponse(key2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(200), res)

	res, ok, err = client.PollResponse(key1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(100), res)
}
