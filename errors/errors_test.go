package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestWrapPattern(t *testing.T) {
	base := stderrors.New("socket closed")
	err := Wrap(base, "udp-client", "SendRequest", "datagram send")
	require.Error(t, err)
	assert.Equal(t, "udp-client.SendRequest: datagram send failed: socket closed", err.Error())
	assert.True(t, stderrors.Is(err, base))

	assert.NoError(t, Wrap(nil, "c", "m", "a"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := stderrors.New("boom")

	tr := WrapTransient(base, "c", "m", "a")
	assert.True(t, IsTransient(tr))
	assert.False(t, IsFatal(tr))

	inv := WrapInvalid(base, "c", "m", "a")
	assert.True(t, IsInvalid(inv))
	assert.False(t, IsTransient(inv))

	fat := WrapFatal(base, "c", "m", "a")
	assert.True(t, IsFatal(fat))
	assert.Equal(t, ErrorFatal, Classify(fat))

	// Wrapped errors still unwrap to the base error
	assert.True(t, stderrors.Is(tr, base))
	assert.True(t, stderrors.Is(inv, base))
	assert.True(t, stderrors.Is(fat, base))
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsInvalid(ErrUnknownKey))
	assert.True(t, IsInvalid(ErrBufferTooSmall))
	assert.True(t, IsInvalid(fmt.Errorf("decode: %w", ErrShortPayload)))
	assert.True(t, IsTransient(ErrSendFailed))
	assert.True(t, IsTransient(ErrNotReady))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrExecutorDone))
	assert.True(t, IsFatal(ErrKeysExhausted))
}

func TestClassifyDefaultsToTransient(t *testing.T) {
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something else")))
}

func TestTransientPatternMatching(t *testing.T) {
	assert.True(t, IsTransient(stderrors.New("read udp: i/o timeout")))
	assert.True(t, IsTransient(stderrors.New("connection refused")))
	assert.False(t, IsTransient(nil))
}
