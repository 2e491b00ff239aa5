package pubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberEmptyBeforeFirstPublish(t *testing.T) {
	pub := NewPublisher[int]()
	sub := pub.Subscribe()

	_, ok := sub.Get()
	assert.False(t, ok)
	assert.False(t, sub.Fresh())
}

func TestPublishReplacesLatest(t *testing.T) {
	pub := NewPublisher[string]()
	sub := pub.Subscribe()

	pub.Publish("first")
	pub.Publish("second")
	pub.Publish("third")

	sample, ok := sub.Get()
	require.True(t, ok)
	assert.Equal(t, "third", sample.Value)
	assert.Equal(t, uint64(3), sample.Seq)
}

func TestFreshTracksObservedSequence(t *testing.T) {
	pub := NewPublisher[int]()
	sub := pub.Subscribe()

	pub.Publish(1)
	assert.True(t, sub.Fresh())

	_, ok := sub.Get()
	require.True(t, ok)
	assert.False(t, sub.Fresh())

	pub.Publish(2)
	assert.True(t, sub.Fresh())
}

func TestMultipleSubscribersShareSlot(t *testing.T) {
	pub := NewPublisher[int]()
	a := pub.Subscribe()
	pub.Publish(7)
	b := pub.Subscribe()

	sa, ok := a.Get()
	require.True(t, ok)
	sb, ok := b.Get()
	require.True(t, ok)
	assert.Equal(t, sa, sb)
}

func TestSequenceNonDecreasingUnderConcurrentPublish(t *testing.T) {
	pub := NewPublisher[int]()
	sub := pub.Subscribe()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			pub.Publish(i)
		}
		close(stop)
	}()

	var last uint64
	for {
		if sample, ok := sub.Get(); ok {
			require.GreaterOrEqual(t, sample.Seq, last)
			last = sample.Seq
		}
		select {
		case <-stop:
			wg.Wait()
			sample, ok := sub.Get()
			require.True(t, ok)
			assert.Equal(t, uint64(1000), sample.Seq)
			assert.Equal(t, 999, sample.Value)
			return
		default:
		}
	}
}
