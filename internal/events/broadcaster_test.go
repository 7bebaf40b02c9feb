package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster[int](4)
	first := b.Subscribe()
	second := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	assert.Zero(t, b.Publish(7))
	assert.Equal(t, 7, <-first)
	assert.Equal(t, 7, <-second)
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster[string](1)
	slow := b.Subscribe()

	assert.Zero(t, b.Publish("a"))
	assert.Equal(t, 1, b.Publish("b"))
	assert.Equal(t, "a", <-slow)
	assert.Empty(t, slow)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster[int](0)
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())

	// second call is a no-op
	b.Unsubscribe(sub)
	assert.Zero(t, b.Publish(1))
}

func TestBroadcaster_ConcurrentUse(t *testing.T) {
	b := NewBroadcaster[int](8)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := b.Subscribe()
			b.Publish(i)
			b.Unsubscribe(sub)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, b.Subscribers())
}
