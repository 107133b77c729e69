package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	b := NewBroadcaster[int]()
	ch, cancel, err := b.Subscribe(2, nil)
	require.NoError(t, err)
	defer cancel()

	for i := 1; i <= 4; i++ {
		b.Publish(i)
	}
	assert.Equal(t, 3, <-ch)
	assert.Equal(t, 4, <-ch)
}

func TestBroadcasterCancelIdempotent(t *testing.T) {
	b := NewBroadcaster[string]()
	ch, cancel, err := b.Subscribe(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
	cancel()
	cancel()
	assert.Equal(t, 0, b.Len())
	_, ok := <-ch
	assert.False(t, ok)

	b.Stop()
	b.Publish("ignored")
	cancel()
}

func TestBroadcasterAcceptFilter(t *testing.T) {
	b := NewBroadcaster[int]()
	even, cancel, err := b.Subscribe(4, func(v int) bool { return v%2 == 0 })
	require.NoError(t, err)
	defer cancel()
	for i := 0; i < 4; i++ {
		b.Publish(i)
	}
	assert.Equal(t, 0, <-even)
	assert.Equal(t, 2, <-even)
	assert.Len(t, even, 0)
}
