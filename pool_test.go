package netreactor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionPoolGetReleaseCycles(t *testing.T) {
	pool := NewConnectionPool(2)

	c1, err := pool.Get(11, nil)
	require.NoError(t, err)
	require.Equal(t, 11, c1.Fd())

	c2, err := pool.Get(12, nil)
	require.NoError(t, err)
	require.Equal(t, 12, c2.Fd())

	_, err = pool.Get(13, nil)
	require.ErrorIs(t, err, ErrPoolExhausted)

	pool.Release(c1)
	require.Equal(t, -1, c1.Fd())

	c3, err := pool.Get(14, nil)
	require.NoError(t, err)
	require.Equal(t, 14, c3.Fd())
}

func TestConnectionGenerationStaleness(t *testing.T) {
	pool := NewConnectionPool(1)

	c, err := pool.Get(21, nil)
	require.NoError(t, err)

	// Capture the generation a registration would have embedded.
	capturedGen := c.currentGeneration()
	require.True(t, c.alive(capturedGen))

	pool.Release(c)
	// sockfd is now -1: a dispatch-time check must treat this as stale
	// even though the generation bit hasn't changed yet.
	require.False(t, c.alive(capturedGen))

	c2, err := pool.Get(22, nil)
	require.NoError(t, err)
	require.Same(t, c, c2) // same slot reused

	// A new tenant occupies the slot; the old capturedGen must now read
	// as stale via the generation bit too.
	require.NotEqual(t, capturedGen, c2.currentGeneration())
	require.False(t, c2.alive(capturedGen))
	require.True(t, c2.alive(c2.currentGeneration()))
}

func TestChannelStaleDetectsRecycledSlot(t *testing.T) {
	loop, err := NewEventLoop()
	require.NoError(t, err)
	defer func() { _ = loop.Close() }()

	pool := NewConnectionPool(1)
	conn, err := pool.Get(31, loop)
	require.NoError(t, err)

	ch := loop.NewChannel(31)
	ch.Tie(conn)
	ch.revGeneration = conn.currentGeneration()
	require.False(t, ch.stale())

	pool.Release(conn)
	require.True(t, ch.stale())
}
