package rwork

import (
	"sync/atomic"
	"testing"

	"github.com/netreactor/netreactor"
	"github.com/stretchr/testify/require"
)

func TestPoolDispatchesLiveEnvelopes(t *testing.T) {
	connPool := netreactor.NewConnectionPool(1)
	conn, err := connPool.Get(5, nil)
	require.NoError(t, err)

	queue := make(chan *netreactor.Envelope, 4)
	var handled atomic.Int64
	pool := New(queue, func(env *netreactor.Envelope) {
		handled.Add(1)
	}, nil)
	pool.Start(2)

	for i := 0; i < 3; i++ {
		queue <- &netreactor.Envelope{Conn: conn, Seq: conn.Sequence()}
	}
	close(queue)
	pool.Wait()

	require.Equal(t, int64(3), handled.Load())
}

func TestPoolDropsStaleEnvelopes(t *testing.T) {
	connPool := netreactor.NewConnectionPool(1)
	conn, err := connPool.Get(5, nil)
	require.NoError(t, err)

	// The envelope captures the sequence of the tenant that produced
	// it; releasing the slot bumps the counter, so the frame must be
	// dropped even though the slot's memory is about to be reused.
	env := &netreactor.Envelope{Conn: conn, Seq: conn.Sequence()}
	connPool.Release(conn)

	queue := make(chan *netreactor.Envelope, 1)
	var handled atomic.Int64
	pool := New(queue, func(*netreactor.Envelope) {
		handled.Add(1)
	}, nil)
	pool.Start(1)

	queue <- env
	close(queue)
	pool.Wait()

	require.Equal(t, int64(0), handled.Load())
}

func TestPoolReturnsBodiesToBufferPool(t *testing.T) {
	connPool := netreactor.NewConnectionPool(1)
	conn, err := connPool.Get(5, nil)
	require.NoError(t, err)

	bufs := netreactor.NewBufferPool(64, 1024)
	body := bufs.Alloc(128)

	queue := make(chan *netreactor.Envelope, 1)
	pool := New(queue, func(*netreactor.Envelope) {}, bufs)
	pool.Start(1)

	queue <- &netreactor.Envelope{Conn: conn, Seq: conn.Sequence(), Body: body}
	close(queue)
	pool.Wait()
	// No assertion beyond not panicking: Free on a pool-owned buffer
	// must be safe from a worker goroutine.
}
