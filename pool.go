package netreactor

import "sync"

// ConnectionPool is a fixed-size, generation-tagged free list of
// Connection records. It is loop-thread-local: every Get/Release call
// must come from the single loop whose Acceptor owns this pool, unless
// a TcpServer is running in multi-loop mode, in which case the slot is
// created on the accepting loop and handed off to a worker loop by
// posted task before any further mutation (see server.go).
//
// The pool is a flat preallocated array plus a free-index stack, with a
// one-bit generation (Connection.generation) distinguishing a slot's
// successive tenants under kernel-event delay. Go's garbage collector
// means no pointer ever dangles, but a stale readiness event can still
// be misattributed to the wrong tenant without the generation check.
type ConnectionPool struct {
	mu    sync.Mutex
	slots []Connection
	free  []int32
}

// NewConnectionPool preallocates n Connection slots.
func NewConnectionPool(n int) *ConnectionPool {
	p := &ConnectionPool{
		slots: make([]Connection, n),
		free:  make([]int32, n),
	}
	for i := range p.slots {
		p.slots[i].slot = int32(i)
		p.slots[i].pool = p
		p.slots[i].sockfd = -1
		p.free[i] = int32(n - 1 - i)
	}
	return p
}

// Get pops a free slot, binds it to fd and loop, and flips its
// generation bit. It returns ErrPoolExhausted if no slots remain.
func (p *ConnectionPool) Get(fd int, loop *EventLoop) (*Connection, error) {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()

	c := &p.slots[idx]
	c.sockfd = fd
	c.loop = loop
	c.generation++
	c.sequence.Add(1)
	c.writeReady = true
	c.writeBuf = nil
	c.resetReceiveState()
	return c, nil
}

// Release marks c's slot free for reuse. The caller is responsible for
// closing c.sockfd and removing c.channel from the Poller first; this
// only updates pool bookkeeping. Once Release returns, a pending
// readiness event carrying c's pre-release generation will fail
// Connection.alive and be dropped, and any envelope still queued for a
// worker carries a sequence that no longer matches.
func (p *ConnectionPool) Release(c *Connection) {
	c.sockfd = -1
	c.sequence.Add(1)
	c.channel = nil
	c.loop = nil
	c.server = nil

	p.mu.Lock()
	p.free = append(p.free, c.slot)
	p.mu.Unlock()
}

// Cap returns the pool's total slot count.
func (p *ConnectionPool) Cap() int {
	return len(p.slots)
}
