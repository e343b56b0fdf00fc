package netreactor

import (
	"sync"
	"sync/atomic"
)

// TcpServer composes an Acceptor, one or more EventLoops, and
// user-supplied connection/message callbacks. It owns one listening
// socket per configured port.
//
// A single loop accepts; connections either stay on that loop or are
// handed off round-robin to a pool of I/O loops. Start is idempotent
// and thread-safe.
type TcpServer struct {
	ports []int

	acceptLoop *EventLoop
	ioLoops    []*EventLoop
	nextLoop   atomic.Uint64

	acceptors []*Acceptor
	pool      *ConnectionPool

	bufferPool *BufferPool
	logger     Logger

	connCallback NewConnCallback
	msgCallback  MessageCallback

	workQueue chan *Envelope

	startOnce sync.Once
	started   atomic.Bool
}

// TcpServerOption configures a TcpServer at construction time.
type TcpServerOption interface {
	apply(*TcpServer)
}

type serverOptionFunc func(*TcpServer)

func (f serverOptionFunc) apply(s *TcpServer) { f(s) }

// WithIOLoops adds additional I/O loops for round-robin connection
// hand-off. Without this option the server runs in single-loop mode:
// all accepted connections stay on the accepting loop.
func WithIOLoops(loops ...*EventLoop) TcpServerOption {
	return serverOptionFunc(func(s *TcpServer) {
		s.ioLoops = append(s.ioLoops, loops...)
	})
}

// WithLogger installs a Logger; the default is NopLogger.
func WithLogger(l Logger) TcpServerOption {
	return serverOptionFunc(func(s *TcpServer) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithBufferPool installs a BufferPool for frame body allocation; the
// default spans 64 bytes up to MaxPktLen.
func WithBufferPool(p *BufferPool) TcpServerOption {
	return serverOptionFunc(func(s *TcpServer) {
		if p != nil {
			s.bufferPool = p
		}
	})
}

// WithWorkerQueueCapacity sets the buffer size of the external worker
// queue channel. The default is 0 (unbuffered).
func WithWorkerQueueCapacity(n int) TcpServerOption {
	return serverOptionFunc(func(s *TcpServer) {
		s.workQueue = make(chan *Envelope, n)
	})
}

// NewTcpServer creates a TcpServer listening on ports, driven by
// acceptLoop, with poolSize Connection slots.
func NewTcpServer(acceptLoop *EventLoop, ports []int, poolSize int, connCb NewConnCallback, msgCb MessageCallback, opts ...TcpServerOption) *TcpServer {
	s := &TcpServer{
		ports:        append([]int(nil), ports...),
		acceptLoop:   acceptLoop,
		pool:         NewConnectionPool(poolSize),
		bufferPool:   NewBufferPool(64, MaxPktLen),
		logger:       NopLogger{},
		connCallback: connCb,
		msgCallback:  msgCb,
		workQueue:    make(chan *Envelope),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// WorkQueue exposes the external worker queue channel so a WorkerPool
// (see the rwork package) can drain it.
func (s *TcpServer) WorkQueue() <-chan *Envelope {
	return s.workQueue
}

// BufferPool returns the server's BufferPool, so a WorkerPool can
// return frame bodies once it's done with them.
func (s *TcpServer) BufferPool() *BufferPool {
	return s.bufferPool
}

// Start binds and listens on all configured ports and begins accepting
// connections. Idempotent and safe to call from any goroutine; the
// actual listen/accept setup is marshalled onto the accept loop, and
// Start blocks until that setup has completed so a bind/listen failure
// surfaces here rather than being lost in a queued task.
func (s *TcpServer) Start() error {
	var startErr error
	s.startOnce.Do(func() {
		done := make(chan struct{})
		s.acceptLoop.RunInLoop(func() {
			defer close(done)
			for _, port := range s.ports {
				fd, err := listenTCP(port, 1024)
				if err != nil {
					startErr = err
					return
				}
				acc, err := NewAcceptor(s.acceptLoop, fd, s.logger)
				if err != nil {
					_ = closeFD(fd)
					startErr = err
					return
				}
				acc.onAccept = s.handleNewConnection
				acc.Listen()
				s.acceptors = append(s.acceptors, acc)
			}
			s.started.Store(true)
		})
		<-done
	})
	return startErr
}

// Started reports whether Start has completed listener setup.
func (s *TcpServer) Started() bool {
	return s.started.Load()
}

// ActualPorts resolves each listener's bound port, which differs from
// the configured port when a configured port is 0 (ephemeral). It must
// be called after Started reports true.
func (s *TcpServer) ActualPorts() ([]int, error) {
	var result []int
	var firstErr error
	done := make(chan struct{})
	s.acceptLoop.RunInLoop(func() {
		for _, acc := range s.acceptors {
			port, err := acc.Addr()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			result = append(result, port)
		}
		close(done)
	})
	<-done
	return result, firstErr
}

// handleNewConnection runs on the accept loop: it pulls a Connection
// off the pool, picks a target I/O loop (round robin in multi-loop
// mode, else the accept loop itself), and wires up the Channel.
func (s *TcpServer) handleNewConnection(fd int, peer ConnAddr) {
	targetLoop := s.pickLoop()

	conn, err := s.pool.Get(fd, targetLoop)
	if err != nil {
		s.logger.Err("connection pool exhausted, dropping accepted fd", "fd", fd)
		_ = closeFD(fd)
		return
	}
	conn.peer = peer
	conn.server = s

	wire := func() {
		ch := targetLoop.NewChannel(fd)
		ch.Tie(conn)
		ch.SetReadCallback(conn.onReadable)
		ch.SetWriteCallback(conn.onWritable)
		ch.SetCloseCallback(conn.closeConnection)
		ch.SetErrorCallback(conn.closeConnection)
		conn.channel = ch

		if s.connCallback != nil {
			s.connCallback(conn, true)
		}
		ch.EnableRead()
	}

	if targetLoop == s.acceptLoop {
		wire()
	} else {
		targetLoop.QueueInLoop(wire)
	}
}

func (s *TcpServer) pickLoop() *EventLoop {
	if len(s.ioLoops) == 0 {
		return s.acceptLoop
	}
	idx := s.nextLoop.Add(1) - 1
	return s.ioLoops[idx%uint64(len(s.ioLoops))]
}

// deliver pushes env onto the external worker queue; it is called from
// Connection.deliverFrame, always on the owning Connection's loop
// thread. Nothing but poll may block a loop thread, so the send is
// non-blocking: a full queue means the worker pool is saturated, and
// the frame is dropped (returning its body to the pool) rather than
// stalling the loop.
func (s *TcpServer) deliver(env *Envelope) {
	if s.msgCallback != nil {
		s.msgCallback(env.Conn, env.Header, env.Body)
	}
	select {
	case s.workQueue <- env:
	default:
		s.logger.Err("worker queue full, dropping frame", "fd", env.Conn.sockfd, "seq", env.Seq)
		if s.bufferPool != nil && env.Body != nil {
			s.bufferPool.Free(env.Body)
		}
	}
}

// Stop removes every Acceptor's listening Channel. It does not tear
// down already-established Connections.
func (s *TcpServer) Stop() {
	s.acceptLoop.RunInLoop(func() {
		for _, acc := range s.acceptors {
			acc.Close()
			_ = closeFD(acc.listenFd)
		}
		s.acceptors = nil
	})
}
