package netreactor

import "errors"

// Standard errors returned by this package. Transient I/O conditions
// (EAGAIN/EWOULDBLOCK/EINTR) never surface as errors; see recv.go and
// acceptor.go for their handling.
var (
	// ErrLoopAlreadyRunning is returned when Loop is called on a loop
	// that is already running.
	ErrLoopAlreadyRunning = errors.New("netreactor: loop is already running")

	// ErrLoopTerminated is returned when Loop is called on a loop that
	// has already shut down.
	ErrLoopTerminated = errors.New("netreactor: loop has terminated")

	// ErrReentrantLoop is returned when Loop is called from within the
	// loop's own goroutine.
	ErrReentrantLoop = errors.New("netreactor: cannot call Loop from within the loop")

	// ErrNotLoopThread is the panic value raised by loop-thread-only
	// operations invoked from a foreign goroutine while the loop is
	// running (see assertInLoopThread); it is never returned.
	ErrNotLoopThread = errors.New("netreactor: called from outside the owning loop thread")

	// ErrPoolExhausted is returned by ConnectionPool.Get when no free
	// slots remain.
	ErrPoolExhausted = errors.New("netreactor: connection pool exhausted")

	// ErrChannelClosed names the removed-Channel condition. No function
	// in this package returns it: Channel methods have no error result,
	// and enabling interest on a removed Channel registers it again.
	ErrChannelClosed = errors.New("netreactor: channel removed")

	// ErrInvalidFrame identifies a frame header that failed validation;
	// it never escapes to callers, the receiver discards the header and
	// resynchronizes (see recv.go).
	ErrInvalidFrame = errors.New("netreactor: invalid frame header")

	// ErrUnsupportedAddrFamily is returned by Acceptor.Addr for a socket
	// family other than IPv4/IPv6.
	ErrUnsupportedAddrFamily = errors.New("netreactor: unsupported address family")
)
