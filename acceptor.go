package netreactor

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"golang.org/x/sys/unix"
)

// Acceptor owns one listening socket and drains its accept queue on
// readiness, handing each accepted fd to a NewConnCallback.
//
// The accept loop carries the idle-reserve fd recovery trick for
// EMFILE/ENFILE and caches whether accept4 is available so the ENOSYS
// fallback is probed at most once.
type Acceptor struct {
	loop       *EventLoop
	listenFd   int
	channel    *Channel
	logger     Logger
	onAccept   func(fd int, peer ConnAddr)
	idleFd     int
	rateLimit  *catrate.Limiter
	accept4Bad atomic.Bool
}

// NewAcceptor creates an Acceptor for an already-bound, already-
// listening socket. listenFd is placed in non-blocking mode.
func NewAcceptor(loop *EventLoop, listenFd int, logger Logger) (*Acceptor, error) {
	if err := setNonblock(listenFd); err != nil {
		return nil, err
	}
	idleFd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
	if err != nil {
		idleFd = -1
	}
	if logger == nil {
		logger = NopLogger{}
	}
	a := &Acceptor{
		loop:     loop,
		listenFd: listenFd,
		logger:   logger,
		idleFd:   idleFd,
		// One category ("accept-exhaustion"), at most one FATAL log line
		// per second, so a sustained fd-exhaustion storm doesn't itself
		// become a logging denial-of-service.
		rateLimit: catrate.NewLimiter(map[time.Duration]int{time.Second: 1}),
	}
	a.channel = loop.NewChannel(listenFd)
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

// Listen registers read interest; the listening socket must already
// have had listen(2) called on it by the caller.
func (a *Acceptor) Listen() {
	a.channel.EnableRead()
}

func (a *Acceptor) handleRead(Timestamp) {
	for {
		fd, sa, err := a.accept()
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			case unix.EMFILE, unix.ENFILE:
				a.recoverFdExhaustion()
				return
			default:
				if _, allowed := a.rateLimit.Allow("accept-exhaustion"); allowed {
					a.logger.Fatal("accept failed", "err", err)
				}
				return
			}
		}

		peer := sockaddrToConnAddr(sa)
		if a.onAccept != nil {
			a.onAccept(fd, peer)
		}
	}
}

// accept wraps accept4(SOCK_NONBLOCK), falling back to accept+
// SetNonblock when the kernel doesn't support accept4 (ENOSYS), caching
// that fact so later calls skip straight to the fallback.
func (a *Acceptor) accept() (int, unix.Sockaddr, error) {
	if !a.accept4Bad.Load() {
		fd, sa, err := unix.Accept4(a.listenFd, unix.SOCK_NONBLOCK)
		if err == nil {
			return fd, sa, nil
		}
		if err != unix.ENOSYS {
			return -1, nil, err
		}
		a.accept4Bad.Store(true)
	}

	fd, sa, err := unix.Accept(a.listenFd)
	if err != nil {
		return -1, nil, err
	}
	if err := setNonblock(fd); err != nil {
		_ = unix.Close(fd)
		return -1, nil, err
	}
	return fd, sa, nil
}

// recoverFdExhaustion implements the idle-reserve-fd remedy: release
// the held-back fd, accept and immediately discard the pending
// connection (which is what was actually blocking the kernel's accept
// queue from draining), then reopen the reserve so the trick is
// available again next time.
func (a *Acceptor) recoverFdExhaustion() {
	if _, allowed := a.rateLimit.Allow("accept-exhaustion"); allowed {
		a.logger.Fatal("fd exhaustion on accept, recovering via idle reserve")
	}

	if a.idleFd >= 0 {
		_ = unix.Close(a.idleFd)
		a.idleFd = -1
	}

	if fd, _, err := unix.Accept(a.listenFd); err == nil {
		_ = unix.Close(fd)
	}

	if fd, err := unix.Open("/dev/null", unix.O_RDONLY, 0); err == nil {
		a.idleFd = fd
	}
}

// Addr returns the bound local port, resolving an ephemeral (port 0)
// bind to whatever the kernel actually assigned.
func (a *Acceptor) Addr() (int, error) {
	sa, err := unix.Getsockname(a.listenFd)
	if err != nil {
		return 0, err
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return v.Port, nil
	case *unix.SockaddrInet6:
		return v.Port, nil
	default:
		return 0, ErrUnsupportedAddrFamily
	}
}

// Close releases the Acceptor's own fds. The listen fd itself is owned
// by the caller that created it.
func (a *Acceptor) Close() {
	a.channel.Remove()
	if a.idleFd >= 0 {
		_ = unix.Close(a.idleFd)
		a.idleFd = -1
	}
}

func sockaddrToConnAddr(sa unix.Sockaddr) ConnAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return ConnAddr{Network: "tcp4", Address: formatIPPort(v.Addr[:], v.Port)}
	case *unix.SockaddrInet6:
		return ConnAddr{Network: "tcp6", Address: formatIPPort(v.Addr[:], v.Port)}
	default:
		return ConnAddr{Network: "tcp", Address: "unknown"}
	}
}
