// Package netreactor implements the core of a reactor-pattern TCP server
// framework: an event-driven I/O engine that multiplexes many concurrent
// TCP connections onto a small number of threads using readiness
// notification (epoll on Linux), dispatches readable/writable/error
// events to per-connection handlers, and parses a length-prefixed
// message framing on top of the streamed byte input.
//
// # Architecture
//
// Four tightly coupled pieces do the work:
//   - [EventLoop] and [Poller]: one I/O loop per thread, non-blocking
//     sockets, level-triggered readiness.
//   - [Channel]: a per-descriptor registration handle bridging an fd to
//     its owner loop's Poller and callbacks.
//   - [ConnectionPool]: a preallocated, generation-tagged free list of
//     [Connection] slots, safe against delayed readiness notifications
//     referring to an already-recycled fd.
//   - [Acceptor], [Connection], and [TcpServer]: the listen→accept→read→
//     decode pipeline, including the length-prefixed receive state
//     machine.
//
// # Platform support
//
// The Poller is implemented with epoll and is Linux-only; this mirrors
// the classical Reactor pattern's requirement of a kernel readiness
// primitive and intentionally excludes Windows IOCP (see the module's
// non-goals).
//
// # Thread affinity
//
// Every Channel, Connection, and Poller belongs to exactly one
// [EventLoop] and must only be touched from that loop's own goroutine.
// Cross-goroutine communication is exclusively through
// [EventLoop.RunInLoop] and [EventLoop.QueueInLoop].
package netreactor

// Poller is the kernel-readiness multiplexer owned by a single EventLoop.
// Implementations live in poller_linux.go (epoll).
type Poller interface {
	// Poll blocks up to timeoutMs (negative means indefinite) and
	// returns the arrival Timestamp plus the set of Channels whose
	// interest was satisfied. A received mask is stored on each Channel
	// (via Channel.SetRevents) before it is appended to the result.
	Poll(timeoutMs int) (Timestamp, []*Channel, error)

	// Update installs or modifies the kernel registration for ch to
	// match ch.Events(). An empty mask on an already-registered Channel
	// unregisters it.
	Update(ch *Channel) error

	// Remove unregisters ch and drops its kernel-side registration.
	Remove(ch *Channel) error

	// Close releases the poller's own kernel resources (e.g. the epoll
	// fd). It does not touch any registered Channel's fd.
	Close() error
}
