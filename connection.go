package netreactor

import (
	"sync/atomic"
)

// HeaderSize is the size in bytes of the fixed wire header: a
// big-endian uint16 giving the total frame length (header + body),
// followed by 2 reserved bytes.
const HeaderSize = 4

// MaxPktLen is the largest total frame length (header + body) the
// receive state machine will accept.
const MaxPktLen = 10240

type receivePhase uint8

const (
	phaseHeader receivePhase = iota
	phaseBody
)

// ConnAddr identifies a Connection's peer for logging and the
// connection callback; it is a plain value so it survives the
// Connection's own teardown.
type ConnAddr struct {
	Network string
	Address string
}

// NewConnCallback is invoked once a Connection is fully wired into its
// loop, and again (with connected=false) once its Channel has been
// removed and its socket closed, before its slot returns to the pool.
type NewConnCallback func(conn *Connection, connected bool)

// MessageCallback is invoked once a complete frame has been decoded.
type MessageCallback func(conn *Connection, header [HeaderSize]byte, body []byte)

// Connection is one pool slot's live tenant: an accepted socket plus
// its length-prefixed receive state machine.
//
// A Connection is only ever touched from its owning EventLoop's
// goroutine, except for Sequence, which workers drained off the
// envelope queue read concurrently to decide whether a frame still
// belongs to the tenant that produced it.
type Connection struct {
	pool *ConnectionPool
	slot int32

	loop    *EventLoop
	channel *Channel

	sockfd int
	peer   ConnAddr

	// generation flips on every Get/Release cycle of this slot; only the
	// low bit is meaningful and packed into the poller's token.
	generation uint8

	phase     receivePhase
	headerBuf [HeaderSize]byte
	cursor    []byte // points into headerBuf or the body buffer
	remaining int

	bodyBuf []byte // set once a frame's total length is known

	sequence atomic.Uint64

	server *TcpServer

	writeReady bool
	writeBuf   []byte
}

// compile time assertions
var _ generationOwner = (*Connection)(nil)

// Sequence returns the Connection's current frame sequence counter. It
// may be called from any goroutine.
func (c *Connection) Sequence() uint64 {
	return c.sequence.Load()
}

// Fd returns the underlying socket fd, or -1 once released.
func (c *Connection) Fd() int {
	return c.sockfd
}

// Peer returns the remote address captured at accept time.
func (c *Connection) Peer() ConnAddr {
	return c.peer
}

// Loop returns the EventLoop this Connection's Channel is registered
// on.
func (c *Connection) Loop() *EventLoop {
	return c.loop
}

// alive implements generationOwner: captured must equal this slot's
// current generation bit, and the slot must still be occupied.
func (c *Connection) alive(captured uint8) bool {
	return c.sockfd >= 0 && (c.generation&1) == captured
}

// currentGeneration implements the generation reader the Poller uses
// when packing a fresh registration token.
func (c *Connection) currentGeneration() uint8 {
	return c.generation & 1
}

func (c *Connection) resetReceiveState() {
	c.phase = phaseHeader
	c.cursor = c.headerBuf[:]
	c.remaining = HeaderSize
	c.bodyBuf = nil
}
