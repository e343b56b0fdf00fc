package netreactor

import (
	"runtime"
	"sync/atomic"
)

// IOEvents is a bitmask of readiness conditions, shared between a
// Channel's interest mask and the Poller's returned mask.
type IOEvents uint32

const (
	// EventRead indicates the fd is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the fd is ready for writing.
	EventWrite
	// EventPriority indicates urgent/out-of-band readable data (treated
	// the same as EventRead for dispatch purposes).
	EventPriority
	// EventError indicates an error condition on the fd.
	EventError
	// EventHangup indicates the peer closed its end without readable
	// data remaining.
	EventHangup
)

// none is the empty interest mask: a Channel with no interest is
// unregistered from its Poller by Update.
const none IOEvents = 0

// ReadEventCallback is invoked on a read-ready Channel with the arrival
// Timestamp of the poll() batch that produced the event.
type ReadEventCallback func(Timestamp)

// EventCallback is invoked for write/close/error events, which carry no
// additional data beyond "this happened".
type EventCallback func()

// generationOwner is implemented by whatever a Channel is tied to when
// that owner can be recycled across a fixed set of slots (i.e. a
// ConnectionPool entry). It lets the dispatch path detect an event that
// refers to a prior tenant of a reused slot; see Channel.revGeneration
// and EventLoop.Loop.
type generationOwner interface {
	alive(capturedGeneration uint8) bool
}

// Channel binds exactly one file descriptor to exactly one EventLoop and
// a set of readiness callbacks. A Channel never owns its fd: closing the
// fd is always the owner's responsibility, and Remove must be called
// before that close to avoid leaving a stale kernel registration.
//
// A Channel's fd, interest mask, and callbacks must only be touched from
// its owner loop's thread; there is exactly one goroutine per EventLoop
// that ever mutates its Channels, so no internal synchronization is
// needed here (see EventLoop.assertInLoopThread for the cross-goroutine
// guard).
type Channel struct {
	loop *EventLoop
	fd   int

	events  IOEvents // interest mask
	revents IOEvents // mask returned by the most recent poll()

	// pollerSlot identifies this Channel's registration slot in the
	// Poller's flat table; -1 when not registered. generation is the
	// owner's generation tag at the time of the most recent registration
	// (Poller.Update), packed alongside pollerSlot into the kernel's
	// opaque user-data field. revGeneration is the generation decoded
	// back out of that token on the most recent poll() batch, captured
	// for comparison against the owner's *current* generation at
	// dispatch time (see EventLoop.Loop).
	pollerSlot    int32
	generation    uint8
	revGeneration uint8
	registered    bool

	// owner is the ConnectionPool slot this Channel belongs to, or nil
	// for Channels that are never recycled (the Acceptor's listener, the
	// loop's own wakeup fd). Used only for the generation/staleness
	// check; see tie for the strong-hold side of the relationship.
	owner generationOwner

	// tie holds a strong reference to the owning Connection; handleEvent
	// copies it into a local for the duration of a single dispatch, so a
	// callback that drops its own last reference mid-dispatch doesn't let
	// the Connection (which points at this Channel) be reclaimed before
	// handleEvent returns.
	tie atomic.Pointer[Connection]

	readCallback  ReadEventCallback
	writeCallback EventCallback
	closeCallback EventCallback
	errorCallback EventCallback
}

// newChannel creates a Channel bound to loop and fd. The Channel starts
// with no interest and is not registered with the Poller until Update is
// called (via EnableRead/EnableWrite).
func newChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{
		loop:       loop,
		fd:         fd,
		pollerSlot: -1,
	}
}

// Fd returns the bound file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the current interest mask.
func (c *Channel) Events() IOEvents { return c.events }

// IsNoneEvent reports whether the Channel currently has no interest.
func (c *Channel) IsNoneEvent() bool { return c.events == none }

// IsWriting reports whether the Channel is registered for write events.
func (c *Channel) IsWriting() bool { return c.events&EventWrite != 0 }

// IsReading reports whether the Channel is registered for read events.
func (c *Channel) IsReading() bool { return c.events&EventRead != 0 }

// SetRevents records the mask the Poller observed for this Channel; it
// is only ever called by Poller.Poll, before the Channel is appended to
// the ready list.
func (c *Channel) SetRevents(ev IOEvents) { c.revents = ev }

// OwnerLoop returns the EventLoop this Channel is bound to.
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }

// SetReadCallback installs the read-ready callback.
func (c *Channel) SetReadCallback(cb ReadEventCallback) { c.readCallback = cb }

// SetWriteCallback installs the write-ready callback.
func (c *Channel) SetWriteCallback(cb EventCallback) { c.writeCallback = cb }

// SetCloseCallback installs the close callback.
func (c *Channel) SetCloseCallback(cb EventCallback) { c.closeCallback = cb }

// SetErrorCallback installs the error callback.
func (c *Channel) SetErrorCallback(cb EventCallback) { c.errorCallback = cb }

// Tie binds the Channel to its owning Connection: owner is both the
// strong hold kept alive across dispatch and the generationOwner
// consulted for staleness, since *Connection implements both roles.
// Pass nil for Channels that are never recycled (the Acceptor's
// listener, the loop's own wakeup fd).
func (c *Channel) Tie(owner *Connection) {
	c.tie.Store(owner)
	if owner == nil {
		c.owner = nil
	} else {
		c.owner = owner
	}
}

// EnableRead adds read interest and pushes the updated mask to the
// Poller.
func (c *Channel) EnableRead() {
	c.events |= EventRead
	c.update()
}

// DisableRead removes read interest and pushes the updated mask to the
// Poller.
func (c *Channel) DisableRead() {
	c.events &^= EventRead
	c.update()
}

// EnableWrite adds write interest and pushes the updated mask to the
// Poller.
func (c *Channel) EnableWrite() {
	c.events |= EventWrite
	c.update()
}

// DisableWrite removes write interest and pushes the updated mask to the
// Poller.
func (c *Channel) DisableWrite() {
	c.events &^= EventWrite
	c.update()
}

// DisableAll removes all interest and pushes the updated mask to the
// Poller (this unregisters the fd entirely, per Poller.Update's
// empty-mask contract).
func (c *Channel) DisableAll() {
	c.events = none
	c.update()
}

func (c *Channel) update() {
	c.loop.updateChannel(c)
}

// Remove unregisters the Channel from its Poller and clears its
// registration state. The caller must do this before closing the fd.
func (c *Channel) Remove() {
	c.events = none
	c.loop.removeChannel(c)
}

// stale reports whether this Channel's most recently captured revGeneration
// no longer matches its owner's live generation (or the owner's slot has
// since been freed). A Channel with no owner is never stale.
func (c *Channel) stale() bool {
	return c.owner != nil && !c.owner.alive(c.revGeneration)
}

// handleEvent dispatches the most recently observed mask in a fixed
// order: close, then error, then read, then write. A
// hang-up that carries no readable data takes the close path directly;
// a hang-up alongside readable data is delivered to the read callback
// first (the reader will observe EOF on its next recv and close itself).
func (c *Channel) handleEvent(receiveTime Timestamp) {
	// Copy the tie into a strong local hold for the duration of
	// dispatch, so a callback that clears the tie (teardown) can't let
	// the Connection be reclaimed before the remaining callbacks and
	// the KeepAlive below have run.
	guard := c.tie.Load()

	if c.revents&EventHangup != 0 && c.revents&EventRead == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
		runtime.KeepAlive(guard)
		return
	}
	if c.revents&EventError != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
	}
	if c.revents&(EventRead|EventPriority) != 0 {
		if c.readCallback != nil {
			c.readCallback(receiveTime)
		}
	}
	if c.revents&EventWrite != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
	runtime.KeepAlive(guard)
}
