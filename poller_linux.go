//go:build linux

package netreactor

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux implementation of Poller. Every registration
// embeds a (slot index, generation) token in the epoll user-data field,
// so a delayed notification for a recycled slot can be recognized and
// dropped at dispatch time instead of being misattributed to the slot's
// new tenant.
type epollPoller struct {
	epfd int

	// slots is a flat registration table indexed by the bits above the
	// generation bit of the token embedded in each epoll registration's
	// user-data field. It is
	// entirely separate from, and has no knowledge of, any
	// ConnectionPool's own slot numbering.
	slots []*Channel
	free  []int32

	eventBuf [128]unix.EpollEvent
}

// compile time assertions
var _ Poller = (*epollPoller)(nil)

// newPoller creates and initializes an epoll instance.
func newPoller() (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd}, nil
}

// Poll implements Poller.
func (p *epollPoller) Poll(timeoutMs int) (Timestamp, []*Channel, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf[:], timeoutMs)
	ts := Now()
	if err != nil {
		if err == unix.EINTR {
			// Interrupted waits surface as an empty batch, not an
			// error.
			return ts, nil, nil
		}
		return ts, nil, err
	}

	ready := make([]*Channel, 0, n)
	for i := 0; i < n; i++ {
		ev := &p.eventBuf[i]
		tok := joinToken(ev.Fd, ev.Pad)
		slotIdx, gen := decodeToken(tok)
		if slotIdx < 0 || int(slotIdx) >= len(p.slots) {
			continue
		}
		ch := p.slots[slotIdx]
		if ch == nil {
			continue
		}
		ch.revGeneration = gen
		ch.SetRevents(epollToEvents(ev.Events))
		ready = append(ready, ch)
	}
	return ts, ready, nil
}

// Update implements Poller.
func (p *epollPoller) Update(ch *Channel) error {
	mask := eventsToEpoll(ch.events)

	if !ch.registered {
		if ch.events == none {
			return nil
		}
		slot := p.allocSlot(ch)
		gen := channelGeneration(ch)
		tok := packToken(slot, gen)
		ev := unix.EpollEvent{Events: mask}
		ev.Fd, ev.Pad = splitToken(tok)
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, ch.fd, &ev); err != nil {
			p.freeSlot(slot)
			return err
		}
		ch.pollerSlot = slot
		ch.generation = gen
		ch.registered = true
		return nil
	}

	if ch.events == none {
		return p.Remove(ch)
	}

	gen := channelGeneration(ch)
	tok := packToken(ch.pollerSlot, gen)
	ev := unix.EpollEvent{Events: mask}
	ev.Fd, ev.Pad = splitToken(tok)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, ch.fd, &ev); err != nil {
		return err
	}
	ch.generation = gen
	return nil
}

// Remove implements Poller.
func (p *epollPoller) Remove(ch *Channel) error {
	if !ch.registered {
		ch.pollerSlot = -1
		return nil
	}
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, ch.fd, nil)
	p.freeSlot(ch.pollerSlot)
	ch.registered = false
	ch.pollerSlot = -1
	return err
}

// Close implements Poller.
func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func (p *epollPoller) allocSlot(ch *Channel) int32 {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.slots[idx] = ch
		return idx
	}
	p.slots = append(p.slots, ch)
	return int32(len(p.slots) - 1)
}

func (p *epollPoller) freeSlot(idx int32) {
	if idx < 0 || int(idx) >= len(p.slots) {
		return
	}
	p.slots[idx] = nil
	p.free = append(p.free, idx)
}

// channelGeneration reads the owner's current generation, or 0 for a
// Channel with no recyclable owner.
func channelGeneration(ch *Channel) uint8 {
	if ch.owner == nil {
		return 0
	}
	type generationReader interface {
		currentGeneration() uint8
	}
	if g, ok := ch.owner.(generationReader); ok {
		return g.currentGeneration()
	}
	return 0
}

// packToken combines a slot index and a one-bit generation into the
// 64-bit value stored across an epoll_event's data union (its Fd and Pad
// fields on linux/amd64 together form the 8-byte opaque user-data area).
func packToken(slot int32, generation uint8) uint64 {
	return uint64(uint32(slot))<<1 | uint64(generation&1)
}

// decodeToken reverses packToken.
func decodeToken(tok uint64) (slot int32, generation uint8) {
	return int32(tok >> 1), uint8(tok & 1)
}

// splitToken packs a 64-bit token into the two int32 halves of an
// epoll_event's data union.
func splitToken(tok uint64) (fd int32, pad int32) {
	return int32(uint32(tok)), int32(uint32(tok >> 32))
}

// joinToken reverses splitToken.
func joinToken(fd int32, pad int32) uint64 {
	return uint64(uint32(pad))<<32 | uint64(uint32(fd))
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLPRI != 0 {
		events |= EventPriority
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 || e&unix.EPOLLRDHUP != 0 {
		events |= EventHangup
	}
	return events
}
