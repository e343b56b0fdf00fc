package netreactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// onReadable is the Connection's read callback, wired up by TcpServer
// when a new Connection is created. It drives the HEADER/BODY receive
// state machine.
func (c *Connection) onReadable(Timestamp) {
	n, err := unix.Read(c.sockfd, c.cursor)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		return
	case err == unix.EINTR:
		return
	case err == unix.ECONNRESET:
		c.closeConnection()
		return
	case err != nil:
		if c.server != nil && c.server.logger != nil {
			c.server.logger.Err("connection read error", "fd", c.sockfd, "err", err)
		}
		c.closeConnection()
		return
	}

	if n == 0 {
		c.closeConnection()
		return
	}

	if n < c.remaining {
		c.cursor = c.cursor[n:]
		c.remaining -= n
		return
	}

	// n == c.remaining: this phase's target is fully read.
	switch c.phase {
	case phaseHeader:
		c.parseHeader()
	case phaseBody:
		c.deliverFrame()
	}
}

// parseHeader validates the length prefix just completed in headerBuf
// and either delivers an empty-body frame immediately or transitions to
// phaseBody to collect the remainder.
func (c *Connection) parseHeader() {
	pktLen := binary.BigEndian.Uint16(c.headerBuf[:])
	if int(pktLen) < HeaderSize || int(pktLen) > MaxPktLen {
		// Discard the header and return to HEADER phase rather than
		// closing. Only the header's own bytes are dropped: any bytes
		// the peer sent after an invalid header (such as the body it
		// declared) are not skipped, and the next HeaderSize bytes read
		// off the socket are parsed as a fresh header.
		if c.server != nil && c.server.logger != nil {
			c.server.logger.Err("invalid frame header, discarding", "fd", c.sockfd, "len", pktLen)
		}
		c.resetReceiveState()
		return
	}

	bodyLen := int(pktLen) - HeaderSize
	if bodyLen == 0 {
		c.deliverFrame()
		return
	}

	if c.server != nil && c.server.bufferPool != nil {
		c.bodyBuf = c.server.bufferPool.Alloc(bodyLen)
	} else {
		c.bodyBuf = make([]byte, bodyLen)
	}
	c.phase = phaseBody
	c.cursor = c.bodyBuf
	c.remaining = bodyLen
}

// deliverFrame hands the completed frame to the worker queue and resets
// the Connection back to HEADER phase for the next frame.
func (c *Connection) deliverFrame() {
	env := &Envelope{
		Conn:   c,
		Seq:    c.sequence.Load(),
		Header: c.headerBuf,
		Body:   c.bodyBuf,
	}

	if c.server != nil {
		c.server.deliver(env)
	}

	c.resetReceiveState()
}

// closeConnection tears down the socket and returns the slot to the
// pool: remove the Channel, close(fd), mark the slot stale, release the
// slot. Pending outbound data is discarded.
func (c *Connection) closeConnection() {
	if c.sockfd < 0 {
		return
	}

	srv := c.server
	loop := c.loop
	if c.channel != nil {
		c.channel.Tie(nil)
		c.channel.Remove()
	}
	_ = unix.Close(c.sockfd)
	c.sockfd = -1

	if srv != nil && srv.connCallback != nil {
		srv.connCallback(c, false)
	}

	// Returning the slot is deferred to the task-drain step, so reuse
	// can't begin until the current event dispatch has fully completed.
	if loop != nil {
		loop.QueueInLoop(func() {
			c.pool.Release(c)
		})
	} else {
		c.pool.Release(c)
	}
}
