package netreactor

import "golang.org/x/sys/unix"

// Send queues data for delivery to the peer. Safe to call from any
// goroutine: calls from a foreign goroutine are marshalled onto the
// owning loop via QueueInLoop, copying data first since the caller may
// reuse its buffer immediately after this returns.
func (c *Connection) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	if c.loop.isLoopThread() {
		c.sendInLoop(data)
		return
	}
	buf := append([]byte(nil), data...)
	loop := c.loop
	loop.QueueInLoop(func() {
		c.sendInLoop(buf)
	})
}

// sendInLoop performs the actual write; it must only run on the owning
// loop's thread. A direct write is attempted only when the socket was
// write-ready on its last attempt and nothing is queued ahead of data;
// otherwise data is appended behind whatever is already pending,
// preserving order, and the EPOLLOUT flush in onWritable takes over.
func (c *Connection) sendInLoop(data []byte) {
	if c.sockfd < 0 {
		return
	}
	if !c.writeReady || len(c.writeBuf) != 0 {
		c.writeBuf = append(c.writeBuf, data...)
		return
	}

	n, err := unix.Write(c.sockfd, data)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			n = 0
		} else if err == unix.EPIPE {
			c.closeConnection()
			return
		} else {
			if c.server != nil && c.server.logger != nil {
				c.server.logger.Err("connection write error", "fd", c.sockfd, "err", err)
			}
			c.closeConnection()
			return
		}
	}

	if n < len(data) {
		c.writeReady = false
		c.writeBuf = append([]byte(nil), data[n:]...)
		c.channel.EnableWrite()
	}
}

// onWritable is the Connection's write callback: it flushes as much of
// writeBuf as the kernel will currently accept.
func (c *Connection) onWritable() {
	if c.sockfd < 0 {
		return
	}
	if len(c.writeBuf) == 0 {
		c.writeReady = true
		c.channel.DisableWrite()
		return
	}

	n, err := unix.Write(c.sockfd, c.writeBuf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		c.closeConnection()
		return
	}

	c.writeBuf = c.writeBuf[n:]
	if len(c.writeBuf) == 0 {
		c.writeReady = true
		c.channel.DisableWrite()
	}
}
