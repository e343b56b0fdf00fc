package netreactor

// Envelope is the unit of hand-off to the external worker queue: a
// decoded frame plus enough identity to let the consumer ignore frames
// belonging to an already-closed Connection.
//
// Ownership of Body transfers to whoever receives the Envelope off the
// queue; once done processing, the receiver should return it via
// TcpServer's BufferPool.Free.
type Envelope struct {
	Conn   *Connection
	Seq    uint64
	Header [HeaderSize]byte
	Body   []byte
}
