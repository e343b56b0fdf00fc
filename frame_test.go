package netreactor

import (
	"encoding/binary"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, poolSize int) (*TcpServer, string) {
	t.Helper()
	loop := newRunningLoop(t)

	srv := NewTcpServer(loop, []int{0}, poolSize, nil, nil, WithWorkerQueueCapacity(64))
	require.NoError(t, srv.Start())

	require.Eventually(t, srv.Started, time.Second, time.Millisecond)

	ports, err := srv.ActualPorts()
	require.NoError(t, err)
	require.Len(t, ports, 1)

	return srv, net.JoinHostPort("127.0.0.1", strconv.Itoa(ports[0]))
}

func recvEnvelope(t *testing.T, srv *TcpServer, timeout time.Duration) *Envelope {
	t.Helper()
	select {
	case env := <-srv.WorkQueue():
		return env
	case <-time.After(timeout):
		t.Fatal("no envelope delivered")
		return nil
	}
}

func noEnvelope(t *testing.T, srv *TcpServer, wait time.Duration) {
	t.Helper()
	select {
	case env := <-srv.WorkQueue():
		t.Fatalf("unexpected envelope delivered: seq=%d len=%d", env.Seq, len(env.Body))
	case <-time.After(wait):
	}
}

// A header-only frame (len=4, no body) delivers one empty-body envelope.
func TestEmptyBodyFrame(t *testing.T) {
	srv, addr := newTestServer(t, 8)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x00, 0x04, 0x00, 0x00})
	require.NoError(t, err)

	env := recvEnvelope(t, srv, 2*time.Second)
	require.Empty(t, env.Body)
	require.Equal(t, uint16(4), binary.BigEndian.Uint16(env.Header[:]))
}

// A header+body frame delivers the body bytes intact.
func TestHeaderAndBodyFrame(t *testing.T) {
	srv, addr := newTestServer(t, 8)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte{0x00, 0x0A, 0x00, 0x00, 'H', 'e', 'l', 'l', 'o', 0x00}
	_, err = conn.Write(frame)
	require.NoError(t, err)

	env := recvEnvelope(t, srv, 2*time.Second)
	require.Equal(t, []byte{0x00, 0x0A, 0x00, 0x00}, env.Header[:])
	require.Equal(t, []byte{'H', 'e', 'l', 'l', 'o', 0x00}, env.Body)
}

// The same frame trickled in one byte at a time must still decode.
func TestTrickledBytes(t *testing.T) {
	srv, addr := newTestServer(t, 8)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	frame := []byte{0x00, 0x0A, 0x00, 0x00, 'H', 'e', 'l', 'l', 'o', 0x00}
	for _, b := range frame {
		_, err := conn.Write([]byte{b})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	env := recvEnvelope(t, srv, 2*time.Second)
	require.Equal(t, []byte{'H', 'e', 'l', 'l', 'o', 0x00}, env.Body)
}

// A length below HeaderSize is discarded; the connection stays open
// and resynchronizes on the next header.
func TestShortLengthThenValidFrame(t *testing.T) {
	srv, addr := newTestServer(t, 8)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// len=1 is below HeaderSize(4); the header is discarded and the
	// receive state machine resets to HEADER phase, so what follows
	// must itself be a fresh, valid header.
	_, err = conn.Write([]byte{0x00, 0x01, 0x00, 0x00})
	require.NoError(t, err)
	noEnvelope(t, srv, 150*time.Millisecond)

	_, err = conn.Write([]byte{0x00, 0x04, 0x00, 0x00})
	require.NoError(t, err)
	env := recvEnvelope(t, srv, 2*time.Second)
	require.Empty(t, env.Body)
}

// A length above MaxPktLen is discarded rather than closing the
// connection; a subsequent valid frame on the same connection is
// delivered normally.
func TestOversizeLengthDiscardedConnectionStaysOpen(t *testing.T) {
	srv, addr := newTestServer(t, 8)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0xFF, 0xFF, 0x00, 0x00})
	require.NoError(t, err)
	noEnvelope(t, srv, 150*time.Millisecond)

	_, err = conn.Write([]byte{0x00, 0x04, 0x00, 0x00})
	require.NoError(t, err)
	env := recvEnvelope(t, srv, 2*time.Second)
	require.Empty(t, env.Body)
}

func mkFrame(total int, fill byte) []byte {
	b := make([]byte, total)
	binary.BigEndian.PutUint16(b, uint16(total))
	for i := HeaderSize; i < total; i++ {
		b[i] = fill
	}
	return b
}

// Property: for any chunking of a concatenation of valid frames, the
// receiver emits exactly those frames, in order.
func TestFrameStreamSurvivesArbitraryChunking(t *testing.T) {
	frames := [][]byte{
		mkFrame(4, 0),
		mkFrame(10, 'a'),
		mkFrame(7, 'b'),
		mkFrame(4, 0),
		mkFrame(13, 'c'),
		mkFrame(MaxPktLen, 'd'),
	}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, f...)
	}

	srv, addr := newTestServer(t, 8)

	for _, chunk := range []int{1, 2, 3, 5, 8, 64, len(stream)} {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)

		go func() {
			for off := 0; off < len(stream); off += chunk {
				end := off + chunk
				if end > len(stream) {
					end = len(stream)
				}
				if _, err := conn.Write(stream[off:end]); err != nil {
					return
				}
			}
		}()

		for i, want := range frames {
			env := recvEnvelope(t, srv, 5*time.Second)
			require.Equal(t, want[:HeaderSize], env.Header[:], "chunk=%d frame=%d", chunk, i)
			require.Equal(t, string(want[HeaderSize:]), string(env.Body), "chunk=%d frame=%d", chunk, i)
		}
		require.NoError(t, conn.Close())
	}
}
