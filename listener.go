package netreactor

import "golang.org/x/sys/unix"

// listenTCP creates, binds, and starts listening on a non-blocking
// IPv4 TCP socket via the raw socket(2)/bind(2)/listen(2) sequence
// rather than net.Listen, since the accept loop needs the bare fd for
// accept4/EMFILE handling.
func listenTCP(port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	sa := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	return fd, nil
}
