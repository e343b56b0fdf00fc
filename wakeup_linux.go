//go:build linux

package netreactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd opens an eventfd used to interrupt a blocked epoll_wait
// from another goroutine; the same fd serves as both the read and write
// end.
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

// signalWakeFd adds 1 to the eventfd's counter, waking anyone blocked on
// it in epoll_wait. EAGAIN (counter already at the max value) is
// harmless: the loop is already guaranteed to wake.
func signalWakeFd(fd int) error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, err := unix.Write(fd, one[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drainWakeFd empties the eventfd's counter back to zero.
func drainWakeFd(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return
		}
	}
}
