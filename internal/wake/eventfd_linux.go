//go:build linux

package wake

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

func newEventFD() int {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1
	}
	return fd
}

func signalEventFD(fd int) {
	if fd < 0 {
		return
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(fd, buf[:])
}

func drainEventFD(fd int) {
	if fd < 0 {
		return
	}
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

func closeEventFD(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}
