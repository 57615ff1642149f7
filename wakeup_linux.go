//go:build linux

package reactor

import (
	"encoding/binary"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventfdWakeup is the Linux wakeup source, grounded on the ambient
// event loop's createWakeFd (wakeup_linux.go): a single non-blocking
// eventfd serves as both the read and write end.
type eventfdWakeup struct {
	fd      int
	pending atomic.Bool
}

func newWakeupSource(_ poller) (wakeupSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, wrapErrno("eventfd", err)
	}
	return &eventfdWakeup{fd: fd}, nil
}

func (w *eventfdWakeup) handle() Handle { return Handle(w.fd) }

func (w *eventfdWakeup) signal() error {
	if !w.pending.CompareAndSwap(false, true) {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return wrapErrno("eventfd write", err)
	}
	return nil
}

func (w *eventfdWakeup) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			break
		}
	}
	w.pending.Store(false)
}

func (w *eventfdWakeup) close() error {
	return wrapErrno("close", unix.Close(w.fd))
}
