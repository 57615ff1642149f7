//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"sync/atomic"
	"syscall"
)

// pipeWakeup is the self-pipe wakeup source used on every POSIX
// platform without Linux's eventfd, grounded on the ambient event
// loop's Darwin createWakeFd (wakeup_darwin.go).
type pipeWakeup struct {
	readFD, writeFD int
	pending         atomic.Bool
}

func newWakeupSource(_ poller) (wakeupSource, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, wrapErrno("pipe", err)
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, wrapErrno("set nonblock", err)
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return nil, wrapErrno("set nonblock", err)
	}
	return &pipeWakeup{readFD: fds[0], writeFD: fds[1]}, nil
}

func (w *pipeWakeup) handle() Handle { return Handle(w.readFD) }

func (w *pipeWakeup) signal() error {
	if !w.pending.CompareAndSwap(false, true) {
		return nil
	}
	_, err := syscall.Write(w.writeFD, []byte{1})
	if err != nil && err != syscall.EAGAIN {
		return wrapErrno("pipe write", err)
	}
	return nil
}

func (w *pipeWakeup) drain() {
	var buf [64]byte
	for {
		_, err := syscall.Read(w.readFD, buf[:])
		if err != nil {
			break
		}
	}
	w.pending.Store(false)
}

func (w *pipeWakeup) close() error {
	_ = syscall.Close(w.writeFD)
	return wrapErrno("close", syscall.Close(w.readFD))
}
