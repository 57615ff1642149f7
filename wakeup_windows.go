//go:build windows

package reactor

import "golang.org/x/sys/windows"

// iocpWakeup wakes an iocpPoller by posting an artificial completion
// packet, the same mechanism the ambient event loop's Windows FastPoller
// uses via PostQueuedCompletionStatus. No fd is needed, unlike the POSIX
// wakeup sources.
type iocpWakeup struct {
	iocp windows.Handle
}

func newWakeupSource(p poller) (wakeupSource, error) {
	ip, ok := p.(*iocpPoller)
	if !ok {
		return nil, New(Invalid, "iocp wakeup requires an iocpPoller")
	}
	return &iocpWakeup{iocp: ip.iocp}, nil
}

func (w *iocpWakeup) handle() Handle { return InvalidHandle }

func (w *iocpWakeup) signal() error {
	return wrapWinError("PostQueuedCompletionStatus", windows.PostQueuedCompletionStatus(w.iocp, 0, 0, nil))
}

func (w *iocpWakeup) drain() {}

func (w *iocpWakeup) close() error { return nil }
