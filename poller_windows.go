//go:build windows

package reactor

import (
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// iocpPoller is the Windows poller backend, grounded on the ambient
// event loop's IOCP FastPoller (poller_windows.go). It shares that
// implementation's acknowledged scope cut: IOCP delivers completions for
// overlapped I/O operations, not readiness notifications the way
// epoll/kqueue do, so a faithful IOCP backend needs every Socket
// implementation to post its own overlapped reads/writes and carry its
// own per-operation state through the completion key. Wiring that
// through this package's OS-agnostic Socket interface is future work;
// this backend currently tracks registrations and wakes on demand, but
// wait always returns 0 events, matching the upstream FastPoller's own
// simplified dispatchEvents ("a more sophisticated implementation would
// track per-FD state").
type iocpPoller struct {
	iocp windows.Handle

	mu       sync.Mutex
	interest map[Handle]State
}

func newPoller(maxEventsPerWait int) (poller, error) {
	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, wrapWinError("CreateIoCompletionPort", err)
	}
	return &iocpPoller{iocp: iocp, interest: make(map[Handle]State)}, nil
}

func wrapWinError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		e := errorFromWinError(errno)
		return Wrap(e.Category(), op, e)
	}
	return Wrap(Unknown, op, err)
}

func (p *iocpPoller) add(h Handle, interest State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := windows.CreateIoCompletionPort(windows.Handle(h), p.iocp, 0, 0); err != nil {
		return wrapWinError("CreateIoCompletionPort(associate)", err)
	}
	p.interest[h] = interest
	return nil
}

func (p *iocpPoller) modify(h Handle, interest State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interest[h] = interest
	return nil
}

func (p *iocpPoller) remove(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interest, h)
	return nil
}

// wait blocks on the completion port for up to timeout and reports
// whatever wake-ups (Execute-driven, via PostQueuedCompletionStatus)
// arrived, but never synthesizes readiness Events: see the type doc
// comment for why. Overlapped-I/O callers observe readiness through
// their own completion data today, not through this poller's EventSet.
func (p *iocpPoller) wait(timeout time.Duration, out *EventSet) (int, error) {
	var timeoutMs *uint32
	if timeout >= 0 {
		ms := uint32(pollTimeoutMillis(timeout))
		timeoutMs = &ms
	}
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeoutMs)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok && errno == windows.WAIT_TIMEOUT {
			return 0, nil
		}
		return 0, wrapWinError("GetQueuedCompletionStatus", err)
	}
	return 0, nil
}

func (p *iocpPoller) close() error {
	return wrapWinError("CloseHandle", windows.CloseHandle(p.iocp))
}
