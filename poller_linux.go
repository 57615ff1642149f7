//go:build linux

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux poller backend, grounded on the ambient
// event loop's FastPoller (poller_linux.go): a single epoll instance,
// direct fd-to-interest bookkeeping guarded by a mutex that is only
// held around registration changes; wait never takes it, so it is
// never held across the blocking wait syscall itself.
type epollPoller struct {
	epfd int

	mu       sync.Mutex
	interest map[Handle]State

	eventBuf []unix.EpollEvent
}

func newPoller(maxEventsPerWait int) (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, wrapErrno("epoll_create1", err)
	}
	if maxEventsPerWait <= 0 {
		maxEventsPerWait = 256
	}
	return &epollPoller{
		epfd:     fd,
		interest: make(map[Handle]State),
		eventBuf: make([]unix.EpollEvent, maxEventsPerWait),
	}, nil
}

func stateToEpoll(interest State) uint32 {
	var ev uint32
	if interest&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToState(mask uint32) State {
	var bits State
	if mask&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		bits |= Readable
	}
	if mask&unix.EPOLLOUT != 0 {
		bits |= Writable
	}
	if mask&unix.EPOLLERR != 0 {
		bits |= Exceptional
	}
	if mask&unix.EPOLLHUP != 0 {
		bits |= Hangup
	}
	if mask&unix.EPOLLRDHUP != 0 {
		bits |= Shutdown
	}
	return bits
}

func (p *epollPoller) add(h Handle, interest State) error {
	p.mu.Lock()
	p.interest[h] = interest
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: stateToEpoll(interest), Fd: int32(h)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(h), ev); err != nil {
		p.mu.Lock()
		delete(p.interest, h)
		p.mu.Unlock()
		return wrapErrno("epoll_ctl(add)", err)
	}
	return nil
}

func (p *epollPoller) modify(h Handle, interest State) error {
	p.mu.Lock()
	p.interest[h] = interest
	p.mu.Unlock()

	ev := &unix.EpollEvent{Events: stateToEpoll(interest), Fd: int32(h)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(h), ev); err != nil {
		return wrapErrno("epoll_ctl(mod)", err)
	}
	return nil
}

func (p *epollPoller) remove(h Handle) error {
	p.mu.Lock()
	delete(p.interest, h)
	p.mu.Unlock()

	// EPOLL_CTL_DEL on a closed fd returns EBADF; the handle is gone
	// from our own bookkeeping either way, so that is not reported as
	// an error to the caller.
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(h), nil); err != nil && err != unix.EBADF && err != unix.ENOENT {
		return wrapErrno("epoll_ctl(del)", err)
	}
	return nil
}

func (p *epollPoller) wait(timeout time.Duration, out *EventSet) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, pollTimeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		raw := p.eventBuf[i]
		h := Handle(raw.Fd)
		bits := epollToState(raw.Events)
		ev := Event{Handle: h, Bits: bits}
		if bits&(Exceptional|StateError) != 0 {
			ev.Err = New(Unknown, "epoll reported an error condition")
		}
		out.Merge(ev)
	}
	return n, nil
}

func (p *epollPoller) close() error {
	return wrapErrno("close", unix.Close(p.epfd))
}
