//go:build freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the portable poll(2) fallback for the BSD family members
// that don't get their own tuned backend above. There is no teacher
// analogue for this one: epoll and kqueue both had a grounded precedent
// in the example pack, poll(2) did not, so this file is written directly
// against the POSIX poll(2) semantics golang.org/x/sys/unix exposes.
// Unlike epoll/kqueue, poll(2) takes its full interest set on every
// call, so wait rebuilds the pollfd slice from the tracked map each time
// rather than maintaining OS-side registrations incrementally.
type pollPoller struct {
	mu       sync.Mutex
	interest map[Handle]State
}

func newPoller(maxEventsPerWait int) (poller, error) {
	return &pollPoller{interest: make(map[Handle]State)}, nil
}

func (p *pollPoller) add(h Handle, interest State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interest[h] = interest
	return nil
}

func (p *pollPoller) modify(h Handle, interest State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interest[h] = interest
	return nil
}

func (p *pollPoller) remove(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interest, h)
	return nil
}

func stateToPollEvents(interest State) int16 {
	var ev int16
	if interest&Readable != 0 {
		ev |= unix.POLLIN
	}
	if interest&Writable != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func pollRevents(revents int16) State {
	var bits State
	if revents&unix.POLLIN != 0 {
		bits |= Readable
	}
	if revents&unix.POLLOUT != 0 {
		bits |= Writable
	}
	if revents&unix.POLLERR != 0 {
		bits |= Exceptional
	}
	if revents&unix.POLLHUP != 0 {
		bits |= Hangup
	}
	if revents&unix.POLLNVAL != 0 {
		bits |= Exceptional
	}
	return bits
}

func (p *pollPoller) wait(timeout time.Duration, out *EventSet) (int, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.interest))
	for h, interest := range p.interest {
		fds = append(fds, unix.PollFd{Fd: int32(h), Events: stateToPollEvents(interest)})
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		// poll(2) with an empty set still honors the timeout, but there is
		// nothing to report; sleep out the requested wait and return.
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, nil
	}

	n, err := unix.Poll(fds, pollTimeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno("poll", err)
	}

	reported := 0
	for _, fd := range fds {
		if fd.Revents == 0 {
			continue
		}
		bits := pollRevents(fd.Revents)
		ev := Event{Handle: Handle(fd.Fd), Bits: bits}
		if bits&Exceptional != 0 {
			ev.Err = New(Unknown, "poll reported an error condition")
		}
		out.Merge(ev)
		reported++
	}
	_ = n
	return reported, nil
}

func (p *pollPoller) close() error {
	return nil
}
