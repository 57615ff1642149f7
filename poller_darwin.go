//go:build darwin

package reactor

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the Darwin poller backend (the other BSDs build the
// poll(2) fallback in poller_other.go), grounded on the
// ambient event loop's kqueue FastPoller (poller_darwin.go). Read and
// write interest are tracked as independent kevent filters, since
// kqueue (unlike epoll) has no single combined readable+writable
// registration -- EVFILT_READ and EVFILT_WRITE are added/deleted
// separately as interest changes.
type kqueuePoller struct {
	kq int

	mu       sync.Mutex
	interest map[Handle]State

	eventBuf []unix.Kevent_t
}

func newPoller(maxEventsPerWait int) (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, wrapErrno("kqueue", err)
	}
	unix.CloseOnExec(kq)
	if maxEventsPerWait <= 0 {
		maxEventsPerWait = 256
	}
	return &kqueuePoller{
		kq:       kq,
		interest: make(map[Handle]State),
		eventBuf: make([]unix.Kevent_t, maxEventsPerWait),
	}, nil
}

// changesFor builds the EV_ADD/EV_DELETE kevent changelist needed to
// move a handle's registered interest from `from` to `to`.
func changesFor(h Handle, from, to State) []unix.Kevent_t {
	var changes []unix.Kevent_t
	addFilter := func(filter int16, flags uint16) {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(h),
			Filter: filter,
			Flags:  flags,
		})
	}
	if to&Readable != 0 && from&Readable == 0 {
		addFilter(unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	} else if to&Readable == 0 && from&Readable != 0 {
		addFilter(unix.EVFILT_READ, unix.EV_DELETE)
	}
	if to&Writable != 0 && from&Writable == 0 {
		addFilter(unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
	} else if to&Writable == 0 && from&Writable != 0 {
		addFilter(unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	return changes
}

func (p *kqueuePoller) add(h Handle, interest State) error {
	p.mu.Lock()
	p.interest[h] = interest
	p.mu.Unlock()

	changes := changesFor(h, 0, interest)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.interest, h)
		p.mu.Unlock()
		return wrapErrno("kevent(add)", err)
	}
	return nil
}

func (p *kqueuePoller) modify(h Handle, interest State) error {
	p.mu.Lock()
	prev := p.interest[h]
	p.interest[h] = interest
	p.mu.Unlock()

	changes := changesFor(h, prev, interest)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return wrapErrno("kevent(modify)", err)
	}
	return nil
}

func (p *kqueuePoller) remove(h Handle) error {
	p.mu.Lock()
	prev, ok := p.interest[h]
	delete(p.interest, h)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	changes := changesFor(h, prev, 0)
	if len(changes) == 0 {
		return nil
	}
	// The fd is very often already closed by the time remove is called;
	// kqueue auto-retires kevents for a closed fd, so ENOENT/EBADF here
	// is expected, not an error.
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return wrapErrno("kevent(remove)", err)
	}
	return nil
}

func (p *kqueuePoller) wait(timeout time.Duration, out *EventSet) (int, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, wrapErrno("kevent(wait)", err)
	}
	for i := 0; i < n; i++ {
		raw := p.eventBuf[i]
		h := Handle(raw.Ident)
		var bits State
		switch int16(raw.Filter) {
		case unix.EVFILT_READ:
			bits |= Readable
		case unix.EVFILT_WRITE:
			bits |= Writable
		}
		if raw.Flags&unix.EV_EOF != 0 {
			bits |= Hangup
		}
		if raw.Flags&unix.EV_ERROR != 0 {
			bits |= Exceptional
		}
		ev := Event{Handle: h, Bits: bits}
		if raw.Flags&unix.EV_ERROR != 0 {
			ev.Err = FromErrno(TranslateErrno(int(raw.Data)), int(raw.Data))
		}
		out.Merge(ev)
	}
	return n, nil
}

func (p *kqueuePoller) close() error {
	return wrapErrno("close", unix.Close(p.kq))
}
