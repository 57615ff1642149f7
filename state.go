package reactor

import "sync/atomic"

// RunState is the Reactor's lifecycle state: while Running, exactly the
// threads in the waiter set may call poll/run.
type RunState uint32

const (
	StateStopped RunState = iota
	StateRunning
	StateStopping
)

func (s RunState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// fastState is a cache-line-padded atomic state machine, the same shape
// as the ambient event loop's FastState (CAS-only transitions, no
// locking), narrowed from five loop states to the reactor's three.
type fastState struct { // betteralign:ignore
	_ [64]byte //nolint:unused
	v atomic.Uint32
	_ [60]byte //nolint:unused
}

func newFastState() *fastState {
	fs := &fastState{}
	fs.v.Store(uint32(StateStopped))
	return fs
}

func (fs *fastState) Load() RunState { return RunState(fs.v.Load()) }

func (fs *fastState) Store(s RunState) { fs.v.Store(uint32(s)) }

// TryTransition attempts a single from->to CAS, returning whether it
// succeeded.
func (fs *fastState) TryTransition(from, to RunState) bool {
	return fs.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts to move to `to` from any of the given
// acceptable current states, retrying on transient CAS failure against a
// changing-but-still-acceptable current value.
func (fs *fastState) TransitionAny(from []RunState, to RunState) bool {
	for {
		cur := fs.Load()
		ok := false
		for _, f := range from {
			if cur == f {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if fs.v.CompareAndSwap(uint32(cur), uint32(to)) {
			return true
		}
	}
}
