package reactor

import "sync"

// Strand is a serializer: functions submitted to the same Strand never
// run concurrently with each other, regardless of which goroutine
// submits them. A nil *Strand is valid and means "run inline, no
// serialization" -- the zero-cost default for callbacks that do not
// share state with anything else.
type Strand struct {
	mu      sync.Mutex
	pending []func()
	active  bool
}

// NewStrand returns a new, empty Strand.
func NewStrand() *Strand {
	return &Strand{}
}

// Run submits fn for execution on the Strand. If no other function is
// currently draining the Strand's queue, the calling goroutine becomes
// the drainer and executes fn (and anything enqueued while it runs)
// inline before returning. Otherwise fn is queued and the current
// drainer will reach it in submission order.
//
// This mirrors the deferred-function-queue discipline used elsewhere in
// this runtime (Chronology, Reactor): never hold the Strand's mutex
// while invoking a function.
func (s *Strand) Run(fn func()) {
	if s == nil {
		fn()
		return
	}
	s.mu.Lock()
	if s.active {
		s.pending = append(s.pending, fn)
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	next := fn
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logPanic("strand", r)
				}
			}()
			next()
		}()

		s.mu.Lock()
		if len(s.pending) == 0 {
			s.active = false
			s.mu.Unlock()
			return
		}
		next = s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
	}
}
