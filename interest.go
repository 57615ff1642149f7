package reactor

// Trigger selects whether an [Interest] reports readiness once per
// state-change (edge) or continuously while a condition persists
// (level).
type Trigger uint8

const (
	// LevelTriggered re-fires while the condition persists. This is the
	// default, and the only mode that is safe to combine with one-shot
	// semantics across a thread pool without extra bookkeeping.
	LevelTriggered Trigger = iota
	// EdgeTriggered fires once per state transition; the caller must
	// drain the handle until it observes WouldBlock.
	EdgeTriggered
)

// Shot selects whether a readiness notification clears the interest
// (one-shot, requiring the caller to re-show it) or leaves it armed
// (persistent).
type Shot uint8

const (
	// Persistent leaves the interest armed after each notification.
	Persistent Shot = iota
	// OneShot clears the interest mask after the OS delivers a readiness
	// event, until the caller re-shows it. Required for safe
	// multi-threaded dispatch when several driver goroutines share a
	// reactor.
	OneShot
)

// Interest is the per-handle subscription state the [Reactor] uses to
// program the OS poller. An Interest whose WantReadable and WantWritable
// are both false may still be retained: it distinguishes "attached with
// no interest" from "not attached."
type Interest struct {
	Handle       Handle
	WantReadable bool
	WantWritable bool
	Trigger      Trigger
	Shot         Shot
}

// Empty reports whether neither direction is wanted.
func (i Interest) Empty() bool { return !i.WantReadable && !i.WantWritable }

// InterestSet is a mapping from handle to [Interest]. All mutation must
// happen under the owning reactor's internal mutex or on a driver
// goroutine; InterestSet itself performs no locking.
type InterestSet struct {
	entries map[Handle]*Interest
	order   []Handle // insertion order, for deterministic iteration in tests
}

// NewInterestSet returns an empty InterestSet.
func NewInterestSet() *InterestSet {
	return &InterestSet{entries: make(map[Handle]*Interest)}
}

// Attach inserts h with no interest. Fails with [Invalid] if h is
// already present.
func (s *InterestSet) Attach(h Handle) error {
	if _, ok := s.entries[h]; ok {
		return New(Invalid, "handle already attached")
	}
	s.entries[h] = &Interest{Handle: h}
	s.order = append(s.order, h)
	return nil
}

// Detach removes h. Fails with [Invalid] if h is absent. Succeeds even
// if interest was non-empty; the reactor is responsible for also
// removing any OS-level registration.
func (s *InterestSet) Detach(h Handle) error {
	if _, ok := s.entries[h]; !ok {
		return New(Invalid, "handle not attached")
	}
	delete(s.entries, h)
	for i, oh := range s.order {
		if oh == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Contains reports whether h is attached.
func (s *InterestSet) Contains(h Handle) bool {
	_, ok := s.entries[h]
	return ok
}

// Get returns a copy of the Interest record for h.
func (s *InterestSet) Get(h Handle) (Interest, bool) {
	i, ok := s.entries[h]
	if !ok {
		return Interest{}, false
	}
	return *i, true
}

// showHide applies want to the given direction's flag, idempotently.
// Fails with [Invalid] if h is not attached.
func (s *InterestSet) showHide(h Handle, writable, want bool) error {
	i, ok := s.entries[h]
	if !ok {
		return New(Invalid, "handle not attached")
	}
	if writable {
		i.WantWritable = want
	} else {
		i.WantReadable = want
	}
	return nil
}

// ShowReadable sets WantReadable. Idempotent: showing an already-shown
// direction is a no-op observably equivalent to the first show.
func (s *InterestSet) ShowReadable(h Handle) error { return s.showHide(h, false, true) }

// HideReadable clears WantReadable.
func (s *InterestSet) HideReadable(h Handle) error { return s.showHide(h, false, false) }

// ShowWritable sets WantWritable.
func (s *InterestSet) ShowWritable(h Handle) error { return s.showHide(h, true, true) }

// HideWritable clears WantWritable.
func (s *InterestSet) HideWritable(h Handle) error { return s.showHide(h, true, false) }

// SetTrigger updates the trigger mode for h. Fails with [Invalid] if h
// is not attached.
func (s *InterestSet) SetTrigger(h Handle, t Trigger) error {
	i, ok := s.entries[h]
	if !ok {
		return New(Invalid, "handle not attached")
	}
	i.Trigger = t
	return nil
}

// SetShot updates the shot mode for h. Fails with [Invalid] if h is not
// attached.
func (s *InterestSet) SetShot(h Handle, shot Shot) error {
	i, ok := s.entries[h]
	if !ok {
		return New(Invalid, "handle not attached")
	}
	i.Shot = shot
	return nil
}

// Len reports the number of attached handles.
func (s *InterestSet) Len() int { return len(s.order) }

// Range calls fn for each attached handle in attach order. Range stops
// early if fn returns false.
func (s *InterestSet) Range(fn func(Interest) bool) {
	for _, h := range s.order {
		if !fn(*s.entries[h]) {
			return
		}
	}
}
