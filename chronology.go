package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Chronology owns a pool of timer slots (free-list), a deadline index,
// and a FIFO of deferred functions. A Reactor owns exactly one
// Chronology; the thread pool's other components never call back into
// it -- the relationship is strictly one-way, with the Reactor draining
// the Chronology each cycle.
type Chronology struct {
	mu   sync.Mutex
	slab []*timerSlot
	free []int
	heap *deadlineHeap

	deferredMu sync.Mutex
	deferred   *deferredQueue

	// earliestDeadlineNanos and deferredEmpty are atomic hints allowing
	// a driver goroutine to decide its poll timeout, and whether to
	// skip the deferred-drain step entirely, without taking mu on the
	// fast path.
	earliestDeadlineNanos atomic.Int64 // 0 means "no scheduled timer"
	deferredEmpty         atomic.Bool
}

// NewChronology returns an empty Chronology.
func NewChronology() *Chronology {
	c := &Chronology{
		heap:     newDeadlineHeap(),
		deferred: newDeferredQueue(),
	}
	c.deferredEmpty.Store(true)
	return c
}

// NewTimer allocates a Timer in the Waiting state from the slab's
// free-list, growing the slab if no free slot is available.
func (c *Chronology) NewTimer(opts TimerOptions) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var idx int
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
		slot := c.slab[idx]
		slot.opts = opts
		slot.state = Waiting
		slot.heapIdx = -1
	} else {
		idx = len(c.slab)
		c.slab = append(c.slab, &timerSlot{opts: opts, state: Waiting, heapIdx: -1, inUse: true})
	}
	slot := c.slab[idx]
	slot.inUse = true
	return Timer{chron: c, slotIndex: idx, generation: slot.generation}
}

func (c *Chronology) freeSlot(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.free = append(c.free, idx)
}

// refreshEarliestLocked updates the earliest-deadline atomic hint. The
// caller must hold c.mu.
func (c *Chronology) refreshEarliestLocked() {
	if e, ok := c.heap.peek(); ok {
		c.earliestDeadlineNanos.Store(e.deadline.UnixNano())
	} else {
		c.earliestDeadlineNanos.Store(0)
	}
}

// EarliestDeadline returns the nearest Scheduled timer's deadline,
// read from the atomic hint without taking the chronology mutex.
func (c *Chronology) EarliestDeadline() (time.Time, bool) {
	nanos := c.earliestDeadlineNanos.Load()
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// Execute appends fn to the deferred-function FIFO.
func (c *Chronology) Execute(fn func()) {
	c.deferredMu.Lock()
	c.deferred.Push(fn)
	c.deferredEmpty.Store(false)
	c.deferredMu.Unlock()
}

// MoveAndExecute atomically appends every function in seq (in order)
// followed by fn, then clears seq. seq is a caller-owned queue, letting
// a batch of callbacks be handed off for delivery without interleaving
// with anything else submitted to this chronology in between.
func (c *Chronology) MoveAndExecute(seq *Sequence, fn func()) {
	c.deferredMu.Lock()
	for {
		f, ok := seq.q.Pop()
		if !ok {
			break
		}
		c.deferred.Push(f)
	}
	if fn != nil {
		c.deferred.Push(fn)
	}
	c.deferredEmpty.Store(c.deferred.Empty())
	c.deferredMu.Unlock()
}

// HasDeferred reports, via the atomic hint, whether any deferred
// function is pending.
func (c *Chronology) HasDeferred() bool {
	return !c.deferredEmpty.Load()
}

// Sequence is a caller-owned FIFO of functions for use with
// [Chronology.MoveAndExecute].
type Sequence struct {
	q *deferredQueue
}

// NewSequence returns an empty Sequence.
func NewSequence() *Sequence {
	return &Sequence{q: newDeferredQueue()}
}

// Push appends fn to the sequence.
func (s *Sequence) Push(fn func()) { s.q.Push(fn) }

// Len reports the number of pending functions.
func (s *Sequence) Len() int { return s.q.Len() }

// Announce drains deferred functions (all of them, or just one if
// single), then repeatedly, while the earliest deadline is <= now, pops
// the earliest timer and delivers it. It returns the number of deferred
// functions run and the number of timers fired.
//
// Cancel-versus-deliver race, resolved in favor of delivery: the timer
// is popped from the deadline index and its callback captured under c.mu
// in a single
// critical section, the same section a concurrent Cancel would need to
// acquire to remove the very same entry. Whichever goroutine gets there
// first wins outright: if Announce wins, the Deadline callback is
// delivered even though a Cancel call is concurrently in flight; if
// Cancel wins, Announce simply does not find the entry and the
// CancelledEvent callback (if enabled) fires instead. There is no window
// in which neither or both fire.
func (c *Chronology) Announce(single bool, now time.Time) (deferredRun, timersFired int) {
	c.deferredMu.Lock()
	if single {
		if c.deferred.DrainOne() {
			deferredRun = 1
		}
	} else {
		deferredRun = c.deferred.DrainAll()
	}
	c.deferredEmpty.Store(c.deferred.Empty())
	c.deferredMu.Unlock()

	for {
		fired, ok := c.fireEarliestIfDue(now)
		if !ok {
			break
		}
		timersFired++
		_ = fired
	}
	return deferredRun, timersFired
}

// fireEarliestIfDue pops and delivers the earliest timer if its deadline
// has passed, handling recurring re-scheduling (collapsing missed
// periods rather than replaying them) and one-shot auto-close.
func (c *Chronology) fireEarliestIfDue(now time.Time) (Timer, bool) {
	c.mu.Lock()
	entry, ok := c.heap.peek()
	if !ok || entry.deadline.After(now) {
		c.mu.Unlock()
		return Timer{}, false
	}
	entry, _ = c.heap.popEarliest()
	t := entry.timer
	scheduled := entry.deadline

	slot, err := t.slotLocked()
	if err != nil {
		// Timer was closed concurrently between peek and pop; nothing
		// to deliver.
		c.refreshEarliestLocked()
		c.mu.Unlock()
		return Timer{}, true
	}

	opts := slot.opts
	period := slot.period
	oneShot := opts.OneShot
	var closeAfter bool

	if period > 0 {
		next := scheduled.Add(period)
		for !next.After(now) {
			next = next.Add(period)
		}
		slot.deadline = next
		c.heap.push(t, next)
	} else {
		slot.state = Waiting
		slot.heapIdx = -1
		if oneShot {
			closeAfter = true
		}
	}
	c.refreshEarliestLocked()
	c.mu.Unlock()

	t.deliver(opts, Deadline, scheduled)
	if closeAfter {
		_ = t.Close()
	}
	return t, true
}
