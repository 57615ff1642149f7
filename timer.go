package reactor

import "time"

// TimerState is the Timer lifecycle state machine.
type TimerState uint8

const (
	// Waiting is the initial state; a Scheduled timer returns to it
	// after a successful cancel, or after firing with period 0 (unless
	// OneShot closes it). A recurring timer stays Scheduled across
	// firings.
	Waiting TimerState = iota
	Scheduled
	Closed
)

// TimerEventType distinguishes why a timer callback is being invoked.
type TimerEventType uint8

const (
	// Deadline fires when a scheduled deadline is reached.
	Deadline TimerEventType = iota
	// CancelledEvent fires once, if announcements for it are enabled,
	// when a Scheduled timer is cancelled.
	CancelledEvent
	// ClosedEvent fires once, if announcements for it are enabled, when
	// a timer transitions to Closed.
	ClosedEvent
)

// TimerOptions configure a Timer at creation; all fields are immutable
// for the timer's lifetime.
type TimerOptions struct {
	// OneShot timers auto-close after a firing scheduled with period 0.
	// Recurrence is set by the period passed to Schedule, not by this
	// flag: a timer with a positive period re-inserts itself at
	// previousDeadline + period after each firing and is not closed.
	OneShot bool
	// AnnounceCancelled requests a CancelledEvent callback when the
	// timer is cancelled while Scheduled.
	AnnounceCancelled bool
	// AnnounceClosed requests a ClosedEvent callback when the timer
	// transitions to Closed.
	AnnounceClosed bool
	// Strand, if non-nil, serializes this timer's callback invocations
	// against other work submitted to the same Strand.
	Strand *Strand
	// Authorization, if non-nil, is checked immediately before each
	// invocation; a revoked token silently skips the callback.
	Authorization *Authorization
	// Callback receives a TimerContext for every announced event.
	Callback func(TimerContext)
}

// TimerContext is passed to a Timer's callback on every announcement.
type TimerContext struct {
	ScheduledDeadline time.Time
	Now               time.Time
	Drift             time.Duration
	Type              TimerEventType
}

// timerSlot is the slab-allocated storage for one Timer. Slots are
// recycled through the Chronology's free-list rather than individually
// garbage collected, because one-shot timers (the dominant case in a
// reactor-driven workload) are created and destroyed at high frequency.
//
// Every field is guarded exclusively by the owning Chronology's mutex;
// a slot never has its own lock, which keeps the locking discipline to
// one mutex held at a time instead of a nested slot-then-heap order
// that would otherwise have to be proven deadlock-free by hand.
//
// A slot is addressed externally by (slotIndex, generation): reusing a
// slot bumps its generation, so a stale *Timer handle from a prior
// occupant fails every operation with Invalid instead of silently
// operating on someone else's timer.
type timerSlot struct {
	generation uint64
	inUse      bool

	opts     TimerOptions
	state    TimerState
	deadline time.Time
	period   time.Duration
	heapIdx  int // position in the chronology's deadline heap, -1 if not Scheduled
}

// Timer is a handle to a slab-allocated timer slot. The zero value is
// not usable; obtain a Timer via [Chronology.NewTimer].
type Timer struct {
	chron      *Chronology
	slotIndex  int
	generation uint64
}

// slotLocked returns the timer's slot. Callers must already hold
// t.chron.mu, and must verify the returned error before touching the
// slot.
func (t Timer) slotLocked() (*timerSlot, error) {
	slot := t.chron.slab[t.slotIndex]
	if !slot.inUse || slot.generation != t.generation {
		return nil, New(Invalid, "timer handle is stale or closed")
	}
	return slot, nil
}

// State reports the timer's current lifecycle state.
func (t Timer) State() (TimerState, error) {
	t.chron.mu.Lock()
	defer t.chron.mu.Unlock()
	slot, err := t.slotLocked()
	if err != nil {
		return Closed, err
	}
	return slot.state, nil
}

// Schedule transitions the timer to Scheduled with the given deadline
// and period (period == 0 means one-shot firing regardless of
// TimerOptions.OneShot, which only controls auto-close after firing).
// Scheduling an already-Scheduled timer re-keys its position in the
// deadline index; if announce has already popped this timer for firing
// when Schedule is called, the new deadline still takes effect for the
// timer's next firing. Fails with Invalid if the timer is Closed.
func (t Timer) Schedule(deadline time.Time, period time.Duration) error {
	t.chron.mu.Lock()
	defer t.chron.mu.Unlock()

	slot, err := t.slotLocked()
	if err != nil {
		return err
	}
	if slot.state == Closed {
		return New(Invalid, "cannot schedule a closed timer")
	}

	wasScheduled := slot.state == Scheduled
	slot.state = Scheduled
	slot.deadline = deadline
	slot.period = period

	if wasScheduled {
		t.chron.heap.fix(slot.heapIdx, deadline)
	} else {
		t.chron.heap.push(t, deadline)
	}
	t.chron.refreshEarliestLocked()
	return nil
}

// Cancel transitions a Scheduled timer back to Waiting and removes it
// from the deadline index, delivering a CancelledEvent callback if
// TimerOptions.AnnounceCancelled is set. Cancelling a Waiting timer is a
// no-op and returns nil (cancellation is idempotent). Returns a
// Cancelled error when a pending deadline was actually torn down, so a
// caller can distinguish "I interrupted a live schedule" from "there
// was nothing to cancel". Fails with Invalid if the timer is Closed.
func (t Timer) Cancel() error {
	return t.cancel(false)
}

func (t Timer) cancel(closing bool) error {
	t.chron.mu.Lock()
	slot, err := t.slotLocked()
	if err != nil {
		t.chron.mu.Unlock()
		if closing {
			return nil
		}
		return err
	}
	if slot.state == Closed {
		t.chron.mu.Unlock()
		if closing {
			return nil
		}
		return New(Invalid, "cannot cancel a closed timer")
	}
	if slot.state == Waiting {
		t.chron.mu.Unlock()
		return nil
	}

	opts := slot.opts
	scheduled := slot.deadline
	slot.state = Waiting
	t.chron.heap.remove(slot.heapIdx)
	slot.heapIdx = -1
	t.chron.refreshEarliestLocked()
	t.chron.mu.Unlock()

	if opts.AnnounceCancelled && !closing {
		t.deliver(opts, CancelledEvent, scheduled)
	}
	if closing {
		return nil
	}
	return New(Cancelled, "timer cancelled with a deadline pending")
}

// Close cancels any pending schedule and transitions the timer to the
// terminal Closed state, releasing its slab slot for reuse. Delivers a
// ClosedEvent callback if TimerOptions.AnnounceClosed is set. Closed is
// terminal: every operation on this handle after Close fails with
// Invalid.
func (t Timer) Close() error {
	t.chron.mu.Lock()
	slot, err := t.slotLocked()
	if err != nil {
		t.chron.mu.Unlock()
		return nil
	}
	if slot.state == Closed {
		t.chron.mu.Unlock()
		return nil
	}
	if slot.state == Scheduled {
		t.chron.heap.remove(slot.heapIdx)
		slot.heapIdx = -1
		t.chron.refreshEarliestLocked()
	}

	opts := slot.opts
	scheduled := slot.deadline
	slot.state = Closed
	slot.inUse = false
	slot.generation++
	t.chron.mu.Unlock()

	t.chron.freeSlot(t.slotIndex)

	if opts.AnnounceClosed {
		t.deliver(opts, ClosedEvent, scheduled)
	}
	return nil
}

// deliver invokes the timer's callback (respecting Strand and
// Authorization), reporting drift as the difference between the
// scheduled deadline and the observed time of invocation. Never called
// with the chronology mutex held.
func (t Timer) deliver(opts TimerOptions, typ TimerEventType, scheduled time.Time) {
	if opts.Callback == nil {
		return
	}
	if opts.Authorization != nil && opts.Authorization.Revoked() {
		return
	}
	now := time.Now()
	ctx := TimerContext{
		ScheduledDeadline: scheduled,
		Now:               now,
		Drift:             now.Sub(scheduled),
		Type:              typ,
	}
	run := func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic("timer", r)
			}
		}()
		opts.Callback(ctx)
	}
	opts.Strand.Run(run)
}
