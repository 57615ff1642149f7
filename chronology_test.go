package reactor

import (
	"testing"
	"time"
)

func TestChronologyNewTimerReusesFreedSlots(t *testing.T) {
	c := NewChronology()
	a := c.NewTimer(TimerOptions{})
	_ = a.Close()

	b := c.NewTimer(TimerOptions{})
	if a.slotIndex != b.slotIndex {
		t.Errorf("slotIndex = %d, want reuse of freed slot %d", b.slotIndex, a.slotIndex)
	}
	if a.generation == b.generation {
		t.Error("reused slot should have a bumped generation")
	}
}

func TestChronologyStaleHandleFailsAfterReuse(t *testing.T) {
	c := NewChronology()
	a := c.NewTimer(TimerOptions{})
	_ = a.Close()
	_ = c.NewTimer(TimerOptions{}) // reuses a's slot

	if err := a.Schedule(time.Now(), 0); err == nil {
		t.Error("stale handle should fail after its slot was reused")
	}
}

func TestChronologyEarliestDeadline(t *testing.T) {
	c := NewChronology()
	if _, ok := c.EarliestDeadline(); ok {
		t.Error("EarliestDeadline should report false on an empty chronology")
	}

	later := time.Now().Add(time.Hour)
	sooner := time.Now().Add(time.Minute)
	a := c.NewTimer(TimerOptions{})
	b := c.NewTimer(TimerOptions{})
	_ = a.Schedule(later, 0)
	_ = b.Schedule(sooner, 0)

	dl, ok := c.EarliestDeadline()
	if !ok {
		t.Fatal("EarliestDeadline should report true with two scheduled timers")
	}
	if !dl.Equal(sooner) {
		t.Errorf("EarliestDeadline = %v, want %v (the sooner one)", dl, sooner)
	}
}

func TestChronologyExecuteAndAnnounce(t *testing.T) {
	c := NewChronology()
	var ran []int
	c.Execute(func() { ran = append(ran, 1) })
	c.Execute(func() { ran = append(ran, 2) })

	if !c.HasDeferred() {
		t.Error("HasDeferred() = false after Execute")
	}

	deferredRun, timersFired := c.Announce(false, time.Now())
	if deferredRun != 2 {
		t.Errorf("deferredRun = %d, want 2", deferredRun)
	}
	if timersFired != 0 {
		t.Errorf("timersFired = %d, want 0", timersFired)
	}
	if len(ran) != 2 || ran[0] != 1 || ran[1] != 2 {
		t.Errorf("ran = %v, want [1 2] (FIFO order)", ran)
	}
	if c.HasDeferred() {
		t.Error("HasDeferred() = true after draining all")
	}
}

func TestChronologyAnnounceSingle(t *testing.T) {
	c := NewChronology()
	var ran []int
	c.Execute(func() { ran = append(ran, 1) })
	c.Execute(func() { ran = append(ran, 2) })

	deferredRun, _ := c.Announce(true, time.Now())
	if deferredRun != 1 {
		t.Errorf("deferredRun = %d, want 1", deferredRun)
	}
	if len(ran) != 1 || ran[0] != 1 {
		t.Errorf("ran = %v, want [1]", ran)
	}
	if !c.HasDeferred() {
		t.Error("HasDeferred() = false, want true (one function still queued)")
	}
}

func TestChronologyMoveAndExecute(t *testing.T) {
	c := NewChronology()
	seq := NewSequence()
	var ran []int
	seq.Push(func() { ran = append(ran, 1) })
	seq.Push(func() { ran = append(ran, 2) })
	if seq.Len() != 2 {
		t.Fatalf("seq.Len() = %d, want 2", seq.Len())
	}

	c.MoveAndExecute(seq, func() { ran = append(ran, 3) })
	if seq.Len() != 0 {
		t.Errorf("seq.Len() after MoveAndExecute = %d, want 0", seq.Len())
	}

	c.Announce(false, time.Now())
	want := []int{1, 2, 3}
	if len(ran) != len(want) {
		t.Fatalf("ran = %v, want %v", ran, want)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("ran[%d] = %d, want %d", i, ran[i], want[i])
		}
	}
}

func TestChronologyAnnounceFiresDueTimer(t *testing.T) {
	c := NewChronology()
	fired := make(chan TimerContext, 1)
	timer := c.NewTimer(TimerOptions{
		OneShot:  true,
		Callback: func(ctx TimerContext) { fired <- ctx },
	})
	past := time.Now().Add(-time.Millisecond)
	if err := timer.Schedule(past, 0); err != nil {
		t.Fatalf("Schedule error: %v", err)
	}

	_, timersFired := c.Announce(false, time.Now())
	if timersFired != 1 {
		t.Fatalf("timersFired = %d, want 1", timersFired)
	}

	select {
	case ctx := <-fired:
		if ctx.Type != Deadline {
			t.Errorf("ctx.Type = %v, want Deadline", ctx.Type)
		}
	default:
		t.Fatal("callback was not invoked")
	}

	state, err := timer.State()
	if err == nil {
		t.Errorf("expected stale handle after auto-close, state=%v", state)
	}
}

func TestChronologyAnnounceDoesNotFireFutureTimer(t *testing.T) {
	c := NewChronology()
	var fired bool
	timer := c.NewTimer(TimerOptions{Callback: func(TimerContext) { fired = true }})
	_ = timer.Schedule(time.Now().Add(time.Hour), 0)

	_, timersFired := c.Announce(false, time.Now())
	if timersFired != 0 {
		t.Errorf("timersFired = %d, want 0", timersFired)
	}
	if fired {
		t.Error("future timer should not have fired")
	}
}

func TestChronologyRecurringTimerReschedules(t *testing.T) {
	c := NewChronology()
	var count int
	timer := c.NewTimer(TimerOptions{Callback: func(TimerContext) { count++ }})
	past := time.Now().Add(-10 * time.Millisecond)
	if err := timer.Schedule(past, 5*time.Millisecond); err != nil {
		t.Fatalf("Schedule error: %v", err)
	}

	now := time.Now()
	c.Announce(false, now)
	if count != 1 {
		t.Fatalf("count = %d after first announce, want 1", count)
	}

	state, err := timer.State()
	if err != nil {
		t.Fatalf("State error after recurring fire: %v", err)
	}
	if state != Scheduled {
		t.Errorf("state = %v, want Scheduled (recurring timer re-arms)", state)
	}

	dl, ok := c.EarliestDeadline()
	if !ok || !dl.After(now) {
		t.Errorf("recurring timer's next deadline = %v, want something after %v", dl, now)
	}
}
