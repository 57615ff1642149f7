package reactor

import (
	"container/heap"
	"time"
)

// deadlineEntry is one element of the deadline index: a Timer handle
// plus the deadline it is currently keyed by. Ties between equal
// deadlines break by insertion order, via seq.
type deadlineEntry struct {
	timer    Timer
	deadline time.Time
	seq      uint64
}

// deadlineHeap is the Chronology's deadline index: an index-tracking
// binary min-heap over container/heap.Interface, each entry's position
// mirrored back into its timerSlot.heapIdx so an arbitrary Scheduled
// timer can be removed or re-keyed in O(log n) without a linear scan.
// See DESIGN.md for the rationale behind choosing an indexed heap here.
type deadlineHeap struct {
	entries []*deadlineEntry
	nextSeq uint64
}

func newDeadlineHeap() *deadlineHeap {
	return &deadlineHeap{}
}

func (h *deadlineHeap) Len() int { return len(h.entries) }

func (h *deadlineHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.deadline.Equal(b.deadline) {
		return a.seq < b.seq
	}
	return a.deadline.Before(b.deadline)
}

func (h *deadlineHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.setIndex(h.entries[i], i)
	h.setIndex(h.entries[j], j)
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*deadlineEntry)
	h.entries = append(h.entries, e)
	h.setIndex(e, len(h.entries)-1)
}

func (h *deadlineHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries[n-1] = nil
	h.entries = h.entries[:n-1]
	h.setIndex(e, -1)
	return e
}

// setIndex mirrors an entry's heap position back into its owning slot.
// Callers of every exported method on deadlineHeap already hold the
// owning Chronology's mutex, which is the same mutex that guards
// timerSlot.heapIdx, so no additional locking is needed here.
func (h *deadlineHeap) setIndex(e *deadlineEntry, idx int) {
	slot := e.timer.chron.slab[e.timer.slotIndex]
	if slot.generation == e.timer.generation {
		slot.heapIdx = idx
	}
}

// push inserts t keyed by deadline. The entry's index is recorded in the
// timer's slot by Swap/Push, not returned.
func (h *deadlineHeap) push(t Timer, deadline time.Time) {
	h.nextSeq++
	heap.Push(h, &deadlineEntry{timer: t, deadline: deadline, seq: h.nextSeq})
}

// fix re-keys the entry currently at idx to the given deadline and
// restores heap order. idx must be a valid, current heap index (the
// caller holds it from timerSlot.heapIdx).
func (h *deadlineHeap) fix(idx int, deadline time.Time) {
	if idx < 0 || idx >= len(h.entries) {
		return
	}
	h.entries[idx].deadline = deadline
	heap.Fix(h, idx)
}

// remove deletes the entry at idx, if valid.
func (h *deadlineHeap) remove(idx int) {
	if idx < 0 || idx >= len(h.entries) {
		return
	}
	heap.Remove(h, idx)
}

// peek returns the earliest entry without removing it.
func (h *deadlineHeap) peek() (*deadlineEntry, bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	return h.entries[0], true
}

// popEarliest removes and returns the earliest entry.
func (h *deadlineHeap) popEarliest() (*deadlineEntry, bool) {
	if len(h.entries) == 0 {
		return nil, false
	}
	return heap.Pop(h).(*deadlineEntry), true
}
