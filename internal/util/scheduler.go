package util

import (
	"container/heap"
	"time"
)

// schedEvent represents a scheduled unit.
// index is required for heap.Fix + O(log n) removals.
type schedEvent struct {
	id    int64
	when  time.Time
	index int
}

// Scheduler is a min-heap of (id, deadline) pairs ordered by deadline. It
// backs blocking-waiter timeouts: the server loop's timer task repeatedly
// peeks the soonest deadline and resolves it once it elapses, without
// scanning every waiter on every tick.
type Scheduler struct {
	h eventHeap
	// id → event, enables O(log n) selective removal (e.g. a waiter
	// resolved by a producer signal before its deadline).
	entries map[int64]*schedEvent
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	h := eventHeap{}
	heap.Init(&h)
	return &Scheduler{
		h:       h,
		entries: make(map[int64]*schedEvent),
	}
}

// Push (re)schedules id for when. A prior pending entry for id is replaced.
func (s *Scheduler) Push(id int64, when time.Time) {
	if old, ok := s.entries[id]; ok {
		heap.Remove(&s.h, old.index)
		delete(s.entries, id)
	}

	ev := &schedEvent{id: id, when: when}
	s.entries[id] = ev
	heap.Push(&s.h, ev)
}

// Next returns the soonest pending event without removing it.
func (s *Scheduler) Next() (id int64, when time.Time, ok bool) {
	if len(s.h) == 0 {
		return 0, time.Time{}, false
	}
	ev := s.h[0]
	return ev.id, ev.when, true
}

// Pop removes the head event unconditionally.
func (s *Scheduler) Pop() {
	if len(s.h) == 0 {
		return
	}
	ev := heap.Pop(&s.h).(*schedEvent)
	delete(s.entries, ev.id)
}

// Remove deletes the pending event for id, if any.
func (s *Scheduler) Remove(id int64) {
	ev, ok := s.entries[id]
	if !ok {
		return
	}
	heap.Remove(&s.h, ev.index)
	delete(s.entries, id)
}

// Len reports the number of pending events.
func (s *Scheduler) Len() int { return len(s.h) }

// --- heap internals ----------------------------------------------------------

// eventHeap is a min-heap ordered by event.when.
type eventHeap []*schedEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	return h[i].when.Before(h[j].when)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*schedEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1 // mark as removed
	*h = old[:n-1]
	return ev
}
