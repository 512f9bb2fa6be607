package util

import "sync"

// SlotPool is a dynamically adjustable semaphore with explicit ownership.
// Each acquisition requires a unique external identifier. This enables
// accountable resource tracking and prevents silent leakage under load.
//
// It backs the server's client-admission gate: capacity is `maxclients`,
// and the owner id is the accepted connection's client id, so a connection
// that forgets to release (a bug, not a client behavior) is still
// attributable.
type SlotPool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	maxCap     int64
	usage      int64
	acquiredBy map[int64]struct{} // active ownership table
}

// NewSlotPool initializes the pool with a given capacity. Capacity 0
// admits nobody (TryAcquire always fails); Config validation rejects a
// maxclients <= 0, so the server's gate always has a positive capacity.
func NewSlotPool(max int64) *SlotPool {
	s := &SlotPool{
		maxCap:     max,
		acquiredBy: make(map[int64]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire blocks until usage < capacity and registers id as the owner.
// Duplicate acquisition by the same id is a protocol violation.
func (s *SlotPool) Acquire(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[id]; holds {
		panic("SlotPool: id already holds a slot")
	}

	for s.usage >= s.maxCap {
		s.cond.Wait()
	}

	s.usage++
	s.acquiredBy[id] = struct{}{}
}

// TryAcquire attempts a non-blocking acquire. On success, id becomes the
// owner. Used at connection-accept time: the accept loop must never block
// on a full server, it rejects instead.
func (s *SlotPool) TryAcquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[id]; holds {
		panic("SlotPool: id already holds a slot")
	}

	if s.usage >= s.maxCap {
		return false
	}

	s.usage++
	s.acquiredBy[id] = struct{}{}
	return true
}

// Release frees the slot owned by id. Releasing an id that does not own a
// slot is an invariant violation.
func (s *SlotPool) Release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[id]; !holds {
		panic("SlotPool: release for non-owner id")
	}

	delete(s.acquiredBy, id)
	s.usage--
	s.cond.Signal()
}

// ListAcquired returns a snapshot of all current owners (the connected
// client ids), used by the admin HTTP clients endpoint.
func (s *SlotPool) ListAcquired() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.acquiredBy))
	for id := range s.acquiredBy {
		out = append(out, id)
	}
	return out
}

// UpdateLimit adjusts the configured capacity (CONFIG SET maxclients).
// Negative values are clamped to zero.
func (s *SlotPool) UpdateLimit(newCap int64) {
	if newCap < 0 {
		newCap = 0
	}

	s.mu.Lock()
	s.maxCap = newCap
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Capacity returns the configured concurrency limit.
func (s *SlotPool) Capacity() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxCap
}

// Current returns the number of active acquired slots.
func (s *SlotPool) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
