package util

import (
	"fmt"
	"sync"
)

// IDAllocator hands out small integer handles from a bounded, wrap-around
// space, skipping handles still in use. It backs short-lived identifiers
// (the blocking coordinator's waiter handles) where values are reused as
// soon as they're released rather than growing forever.
type IDAllocator struct {
	mu    sync.Mutex
	next  int64
	inUse map[int64]struct{}
	max   int64
}

// NewIDAllocator returns an allocator over the handle range [1, max].
func NewIDAllocator(max int64) *IDAllocator {
	return &IDAllocator{
		next:  1,
		max:   max,
		inUse: make(map[int64]struct{}),
	}
}

// Alloc returns the next available handle, or panics if the space is
// exhausted (every handle in [1, max] currently held).
func (a *IDAllocator) Alloc() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.next

	for {
		id := a.next

		a.next++
		if a.next > a.max {
			a.next = 1
		}

		if _, held := a.inUse[id]; held {
			if a.next == start {
				panic(fmt.Sprintf("IDAllocator exhausted: 1..%d fully allocated", a.max))
			}
			continue
		}

		a.inUse[id] = struct{}{}
		return id
	}
}

// Release returns a handle to the free pool. No-op on an unheld handle.
func (a *IDAllocator) Release(id int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, id)
}
