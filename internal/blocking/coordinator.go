// Package blocking implements the blocking coordinator (§4.5): per-key
// FIFO wait queues for BLPOP/BRPOP/BZPOPMIN/BZPOPMAX (and, per
// SPEC_FULL's Open Question resolution, XREAD BLOCK), woken by the
// producing write command after it commits.
package blocking

import (
	"sync"
	"time"

	"github.com/example/redisd/internal/util"
	"github.com/example/redisd/internal/values"
)

// Result is delivered to a waiter exactly once, either naming the key
// that became ready or reporting a timeout.
type Result struct {
	Key      string
	TimedOut bool
}

// Waiter is one client suspended on one or more keys. Across multiple
// watched keys, the first to signal wins and the waiter is removed from
// the others (§4.5 Ordering).
type Waiter struct {
	id       int64
	clientID int64
	db       int
	keys     []string
	kind     values.Kind
	done     chan Result
	resolved bool
}

// Done returns the channel the caller blocks on — the suspension point
// described in §5(c).
func (w *Waiter) Done() <-chan Result { return w.done }

type waitKey struct {
	db  int
	key string
}

// Coordinator holds every pending waiter. A single mutex guards all
// queues; per-key sharding is unnecessary at the scale this core targets
// and keeps the signal/dequeue pair trivially atomic (§4.5 Concurrency).
type Coordinator struct {
	mu      sync.Mutex
	queues  map[waitKey][]*Waiter
	waiters map[int64]*Waiter
	sched   *util.Scheduler
	ids     *util.IDAllocator
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		queues:  make(map[waitKey][]*Waiter),
		waiters: make(map[int64]*Waiter),
		sched:   util.NewScheduler(),
		ids:     util.NewIDAllocator(1 << 30),
	}
}

// Wait registers a waiter across keys (db-scoped) expecting kind, with
// an optional deadline (zero value means "block forever"). The returned
// Waiter's Done channel receives exactly one Result.
func (c *Coordinator) Wait(clientID int64, db int, keys []string, kind values.Kind, deadline time.Time) *Waiter {
	w := &Waiter{
		clientID: clientID,
		db:       db,
		keys:     append([]string(nil), keys...),
		kind:     kind,
		done:     make(chan Result, 1),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w.id = c.ids.Alloc()
	c.waiters[w.id] = w
	for _, k := range keys {
		wk := waitKey{db, k}
		c.queues[wk] = append(c.queues[wk], w)
	}
	if !deadline.IsZero() {
		c.sched.Push(w.id, deadline)
	}
	return w
}

// SignalKeyReady wakes waiters queued on (db,key) whose expected kind
// matches, in FIFO order, stopping once remaining() reports the key is
// empty (§4.5 protocol step 1). remaining may be nil if the caller
// doesn't want the early-stop behavior (then every matching waiter in
// the queue is resolved in one call).
func (c *Coordinator) SignalKeyReady(db int, key string, kind values.Kind, remaining func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wk := waitKey{db, key}
	queue := c.queues[wk]
	if len(queue) == 0 {
		return
	}

	var kept []*Waiter
	stop := false
	for _, w := range queue {
		if w.resolved {
			continue
		}
		if stop || w.kind != kind {
			kept = append(kept, w)
			continue
		}
		c.resolveLocked(w, Result{Key: key}, &wk)
		if remaining != nil && remaining() <= 0 {
			stop = true
		}
	}
	c.setQueueLocked(wk, kept)
}

// ExpireDeadlines resolves every waiter whose deadline is at or before
// now to a timeout. The server loop's timer task calls this every tick
// alongside active expiration (§4.8).
func (c *Coordinator) ExpireDeadlines(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		id, when, ok := c.sched.Next()
		if !ok || when.After(now) {
			return
		}
		c.sched.Pop()
		w, ok := c.waiters[id]
		if !ok {
			continue
		}
		c.resolveLocked(w, Result{TimedOut: true}, nil)
	}
}

// Cancel aborts a waiter without delivering a result to Done — used when
// the caller itself decides to stop waiting outside the normal
// signal/timeout paths (e.g. the calling goroutine's context was
// cancelled for an unrelated reason).
func (c *Coordinator) Cancel(w *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.resolved {
		return
	}
	w.resolved = true
	c.untrackLocked(w, nil)
}

// DisconnectClient removes every waiter belonging to clientID without
// sending on their Done channels, since the client is gone (§4.5
// protocol step 4).
func (c *Coordinator) DisconnectClient(clientID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.waiters {
		if w.clientID == clientID && !w.resolved {
			w.resolved = true
			c.untrackLocked(w, nil)
		}
	}
}

// resolveLocked marks w resolved, removes it from every queue and the
// scheduler, and delivers result. skip, when non-nil, names a key queue
// the caller is already rebuilding itself (SignalKeyReady iterates that
// queue's own backing array, so untrackLocked must not mutate it
// in place mid-iteration).
func (c *Coordinator) resolveLocked(w *Waiter, result Result, skip *waitKey) {
	w.resolved = true
	c.untrackLocked(w, skip)
	w.done <- result
}

// untrackLocked removes w from the waiters index, the scheduler, and
// every key queue other than skip.
func (c *Coordinator) untrackLocked(w *Waiter, skip *waitKey) {
	delete(c.waiters, w.id)
	c.sched.Remove(w.id)
	for _, k := range w.keys {
		wk := waitKey{w.db, k}
		if skip != nil && wk == *skip {
			continue
		}
		q := c.queues[wk]
		for i, x := range q {
			if x == w {
				q = append(q[:i], q[i+1:]...)
				break
			}
		}
		c.setQueueLocked(wk, q)
	}
}

func (c *Coordinator) setQueueLocked(wk waitKey, q []*Waiter) {
	if len(q) == 0 {
		delete(c.queues, wk)
		return
	}
	c.queues[wk] = q
}
