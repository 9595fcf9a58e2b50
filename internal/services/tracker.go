package services

import "sync/atomic"

// ActiveAgentTracker bounds how many agent workers run concurrently.
// Acquire never blocks: if the fleet is at capacity the caller leaves the
// todo where it is and a later pickup pass retries.
type ActiveAgentTracker struct {
	active int64
	limit  int64
}

// NewActiveAgentTracker creates a tracker with the given concurrency cap
func NewActiveAgentTracker(limit int) *ActiveAgentTracker {
	if limit <= 0 {
		limit = 1
	}
	return &ActiveAgentTracker{limit: int64(limit)}
}

// TryAcquire claims one worker slot. Returns false when the fleet is full.
func (t *ActiveAgentTracker) TryAcquire() bool {
	for {
		cur := atomic.LoadInt64(&t.active)
		if cur >= t.limit {
			return false
		}
		if atomic.CompareAndSwapInt64(&t.active, cur, cur+1) {
			return true
		}
	}
}

// Release returns a worker slot. Callers must pair every successful
// TryAcquire with exactly one Release, normally via defer.
func (t *ActiveAgentTracker) Release() {
	for {
		cur := atomic.LoadInt64(&t.active)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&t.active, cur, cur-1) {
			return
		}
	}
}

// Active returns the current number of running workers
func (t *ActiveAgentTracker) Active() int {
	return int(atomic.LoadInt64(&t.active))
}

// Limit returns the configured concurrency cap
func (t *ActiveAgentTracker) Limit() int {
	return int(t.limit)
}
