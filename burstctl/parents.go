package burstctl

import (
	"sync"
	"time"

	"main/swisstable"
)

// ParentLimiter throttles child orders per parent order. Each registered
// parent owns one windowed counter from a fixed pre-allocated pool; the
// concurrent swiss table maps parent id → counter so the hot path is one
// lookup plus one bucket bump.
//
// Registration and removal are cold-path operations guarded by a mutex
// (they touch the pool free list). AddChild requires that each parent's
// children are processed by a single owner thread; the counter itself is
// single-owner, mirroring the dispatcher model.
type ParentLimiter struct {
	index  *swisstable.MT[Counter]
	pool   []Counter
	window time.Duration
	limit  uint64

	mu   sync.Mutex
	free []*Counter
}

// NewParentLimiter sizes the limiter for at most maxParents concurrent
// parents (power of two, >= 16), each throttled to limit children per
// rolling window split into buckets.
func NewParentLimiter(window time.Duration, limit uint64, buckets, maxParents int) *ParentLimiter {
	l := &ParentLimiter{
		index:  swisstable.NewMT[Counter](maxParents, swisstable.Reject),
		pool:   make([]Counter, maxParents),
		window: window,
		limit:  limit,
		free:   make([]*Counter, 0, maxParents),
	}
	for i := range l.pool {
		l.pool[i] = *NewCounter(window, buckets, limit)
		l.free = append(l.free, &l.pool[i])
	}
	return l
}

// AddParent registers a parent order. Reports false when the parent is
// already registered or the pool is exhausted.
func (l *ParentLimiter) AddParent(parent uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index.Find(parent) != nil {
		return false
	}
	n := len(l.free)
	if n == 0 {
		return false
	}
	c := l.free[n-1]
	l.free = l.free[:n-1]
	c.Reset()

	if !l.index.Insert(parent, c) {
		l.free = append(l.free, c)
		return false
	}
	return true
}

// RemoveParent unregisters a parent and recycles its counter.
func (l *ParentLimiter) RemoveParent(parent uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.index.Find(parent)
	if c == nil {
		return
	}
	l.index.Erase(parent)
	l.free = append(l.free, c)
}

// AddChild accounts one child order under parent at timestamp t (ns).
// Reports false for unknown parents and for children beyond the window
// limit.
func (l *ParentLimiter) AddChild(parent uint64, t int64) bool {
	c := l.index.Find(parent)
	if c == nil {
		return false
	}
	return c.Increment(t)
}

// ChildCount returns the in-window child count for parent, zero if unknown.
func (l *ParentLimiter) ChildCount(parent uint64) uint64 {
	if c := l.index.Find(parent); c != nil {
		return c.Value()
	}
	return 0
}

// ParentCount returns the number of registered parents.
func (l *ParentLimiter) ParentCount() int { return l.index.Size() }
