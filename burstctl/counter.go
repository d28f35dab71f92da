// Package burstctl implements sliding-window rate accounting for order
// burst control: a bucketed ring counter, a two-mode governor built from a
// pair of counters, and a per-parent limiter that indexes counters through
// the concurrent swiss table.
package burstctl

import "time"

// Counter is a sliding-window event counter. The window is divided into
// buckets of resolution ceil(window/buckets) nanoseconds; buckets age out
// lazily as timestamps advance. total always equals the sum of the live
// buckets.
//
// Not safe for concurrent use: each counter belongs to one owner thread.
type Counter struct {
	buckets    []uint64
	resolution int64
	limit      uint64
	lastTick   int64
	total      uint64
}

// NewCounter builds a counter over window with the given bucket count and
// admission limit.
func NewCounter(window time.Duration, buckets int, limit uint64) *Counter {
	if buckets <= 0 {
		panic("burstctl: bucket count must be > 0")
	}
	w := int64(window)
	res := (w + int64(buckets) - 1) / int64(buckets)
	if res < 1 {
		res = 1
	}
	return &Counter{
		buckets:    make([]uint64, buckets),
		resolution: res,
		limit:      limit,
	}
}

// Increment accounts one event at timestamp t (ns) and reports whether it
// was admitted.
//
//	false: the window already holds limit events, or t is stale (older
//	       than the bucket span relative to the newest seen tick; stale
//	       events are dropped without counting).
//	true:  the event was counted into its bucket.
//
// A past timestamp still inside the bucket span is credited to its bucket
// without moving the window head.
func (c *Counter) Increment(t int64) bool {
	tick := t / c.resolution
	n := int64(len(c.buckets))

	switch {
	case tick < c.lastTick:
		if c.lastTick-tick >= n {
			return false // BadTimestamp: beyond the bucket span
		}
		// late event inside the window: credit without advancing
	case tick > c.lastTick:
		c.roll(tick)
	}

	if c.total >= c.limit {
		return false
	}
	c.buckets[tick%n]++
	c.total++
	return true
}

// charge counts an event at t regardless of the limit. The governor uses
// it in cooldown, where the counter measures traffic rate rather than
// gating admission. Stale timestamps are still dropped.
func (c *Counter) charge(t int64) {
	tick := t / c.resolution
	n := int64(len(c.buckets))

	switch {
	case tick < c.lastTick:
		if c.lastTick-tick >= n {
			return
		}
	case tick > c.lastTick:
		c.roll(tick)
	}
	c.buckets[tick%n]++
	c.total++
}

// Advance ages the window out to timestamp t without counting an event.
// The governor uses it to read an up-to-date total.
func (c *Counter) Advance(t int64) {
	tick := t / c.resolution
	if tick > c.lastTick {
		c.roll(tick)
	}
}

// roll clears every bucket between lastTick and tick and moves the head.
func (c *Counter) roll(tick int64) {
	n := int64(len(c.buckets))
	diff := tick - c.lastTick

	if diff >= n {
		for i := range c.buckets {
			c.buckets[i] = 0
		}
		c.total = 0
	} else {
		for i := int64(1); i <= diff; i++ {
			idx := (c.lastTick + i) % n
			c.total -= c.buckets[idx]
			c.buckets[idx] = 0
		}
	}
	c.lastTick = tick
}

// Value returns the in-window event count.
func (c *Counter) Value() uint64 { return c.total }

// Limit returns the admission limit.
func (c *Counter) Limit() uint64 { return c.limit }

// Reset clears all history.
func (c *Counter) Reset() {
	for i := range c.buckets {
		c.buckets[i] = 0
	}
	c.total = 0
	c.lastTick = 0
}
