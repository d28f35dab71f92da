// Package timerq provides the per-dispatcher timer queue.
//
// Timers are one-shot or recurring callbacks ordered by absolute deadline
// (nanoseconds). The queue wraps a fixed-capacity pqueue heap; scheduling
// fails when the heap is full, and the dispatcher treats that as fatal.
// Poll fires every timer whose deadline has passed, on the calling thread:
// callbacks run on the owning dispatcher and must not block.
package timerq

import (
	"math"
	"time"

	"main/pqueue"
)

// Kind selects one-shot or recurring behavior.
type Kind uint8

const (
	OneShot Kind = 1
	// Recurring timers re-arm with their original delay after each fire.
	Recurring Kind = 2
)

type event struct {
	kind     Kind
	when     int64 // absolute deadline, ns
	wait     time.Duration
	callback func()
}

// Queue is a bounded deadline-ordered timer queue. Not safe for concurrent
// use; owned by exactly one dispatcher thread.
type Queue struct {
	heap *pqueue.Queue[event]
	now  func() int64
}

// New builds a queue of at most capacity pending timers using the wall
// clock.
func New(capacity int) *Queue {
	return NewWithClock(capacity, func() int64 { return time.Now().UnixNano() })
}

// NewWithClock injects the time source. Tests drive it manually.
func NewWithClock(capacity int, now func() int64) *Queue {
	return &Queue{
		// earliest deadline on top
		heap: pqueue.New[event](capacity, func(a, b event) bool { return a.when > b.when }),
		now:  now,
	}
}

// ScheduleAt arms a one-shot timer at an absolute deadline.
// Returns false when the queue is full.
func (q *Queue) ScheduleAt(when time.Time, callback func()) bool {
	deadline := when.UnixNano()
	return q.heap.Push(event{
		kind:     OneShot,
		when:     deadline,
		wait:     time.Duration(deadline - q.now()),
		callback: callback,
	})
}

// ScheduleAfter arms a timer relative to now. Recurring timers keep the
// same delay on every re-arm. Returns false when the queue is full.
func (q *Queue) ScheduleAfter(kind Kind, wait time.Duration, callback func()) bool {
	return q.heap.Push(event{
		kind:     kind,
		when:     q.now() + int64(wait),
		wait:     wait,
		callback: callback,
	})
}

// Poll fires every timer whose deadline is at or before now and returns the
// number fired. The event is removed before its callback runs, so a
// callback may schedule into the freed slot; a recurring timer re-arms
// afterwards against the post-callback clock.
func (q *Queue) Poll() int {
	fired := 0
	now := q.now()

	for !q.heap.Empty() && q.heap.Top().when <= now {
		ev := q.heap.Top()
		q.heap.Pop()
		ev.callback()
		fired++

		if ev.kind == Recurring {
			ev.when = q.now() + int64(ev.wait)
			q.heap.Push(ev)
		}
	}
	return fired
}

// Next returns the earliest pending deadline, or math.MaxInt64 when none.
func (q *Queue) Next() int64 {
	if q.heap.Empty() {
		return math.MaxInt64
	}
	return q.heap.Top().when
}

// Empty reports whether any timers are pending.
func (q *Queue) Empty() bool { return q.heap.Empty() }

// Size returns the number of pending timers.
func (q *Queue) Size() int { return q.heap.Size() }

// Clear drops all pending timers.
func (q *Queue) Clear() { q.heap.Clear() }
