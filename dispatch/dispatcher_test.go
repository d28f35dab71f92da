// Package dispatch provides correctness tests for the worker loop: fan-out
// routing, lifecycle hooks, timers, overrun escalation, and panic
// containment.
package dispatch

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"main/ether"
	"main/timerq"
	"main/types"
)

type tick struct {
	Seq uint64
}

type quote struct {
	Px uint64
	Qt uint64
}

type wiring struct {
	e     *ether.Ether
	refT  ether.Ref[tick]
	refQ  ether.Ref[quote]
	prod  *ether.Cursor
	disp  *Dispatcher
}

func newWiring(t *testing.T, capacity int, traits Traits) *wiring {
	t.Helper()
	s := types.MustSchema(types.DescOf[tick]("tick"), types.DescOf[quote]("quote"))
	e := ether.New("TestFeed", s, capacity)
	if err := e.Initialize(ether.PrivateRegion(e.RequiredMemSize()), true); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	w := &wiring{
		e:    e,
		refT: types.MustRef[tick](s, "tick"),
		refQ: types.MustRef[quote](s, "quote"),
	}
	w.disp = New("TestDispatcher", e, -1, traits, nil, nil)
	w.prod = e.NewCursor()
	return w
}

func (w *wiring) sendTick(seq uint64) {
	m := ether.Alloc(w.prod, w.refT)
	m.Seq = seq
	ether.Commit(w.prod, w.refT, m)
}

func (w *wiring) sendQuote(px uint64) {
	m := ether.Alloc(w.prod, w.refQ)
	m.Px = px
	ether.Commit(w.prod, w.refQ, m)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// countingComponent tracks lifecycle hook invocations.
type countingComponent struct {
	begin    atomic.Int64
	end      atomic.Int64
	batchEnd atomic.Int64
}

func (c *countingComponent) ProcessBegin()    { c.begin.Add(1) }
func (c *countingComponent) ProcessEnd()      { c.end.Add(1) }
func (c *countingComponent) ProcessBatchEnd() { c.batchEnd.Add(1) }

// -----------------------------------------------------------------------------
// ░░ Subscription Fan-Out ░░
// -----------------------------------------------------------------------------

func TestRoutingHonorsSubscriptions(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})

	var ticksOnly, both atomic.Int64
	var lastQuote atomic.Uint64

	Subscribe(w.disp, w.refT, func(*tick) { ticksOnly.Add(1) })
	Subscribe(w.disp, w.refT, func(*tick) { both.Add(1) })
	Subscribe(w.disp, w.refQ, func(q *quote) {
		both.Add(1)
		lastQuote.Store(q.Px)
	})

	w.disp.Start()
	defer w.disp.Stop()

	w.sendTick(1)
	w.sendQuote(42)
	w.sendTick(2)

	waitFor(t, "deliveries", func() bool { return both.Load() == 3 })
	if ticksOnly.Load() != 2 {
		t.Fatalf("tick-only handler saw %d, want 2", ticksOnly.Load())
	}
	if lastQuote.Load() != 42 {
		t.Fatalf("quote payload = %d, want 42", lastQuote.Load())
	}
}

func TestUnsubscribedTypeIsSkipped(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})

	var ticks atomic.Int64
	Subscribe(w.disp, w.refT, func(*tick) { ticks.Add(1) })
	// nobody subscribes to quotes

	w.disp.Start()
	defer w.disp.Stop()

	w.sendQuote(1)
	w.sendTick(1)

	waitFor(t, "tick delivery", func() bool { return ticks.Load() == 1 })
	// the quote was consumed (cursor advanced past it) without a handler
	if w.disp.Err() != nil {
		t.Fatalf("dispatcher failed: %v", w.disp.Err())
	}
}

func TestHandlerMayEmitOntoSameEther(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})

	var quotes atomic.Int64
	Subscribe(w.disp, w.refT, func(tk *tick) {
		q := Alloc(w.disp, w.refQ)
		q.Px = tk.Seq * 10
		Commit(w.disp, w.refQ, q)
	})
	Subscribe(w.disp, w.refQ, func(q *quote) { quotes.Add(1) })

	w.disp.Start()
	defer w.disp.Stop()

	w.sendTick(7)
	waitFor(t, "echoed quote", func() bool { return quotes.Load() == 1 })
}

// -----------------------------------------------------------------------------
// ░░ Lifecycle Hooks ░░
// -----------------------------------------------------------------------------

func TestLifecycleHooks(t *testing.T) {
	w := newWiring(t, 64, Traits{BatchEnd: true, NonCritical: true})
	c := &countingComponent{}
	w.disp.AddComponent(c)

	w.disp.Start()
	waitFor(t, "iterations", func() bool { return c.end.Load() > 10 })
	w.disp.Stop()

	if c.begin.Load() != 1 {
		t.Fatalf("ProcessBegin ran %d times, want 1", c.begin.Load())
	}
	if c.batchEnd.Load() == 0 {
		t.Fatal("ProcessBatchEnd never ran with the BatchEnd trait")
	}
}

func TestBatchEndTraitDisabled(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})
	c := &countingComponent{}
	w.disp.AddComponent(c)

	w.disp.Start()
	waitFor(t, "iterations", func() bool { return c.end.Load() > 10 })
	w.disp.Stop()

	if c.batchEnd.Load() != 0 {
		t.Fatalf("ProcessBatchEnd ran %d times without the trait", c.batchEnd.Load())
	}
}

// -----------------------------------------------------------------------------
// ░░ Timers ░░
// -----------------------------------------------------------------------------

func TestOneShotTimerFiresOnWorker(t *testing.T) {
	w := newWiring(t, 64, Traits{Timer: true, NonCritical: true})
	var fired atomic.Int64
	w.disp.SetTimerAfter(timerq.OneShot, 5*time.Millisecond, func() { fired.Add(1) })

	w.disp.Start()
	defer w.disp.Stop()

	waitFor(t, "timer fire", func() bool { return fired.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("one-shot fired %d times", fired.Load())
	}
}

func TestRecurringTimerKeepsFiring(t *testing.T) {
	w := newWiring(t, 64, Traits{Timer: true, NonCritical: true})
	var fired atomic.Int64
	w.disp.SetTimerAfter(timerq.Recurring, 2*time.Millisecond, func() { fired.Add(1) })

	w.disp.Start()
	defer w.disp.Stop()

	waitFor(t, "recurring fires", func() bool { return fired.Load() >= 3 })
}

// -----------------------------------------------------------------------------
// ░░ Readiness Interleaving ░░
// -----------------------------------------------------------------------------

type fakeReadiness struct{ polls atomic.Int64 }

func (f *fakeReadiness) Poll() int { f.polls.Add(1); return 0 }

func TestReadinessPolledEachIteration(t *testing.T) {
	w := newWiring(t, 64, Traits{Readiness: true, NonCritical: true})
	r := &fakeReadiness{}
	w.disp.SetReadiness(r)

	w.disp.Start()
	defer w.disp.Stop()

	waitFor(t, "readiness polls", func() bool { return r.polls.Load() > 10 })
}

// -----------------------------------------------------------------------------
// ░░ Failure Escalation ░░
// -----------------------------------------------------------------------------

func TestLapOverrunTerminatesLoop(t *testing.T) {
	w := newWiring(t, 8, Traits{NonCritical: true})
	Subscribe(w.disp, w.refT, func(*tick) {})

	// overrun the consumer before it ever runs
	for i := uint64(1); i <= 10; i++ {
		w.sendTick(i)
	}
	w.disp.Start()
	waitFor(t, "fatal overrun", func() bool { return w.disp.Err() != nil })
	w.disp.Stop()

	if !errors.Is(w.disp.Err(), ErrLapOverrun) {
		t.Fatalf("Err = %v, want ErrLapOverrun", w.disp.Err())
	}
}

func TestComponentPanicContained(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})
	Subscribe(w.disp, w.refT, func(*tick) { panic("component exploded") })

	w.disp.Start()
	w.sendTick(1)
	waitFor(t, "panic escalation", func() bool { return w.disp.Err() != nil })
	w.disp.Stop()

	if w.disp.Err() == nil {
		t.Fatal("panic must surface through Err")
	}
}

// -----------------------------------------------------------------------------
// ░░ Stop Semantics ░░
// -----------------------------------------------------------------------------

func TestStopIsIdempotent(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})
	w.disp.Start()
	w.disp.Stop()
	w.disp.Stop() // second stop must return immediately
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	w := newWiring(t, 64, Traits{NonCritical: true})
	w.disp.Stop()
}
