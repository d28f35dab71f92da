// ============================================================================
// DISPATCHER — PINNED WORKER LOOP
// ============================================================================
//
// One dispatcher owns one OS thread, one consumer cursor on its ether, its
// components, a timer queue, and optionally an I/O readiness source. The
// loop is cooperative and never blocks: each iteration drains up to the
// adaptive batch size, polls readiness and timers non-blockingly, runs the
// batch-end and end hooks, and on an empty iteration either issues a pause
// hint (critical) or backs off toward the scheduler (non-critical).
//
// Threading model:
//   • Start spawns the worker, locks it to an OS thread, and pins it to
//     the requested core
//   • Components and timers are touched only from that thread
//   • Stop is cooperative: the flag is checked once per iteration and a
//     handler in progress is never preempted
//
// Failure model:
//   • Lap overrun on the cursor is unrecoverable: the loop terminates with
//     a diagnostic and the error is held for the host
//   • A panic out of user code terminates this dispatcher only; siblings
//     keep running

package dispatch

import (
	"errors"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"

	"main/constants"
	"main/debug"
	"main/ether"
	"main/timerq"
	"main/utils"
)

// ErrLapOverrun is held by a dispatcher whose cursor fell a full lap
// behind its producers.
var ErrLapOverrun = errors.New("dispatch: cursor lapped by producers")

// Traits enable optional per-iteration steps. They never change message
// semantics.
type Traits struct {
	Timer       bool // poll the timer queue each iteration
	BatchEnd    bool // run ProcessBatchEnd after each drained batch
	Readiness   bool // poll the readiness source each iteration
	NonCritical bool // yield instead of pause-hinting when idle
}

// maxBatch returns the trait-specific ceiling for the adaptive batch.
func (t Traits) maxBatch() int {
	switch {
	case t.Readiness || t.BatchEnd:
		return constants.MaxBatchReadiness
	case t.Timer:
		return constants.MaxBatchTimer
	default:
		return constants.MaxBatchDefault
	}
}

// Context is the attribute surface a dispatcher hands to its components.
type Context interface {
	Attribute(object, attribute, defval string) string
}

// EtherLookup resolves sibling ethers by name; the assembly implements it.
type EtherLookup interface {
	EtherByName(name string) *ether.Ether
}

// Dispatcher drives one pinned worker loop.
type Dispatcher struct {
	name   string
	ether  *ether.Ether
	cursor *ether.Cursor

	handlers   [][]func(*ether.Slot)
	components []Component

	timers    *timerq.Queue
	readiness ReadinessSource
	traits    Traits
	core      int

	ctx    Context
	lookup EtherLookup

	stopFlag atomix.Bool
	failed   atomix.Bool
	started  bool
	done     chan struct{}
	err      error
}

// New wires a dispatcher to e. core < 0 leaves the thread unpinned.
// e may be nil for a worker that runs only timers and readiness.
func New(name string, e *ether.Ether, core int, traits Traits, ctx Context, lookup EtherLookup) *Dispatcher {
	d := &Dispatcher{
		name:   name,
		ether:  e,
		traits: traits,
		core:   core,
		ctx:    ctx,
		lookup: lookup,
		done:   make(chan struct{}),
	}
	if e != nil {
		d.cursor = e.NewCursor()
	}
	if traits.Timer {
		d.timers = timerq.New(constants.TimerQueueDepth)
	}
	return d
}

// AddComponent hands ownership of c to the dispatcher. Wiring time only.
func (d *Dispatcher) AddComponent(c Component) {
	if d.running() {
		panic("dispatch: AddComponent after Start")
	}
	d.components = append(d.components, c)
}

// SetReadiness installs the I/O readiness source. Wiring time only.
func (d *Dispatcher) SetReadiness(r ReadinessSource) {
	if d.running() {
		panic("dispatch: SetReadiness after Start")
	}
	d.readiness = r
}

// Name returns the dispatcher's wiring name.
func (d *Dispatcher) Name() string { return d.name }

// Err returns the fatal error that terminated the loop, or nil.
func (d *Dispatcher) Err() error {
	if !d.failed.Load() {
		return nil
	}
	return d.err
}

// Attribute reads a component attribute from the application context.
func (d *Dispatcher) Attribute(object, attribute, defval string) string {
	if d.ctx == nil {
		return defval
	}
	return d.ctx.Attribute(object, attribute, defval)
}

// EtherByName resolves any ether in the owning assembly.
func (d *Dispatcher) EtherByName(name string) *ether.Ether {
	if d.lookup == nil {
		return nil
	}
	return d.lookup.EtherByName(name)
}

// ============================================================================
// OUTBOUND MESSAGING & TIMERS
// ============================================================================

// Alloc reserves an outgoing message on the dispatcher's ether.
//
//go:inline
func Alloc[M any](d *Dispatcher, ref ether.Ref[M]) *M {
	return ether.Alloc(d.cursor, ref)
}

// Commit publishes a message obtained from Alloc.
//
//go:inline
func Commit[M any](d *Dispatcher, ref ether.Ref[M], m *M) bool {
	return ether.Commit(d.cursor, ref, m)
}

// SetTimerAt arms a one-shot timer at an absolute deadline. A full timer
// queue is a wiring error and fatal.
func (d *Dispatcher) SetTimerAt(when time.Time, callback func()) {
	if d.timers == nil {
		panic("dispatch: timers on a dispatcher without the Timer trait")
	}
	if !d.timers.ScheduleAt(when, callback) {
		d.fatal("timer queue full", nil)
	}
}

// SetTimerAfter arms a one-shot or recurring timer relative to now.
func (d *Dispatcher) SetTimerAfter(kind timerq.Kind, wait time.Duration, callback func()) {
	if d.timers == nil {
		panic("dispatch: timers on a dispatcher without the Timer trait")
	}
	if !d.timers.ScheduleAfter(kind, wait, callback) {
		d.fatal("timer queue full", nil)
	}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Start spawns the pinned worker. A second Start is a wiring error and
// panics.
func (d *Dispatcher) Start() {
	if d.started {
		panic("dispatch: double Start of '" + d.name + "'")
	}
	d.started = true
	go d.run()
}

// Stop requests termination and joins the worker. Cooperative: takes
// effect at the next loop boundary. Idempotent.
func (d *Dispatcher) Stop() {
	if !d.started {
		return
	}
	d.stopFlag.Store(true)
	<-d.done
}

func (d *Dispatcher) running() bool {
	return d.started && !d.failed.Load()
}

// fatal records the terminating condition with a diagnostic. The loop
// observes err and exits.
func (d *Dispatcher) fatal(msg string, err error) {
	debug.DropError("DISPATCHER '"+d.name+"' fatal: "+msg, err)
	if err == nil {
		err = errors.New("dispatch: " + msg)
	}
	d.err = err
	d.failed.Store(true)
	d.stopFlag.Store(true)
}

// ============================================================================
// MAIN LOOP
// ============================================================================

func (d *Dispatcher) run() {
	lockThread()
	if d.core >= 0 {
		if err := setAffinity(d.core); err != nil {
			debug.DropError("DISPATCHER '"+d.name+"' affinity core "+utils.Itoa(d.core), err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			d.fatal("panic in component code", recoverErr(r))
		}
		unlockThread()
		close(d.done)
	}()

	initialBatch := constants.InitialBatchSize
	maxBatch := d.traits.maxBatch()
	batch := initialBatch

	for _, c := range d.components {
		c.ProcessBegin()
	}

	sw := spin.Wait{}
	bo := iox.Backoff{}

	for !d.stopFlag.Load() {
		read := 0
		if d.cursor != nil {
			read = d.poll(batch)
			if read < 0 {
				d.fatal("ring overrun; queueLength:"+
					utils.Utoa64(d.cursor.QueueLength())+
					" batchSize:"+utils.Itoa(batch), ErrLapOverrun)
				break
			}
			if d.cursor.QueueLength() > uint64(batch)<<constants.BacklogGrowShift {
				if batch <<= 1; batch > maxBatch {
					batch = maxBatch
				}
			} else if read < batch && batch > initialBatch {
				if batch >>= 1; batch < initialBatch {
					batch = initialBatch
				}
			}
		}

		if d.traits.Readiness && d.readiness != nil {
			d.readiness.Poll()
		}
		if d.traits.Timer {
			d.timers.Poll()
		}
		if d.traits.BatchEnd {
			for _, c := range d.components {
				c.ProcessBatchEnd()
			}
		}

		if read == 0 {
			if d.traits.NonCritical {
				bo.Wait()
			} else {
				sw.Once()
			}
		} else {
			bo.Reset()
			sw = spin.Wait{}
		}

		for _, c := range d.components {
			c.ProcessEnd()
		}
	}
}

// poll drains up to maxCnt messages, fanning each slot out to the
// subscribed handlers. Returns the drain count or -1 on overrun.
func (d *Dispatcher) poll(maxCnt int) int {
	cnt := 0
	for cnt < maxCnt {
		rc := d.cursor.Read(d.route)
		if rc < 0 {
			return rc
		}
		if rc == 0 {
			break
		}
		cnt++
	}
	return cnt
}

// route fans one slot out by ordinal. Ordinals nobody subscribed to fall
// through the nil slice.
func (d *Dispatcher) route(s *ether.Slot) {
	ord := s.Selector()
	if ord >= uint64(len(d.handlers)) {
		return
	}
	for _, h := range d.handlers[ord] {
		h(s)
	}
}

func recoverErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	if s, ok := r.(string); ok {
		return errors.New(s)
	}
	return errors.New("dispatch: non-error panic value")
}
