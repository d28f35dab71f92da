// ouch.go — message set and components for the packet-counter demo
//
// A feed component replays synthetic OUCH-style order traffic onto the
// demo ether; a counter component tallies packets per type; a burst-guard
// component runs the per-parent limiter over the enter-order stream.

package main

import (
	"time"

	"main/assembly"
	"main/burstctl"
	"main/debug"
	"main/dispatch"
	"main/ether"
	"main/timerq"
	"main/types"
	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MESSAGE SET
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// EnterOrder is the demo's OUCH enter-order packet. Fixed-size and
// self-contained so it can live in an ether slot.
type EnterOrder struct {
	Token    [14]byte
	Side     byte
	_        byte
	Quantity uint32
	_        [4]byte
	Price    uint64
	Parent   uint64
	Instr    uint32
	_        [4]byte
}

// ReplaceOrder modifies quantity/price of a resting order.
type ReplaceOrder struct {
	Token    [14]byte
	_        [2]byte
	Quantity uint32
	_        [4]byte
	Price    uint64
}

// CancelOrder removes a resting order.
type CancelOrder struct {
	Token    [14]byte
	_        [2]byte
	Quantity uint32
	_        [4]byte
}

// OuchSchema fixes ordinals and the shared-memory signature for the demo
// ether.
func OuchSchema() *types.Schema {
	return types.MustSchema(
		types.DescOf[EnterOrder]("EnterOrder"),
		types.DescOf[ReplaceOrder]("ReplaceOrder"),
		types.DescOf[CancelOrder]("CancelOrder"),
	)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FEED COMPONENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// feedComponent replays synthetic order flow over the instrument universe.
// Emission happens on a recurring timer so the cadence is configurable
// without touching the drain path.
type feedComponent struct {
	dispatch.BaseComponent
	d          *dispatch.Dispatcher
	refEnter   ether.Ref[EnterOrder]
	refReplace ether.Ref[ReplaceOrder]
	refCancel  ether.Ref[CancelOrder]
	instrs     []Instrument
	burst      int
	seq        uint64
}

func newFeedComponent(d *dispatch.Dispatcher, s *types.Schema, instrs []Instrument) *feedComponent {
	burst := 16
	if v := d.Attribute("Feed", "burst", ""); v != "" {
		if n := atoiOr(v, 0); n > 0 {
			burst = n
		}
	}
	return &feedComponent{
		d:          d,
		refEnter:   types.MustRef[EnterOrder](s, "EnterOrder"),
		refReplace: types.MustRef[ReplaceOrder](s, "ReplaceOrder"),
		refCancel:  types.MustRef[CancelOrder](s, "CancelOrder"),
		instrs:     instrs,
		burst:      burst,
	}
}

func (f *feedComponent) ProcessBegin() {
	interval := durationOr(f.d.Attribute("Feed", "interval", ""), time.Millisecond)
	f.d.SetTimerAfter(timerq.Recurring, interval, f.emitBurst)
}

// emitBurst publishes a spread of enter/replace/cancel packets.
func (f *feedComponent) emitBurst() {
	for i := 0; i < f.burst; i++ {
		f.seq++
		in := f.instrs[int(f.seq)%len(f.instrs)]
		switch f.seq % 4 {
		case 0:
			m := dispatch.Alloc(f.d, f.refCancel)
			m.Token = in.Token(f.seq)
			m.Quantity = 100
			dispatch.Commit(f.d, f.refCancel, m)
		case 1, 2:
			m := dispatch.Alloc(f.d, f.refEnter)
			m.Token = in.Token(f.seq)
			m.Side = 'B'
			m.Quantity = 100
			m.Price = 1_000_000 + f.seq%1000
			m.Parent = f.seq%8 + 1
			m.Instr = in.ID
			dispatch.Commit(f.d, f.refEnter, m)
		default:
			m := dispatch.Alloc(f.d, f.refReplace)
			m.Token = in.Token(f.seq)
			m.Quantity = 200
			m.Price = 1_000_500
			dispatch.Commit(f.d, f.refReplace, m)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PACKET COUNTER COMPONENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// counterComponent tallies packets per type and reports on a timer.
type counterComponent struct {
	dispatch.BaseComponent
	d        *dispatch.Dispatcher
	enters   uint64
	replaces uint64
	cancels  uint64
}

func newCounterComponent(d *dispatch.Dispatcher, s *types.Schema) *counterComponent {
	c := &counterComponent{d: d}
	dispatch.Subscribe(d, types.MustRef[EnterOrder](s, "EnterOrder"),
		func(*EnterOrder) { c.enters++ })
	dispatch.Subscribe(d, types.MustRef[ReplaceOrder](s, "ReplaceOrder"),
		func(*ReplaceOrder) { c.replaces++ })
	dispatch.Subscribe(d, types.MustRef[CancelOrder](s, "CancelOrder"),
		func(*CancelOrder) { c.cancels++ })
	return c
}

func (c *counterComponent) ProcessBegin() {
	interval := durationOr(c.d.Attribute("PacketCounter", "report_interval", ""), time.Second)
	c.d.SetTimerAfter(timerq.Recurring, interval, c.report)
}

func (c *counterComponent) report() {
	debug.DropMessage("COUNT",
		"enter:"+utils.Utoa64(c.enters)+
			" replace:"+utils.Utoa64(c.replaces)+
			" cancel:"+utils.Utoa64(c.cancels))
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BURST GUARD COMPONENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// guardComponent throttles enter orders per parent and reports rejects.
type guardComponent struct {
	dispatch.BaseComponent
	d        *dispatch.Dispatcher
	limiter  *burstctl.ParentLimiter
	governor *burstctl.Governor
	throttle uint64
	rejected uint64
}

func newGuardComponent(d *dispatch.Dispatcher, s *types.Schema) *guardComponent {
	g := &guardComponent{
		d:       d,
		limiter: burstctl.NewParentLimiter(20*time.Millisecond, 64, 20, 1024),
		governor: burstctl.NewGovernor(
			100*time.Millisecond, 4096,
			100*time.Millisecond, 256, 1024),
	}
	for parent := uint64(1); parent <= 8; parent++ {
		g.limiter.AddParent(parent)
	}
	dispatch.Subscribe(d, types.MustRef[EnterOrder](s, "EnterOrder"), g.onEnter)
	return g
}

func (g *guardComponent) ProcessBegin() {
	interval := durationOr(g.d.Attribute("BurstGuard", "report_interval", ""), time.Second)
	g.d.SetTimerAfter(timerq.Recurring, interval, func() {
		debug.DropMessage("GUARD",
			"throttled:"+utils.Utoa64(g.throttle)+
				" governor_rejects:"+utils.Utoa64(g.rejected))
	})
}

func (g *guardComponent) onEnter(m *EnterOrder) {
	now := time.Now().UnixNano()
	if !g.limiter.AddChild(m.Parent, now) {
		g.throttle++
	}
	if !g.governor.Evaluate(now) {
		g.rejected++
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMPARTMENT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ouchCompartment wires the demo: one dispatcher draining the feed ether
// with all three components on it. It runs critical when pinned to a core
// and non-critical otherwise.
type ouchCompartment struct {
	assembly.BaseCompartment
	ctx    *assembly.Context
	asm    *assembly.Assembly
	ether  *ether.Ether
	instrs []Instrument
	core   int
}

func (c *ouchCompartment) Initialize() error {
	traits := dispatch.Traits{Timer: true, BatchEnd: true, NonCritical: c.core < 0}
	d := dispatch.New("OuchDispatcher", c.ether, c.core, traits, c.ctx, c.asm)

	s := c.ether.Schema()
	d.AddComponent(newFeedComponent(d, s, c.instrs))
	d.AddComponent(newCounterComponent(d, s))
	d.AddComponent(newGuardComponent(d, s))
	c.AddDispatcher(d)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SMALL HELPERS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func atoiOr(s string, def int) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return def
		}
		n = n*10 + int(s[i]-'0')
	}
	if len(s) == 0 {
		return def
	}
	return n
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
