package burstctl

import "time"

// Mode is the governor's admission state.
type Mode uint8

const (
	// Normal admits events until the heatup window fills.
	Normal Mode = iota
	// Cooldown rejects everything until the cooldown window has elapsed
	// and traffic has fallen under the cooldown limit.
	Cooldown
)

// State is a snapshot of the governor for monitoring.
type State struct {
	Mode          Mode
	CooldownStart int64
	Total         uint64
}

// Governor is the two-mode burst controller. In Normal mode it counts into
// the heatup window; the event that would exceed the heatup limit flips it
// into Cooldown, which rejects every event until the cooldown window has
// fully elapsed since entry AND the rolling cooldown total is at or under
// the cooldown limit. History is cleared on every mode switch, so each mode
// starts counting from zero.
//
// Not safe for concurrent use.
type Governor struct {
	heatup        *Counter
	cooldown      *Counter
	mode          Mode
	cooldownWin   int64
	cooldownStart int64
}

// NewGovernor builds a governor from the two window configurations, using
// buckets slices per window.
func NewGovernor(heatupWin time.Duration, heatupLimit uint64,
	cooldownWin time.Duration, cooldownLimit uint64, buckets int) *Governor {
	return &Governor{
		heatup:      NewCounter(heatupWin, buckets, heatupLimit),
		cooldown:    NewCounter(cooldownWin, buckets, cooldownLimit),
		mode:        Normal,
		cooldownWin: int64(cooldownWin),
	}
}

// Evaluate accounts one event at timestamp t (ns) and reports whether it is
// admitted. Rejected events are still counted: the cooldown exit condition
// watches the total traffic rate, admitted or not.
func (g *Governor) Evaluate(t int64) bool {
	if g.mode == Normal {
		if g.heatup.Increment(t) {
			return true
		}
		// limit hit: enter cooldown and charge this event to it
		g.switchMode(Cooldown, t)
		g.cooldown.charge(t)
		return false
	}

	// Cooldown: age the window before inspecting the total
	g.cooldown.Advance(t)
	if t-g.cooldownStart >= g.cooldownWin && g.cooldown.Value() <= g.cooldown.Limit() {
		g.switchMode(Normal, t)
		g.heatup.Increment(t)
		return true
	}
	g.cooldown.charge(t)
	return false
}

// ModeNow returns the current admission mode.
func (g *Governor) ModeNow() Mode { return g.mode }

// Snapshot returns the monitoring view: mode, cooldown entry time (zero in
// Normal), and the active counter's total.
func (g *Governor) Snapshot() State {
	s := State{Mode: g.mode}
	if g.mode == Normal {
		s.Total = g.heatup.Value()
	} else {
		s.CooldownStart = g.cooldownStart
		s.Total = g.cooldown.Value()
	}
	return s
}

// switchMode flips the mode and clears all history so the first increment
// after the transition starts a fresh window.
func (g *Governor) switchMode(m Mode, t int64) {
	g.mode = m
	g.heatup.Reset()
	g.cooldown.Reset()
	if m == Cooldown {
		g.cooldownStart = t
	} else {
		g.cooldownStart = 0
	}
}
