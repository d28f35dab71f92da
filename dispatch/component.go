// component.go
//
// Components are the units of application logic a dispatcher drives. Each
// component subscribes to a subset of its ether's message types at wiring
// time; dispatch fan-out is a per-ordinal handler slice, so a type nobody
// subscribed to costs one nil check and a message never reaches a
// component that did not declare it.

package dispatch

import "main/ether"

// Component is the lifecycle surface every component implements.
// ProcessBegin runs once on the dispatcher thread before the first loop
// iteration, ProcessEnd after every iteration, ProcessBatchEnd after each
// drained batch when the dispatcher carries the BatchEnd trait.
type Component interface {
	ProcessBegin()
	ProcessEnd()
	ProcessBatchEnd()
}

// BaseComponent provides no-op hooks; embed it and override what you need.
type BaseComponent struct{}

func (BaseComponent) ProcessBegin()    {}
func (BaseComponent) ProcessEnd()      {}
func (BaseComponent) ProcessBatchEnd() {}

// Subscribe registers fn for every delivered message of type M. Must be
// called during wiring, before Start; the handler runs on the dispatcher
// thread. A handler may allocate and commit outgoing messages onto the
// same ether from inside the callback.
func Subscribe[M any](d *Dispatcher, ref ether.Ref[M], fn func(*M)) {
	if d.running() {
		panic("dispatch: Subscribe after Start")
	}
	ord := int(ref.Ord)
	for len(d.handlers) <= ord {
		d.handlers = append(d.handlers, nil)
	}
	d.handlers[ord] = append(d.handlers[ord], func(s *ether.Slot) {
		fn(ether.As(s, ref))
	})
}
