// assembly.go
//
// The assembly is the top-level owner: it allocates or maps every ether's
// storage, wires the compartments around them, and fans lifecycle calls
// out. A compartment is one ether plus the dispatchers that drain it.
//
// Storage rules:
//   - shared ethers get a memory-mapped region at the configured path;
//     exactly one process resets it (ether_init.<name> = true), everyone
//     else attaches and must pass signature/capacity validation
//   - two compartments must never share a backing path; that is a
//     construction-time error
//   - private ethers get a zeroed cache-line-aligned heap region owned by
//     the assembly

package assembly

import (
	"errors"
	"fmt"

	"main/debug"
	"main/dispatch"
	"main/ether"
)

// ErrBackingPathConflict means two ethers resolved to the same shared file.
var ErrBackingPathConflict = errors.New("assembly: shared backing path used twice")

// ErrDuplicateEther means two compartments declared the same ether name.
var ErrDuplicateEther = errors.New("assembly: duplicate ether name")

// Compartment is one ether and its dispatchers. Initialize builds the
// dispatchers (the ether is attached by then); Start and Stop fan out.
type Compartment interface {
	Name() string
	Initialize() error
	Start()
	Stop()
}

// BuildFunc constructs a compartment once its ether is attached.
type BuildFunc func(ctx *Context, asm *Assembly, e *ether.Ether) (Compartment, error)

// CompartmentSpec declares one compartment for NewAssembly.
type CompartmentSpec struct {
	Ether  *ether.Ether
	Shared bool
	Build  BuildFunc
}

// Assembly owns every ether's storage and all compartments.
type Assembly struct {
	ctx          *Context
	ethers       map[string]*ether.Ether
	compartments []Compartment
	shared       []*SharedRegion
}

// NewAssembly attaches every ether and instantiates the compartments, in
// declaration order. Any failure tears down the regions mapped so far.
func NewAssembly(ctx *Context, specs ...CompartmentSpec) (*Assembly, error) {
	a := &Assembly{
		ctx:    ctx,
		ethers: make(map[string]*ether.Ether, len(specs)),
	}
	usedPaths := make(map[string]string, len(specs))

	for _, spec := range specs {
		e := spec.Ether
		if _, dup := a.ethers[e.Name()]; dup {
			a.teardown()
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateEther, e.Name())
		}

		if spec.Shared {
			path, err := ctx.Config.EtherPath(e.Name())
			if err != nil {
				a.teardown()
				return nil, err
			}
			if owner, dup := usedPaths[path]; dup {
				a.teardown()
				return nil, fmt.Errorf("%w: '%s' wanted by '%s', held by '%s'",
					ErrBackingPathConflict, path, e.Name(), owner)
			}
			usedPaths[path] = e.Name()

			reset := ctx.Config.EtherReset(e.Name())
			region, err := MapShared(path, e.RequiredMemSize(), reset)
			if err != nil {
				a.teardown()
				return nil, err
			}
			a.shared = append(a.shared, region)
			if err := e.Initialize(region.Data(), reset); err != nil {
				a.teardown()
				return nil, err
			}
		} else {
			if err := e.Initialize(ether.PrivateRegion(e.RequiredMemSize()), true); err != nil {
				a.teardown()
				return nil, err
			}
		}
		a.ethers[e.Name()] = e

		comp, err := spec.Build(ctx, a, e)
		if err != nil {
			a.teardown()
			return nil, err
		}
		a.compartments = append(a.compartments, comp)
	}
	return a, nil
}

// Initialize fans out to the compartments in declaration order.
func (a *Assembly) Initialize() error {
	for _, c := range a.compartments {
		if err := c.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

// Start launches every compartment's dispatchers.
func (a *Assembly) Start() {
	for _, c := range a.compartments {
		debug.DropMessage("ASSEMBLY", "starting compartment "+c.Name())
		c.Start()
	}
}

// Stop halts every compartment. Idempotent: each dispatcher's stop is.
func (a *Assembly) Stop() {
	for _, c := range a.compartments {
		c.Stop()
	}
}

// Close stops everything and releases the shared mappings. Private regions
// are garbage-collected with the assembly.
func (a *Assembly) Close() {
	a.Stop()
	a.teardown()
}

func (a *Assembly) teardown() {
	for _, r := range a.shared {
		if err := r.Close(); err != nil {
			debug.DropError("ASSEMBLY unmap "+r.Path(), err)
		}
	}
	a.shared = nil
}

// EtherByName hands out any ether in the assembly; dispatchers use it to
// reach rings outside their own compartment.
func (a *Assembly) EtherByName(name string) *ether.Ether {
	return a.ethers[name]
}

// Context returns the application context.
func (a *Assembly) Context() *Context { return a.ctx }

// ============================================================================
// BASE COMPARTMENT
// ============================================================================

// BaseCompartment owns an ordered dispatcher list; embed it and add the
// dispatchers during Initialize.
type BaseCompartment struct {
	name        string
	dispatchers []*dispatch.Dispatcher
}

// NewBaseCompartment names the compartment.
func NewBaseCompartment(name string) BaseCompartment {
	return BaseCompartment{name: name}
}

// Name returns the compartment name.
func (b *BaseCompartment) Name() string { return b.name }

// AddDispatcher appends a dispatcher; Start/Stop honor insertion order.
func (b *BaseCompartment) AddDispatcher(d *dispatch.Dispatcher) {
	b.dispatchers = append(b.dispatchers, d)
}

// Dispatchers exposes the wired dispatchers.
func (b *BaseCompartment) Dispatchers() []*dispatch.Dispatcher { return b.dispatchers }

// Start launches the dispatchers in order.
func (b *BaseCompartment) Start() {
	for _, d := range b.dispatchers {
		d.Start()
	}
}

// Stop joins the dispatchers in order.
func (b *BaseCompartment) Stop() {
	for _, d := range b.dispatchers {
		d.Stop()
	}
}
