// ============================================================================
// ETHER — FIXED-CAPACITY TYPED MESSAGE RING
// ============================================================================
//
// The Ether is the transport at the center of every compartment: a ring of
// fixed-size slots carrying the schema's message types between producer and
// consumer cursors in one total publication order.
//
// Core capabilities:
//   - Wait-free single-producer-per-cursor publication; multiple producer
//     cursors serialize through one CAS on the header sequence counter
//   - Seqlock-style visibility: a slot is delivered only when both its
//     sequence and commit numbers equal the reader's expected sequence
//   - Bit-exact storage layout so the ring can live in a shared-memory
//     region attached by several processes
//
// Storage layout (all offsets cache-line derived):
//   - Header at 0: seqno (8B LE) | signature (8B) | capacity (8B) | pad to 64
//   - Slots at 64: selector (8B) | seqno (8B) | commitno (8B) | pad to 64 |
//     data (max message size, rounded up to the cache line)
//
// Safety model:
//   - ⚠️  One goroutine per Cursor. Producer cursors may coexist; a consumer
//     cursor must never be shared.
//   - A reader that falls a full lap behind is permanently broken for this
//     ring; Read reports it and the dispatcher escalates.
//
// Compiler optimizations:
//   - //go:nosplit on the slot accessors keeps them callable from the
//     drain loop without stack checks

package ether

import (
	"unsafe"

	"code.hybscloud.com/atomix"

	"main/constants"
	"main/types"
)

// ============================================================================
// STORAGE LAYOUT
// ============================================================================

// header is the on-wire ring header. Layout is the compatibility contract
// between attaching processes; sizeAsserts pins it at construction.
type header struct {
	seqno     atomix.Uint64
	signature uint64
	capacity  uint64
	_         [constants.CacheLine - 24]byte
}

// Slot is the fixed preamble of one ring cell. The message payload starts
// dataOffset bytes after the slot, cache-line aligned and sized for the
// largest schema type.
type Slot struct {
	selector uint64
	seqno    atomix.Uint64
	commitno atomix.Uint64
	_        [constants.CacheLine - 24]byte
}

const dataOffset = unsafe.Sizeof(Slot{})

// Selector returns the ordinal of the message type occupying the slot.
//
//go:nosplit
//go:inline
func (s *Slot) Selector() uint64 { return s.selector }

// Data returns the payload region. Valid only inside a delivery handler.
//
//go:nosplit
//go:inline
func (s *Slot) Data() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(s), dataOffset)
}

// Ref re-exports the schema's typed message binding; every ether and
// dispatch generic takes it.
type Ref[M any] = types.Ref[M]

// As views the slot payload as a concrete message. The caller is
// responsible for matching Selector against ref.Ord first; the dispatcher's
// fan-out does exactly that.
//
//go:nosplit
//go:inline
func As[M any](s *Slot, ref Ref[M]) *M {
	return (*M)(s.Data())
}

func sizeAsserts() {
	if unsafe.Sizeof(header{}) != constants.CacheLine {
		panic("ether: header layout drifted off one cache line")
	}
	if unsafe.Sizeof(Slot{}) != constants.CacheLine {
		panic("ether: slot preamble layout drifted off one cache line")
	}
}

func init() { sizeAsserts() }

// ============================================================================
// ETHER
// ============================================================================

// Ether binds a schema and capacity to a raw storage region. Construct it,
// then Initialize with the region (private or shared) before any cursor is
// created.
type Ether struct {
	name     string
	schema   *types.Schema
	capacity uint64
	mask     uint64
	slotSize uintptr
	hdr      *header
	base     unsafe.Pointer // first slot
}

// New describes a ring carrying schema with the given slot count.
// capacity must be a power of two.
func New(name string, schema *types.Schema, capacity int) *Ether {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ether: capacity must be >0 and a power of two")
	}
	dataLen := (schema.MaxMsgSize() + constants.CacheLineMask) &^ uintptr(constants.CacheLineMask)
	return &Ether{
		name:     name,
		schema:   schema,
		capacity: uint64(capacity),
		mask:     uint64(capacity - 1),
		slotSize: dataOffset + dataLen,
	}
}

// RequiredMemSize is the exact byte length of the backing region.
func (e *Ether) RequiredMemSize() int {
	return int(unsafe.Sizeof(header{}) + uintptr(e.capacity)*e.slotSize)
}

// Name returns the ring's configured name (the config lookup key).
func (e *Ether) Name() string { return e.name }

// Schema returns the message type list.
func (e *Ether) Schema() *types.Schema { return e.schema }

// Capacity returns the slot count.
func (e *Ether) Capacity() int { return int(e.capacity) }

// Initialize attaches the ring to buffer.
//
// With reset, the region is zeroed and stamped with the schema signature
// and capacity; the sequence counter starts at zero. Without reset the
// region must already carry a matching signature and capacity; a mismatch
// means another build's layout lives there and is fatal.
func (e *Ether) Initialize(buffer []byte, reset bool) error {
	need := e.RequiredMemSize()
	if len(buffer) < need {
		return errRegionTooSmall(e.name, len(buffer), need)
	}

	e.hdr = (*header)(unsafe.Pointer(&buffer[0]))
	e.base = unsafe.Add(unsafe.Pointer(&buffer[0]), unsafe.Sizeof(header{}))

	if reset {
		clear(buffer[:need])
		e.hdr.signature = e.schema.Signature()
		e.hdr.capacity = e.capacity
		e.hdr.seqno.Store(0)
		return nil
	}
	if e.hdr.signature != e.schema.Signature() {
		return errSignatureMismatch(e.name, e.hdr.signature, e.schema.Signature())
	}
	if e.hdr.capacity != e.capacity {
		return errCapacityMismatch(e.name, e.hdr.capacity, e.capacity)
	}
	return nil
}

// attached reports whether Initialize succeeded.
func (e *Ether) attached() bool { return e.hdr != nil }

// PrivateRegion allocates a zeroed, cache-line-aligned process-private
// backing region of exactly size bytes. Shared rings get their region from
// the assembly's memory-mapped store instead.
func PrivateRegion(size int) []byte {
	raw := make([]byte, size+constants.CacheLine)
	off := 0
	if rem := uintptr(unsafe.Pointer(&raw[0])) & uintptr(constants.CacheLineMask); rem != 0 {
		off = constants.CacheLine - int(rem)
	}
	return raw[off : off+size]
}

// slotAt returns the slot for sequence number seq.
//
//go:nosplit
//go:inline
func (e *Ether) slotAt(seq uint64) *Slot {
	return (*Slot)(unsafe.Add(e.base, uintptr(seq&e.mask)*e.slotSize))
}
