// cursor.go
//
// Per-client position into one Ether. A producer cursor allocates and
// commits slots; a consumer cursor observes every committed slot in
// publication order. The same Cursor type serves both roles, but each
// cursor instance belongs to exactly one goroutine.

package ether

import "unsafe"

// Cursor tracks the next sequence number to deliver and the latest header
// snapshot (backpressure metric only).
type Cursor struct {
	ether *Ether
	next  uint64
	last  uint64
}

// NewCursor opens a cursor at the current head: it will deliver only
// messages published after this call.
func (e *Ether) NewCursor() *Cursor {
	if !e.attached() {
		panic("ether: cursor on uninitialized ether '" + e.name + "'")
	}
	last := e.hdr.seqno.LoadAcquire()
	return &Cursor{ether: e, next: last + 1, last: last}
}

// ============================================================================
// PUBLICATION
// ============================================================================

// Alloc reserves the next sequence number and returns the in-slot message
// for the caller to fill. The reservation CAS serializes concurrent
// producer cursors; each one gets a unique, contiguous sequence number.
//
// The returned message is zeroed. It becomes visible to readers only after
// Commit.
//
//go:nosplit
func Alloc[M any](c *Cursor, ref Ref[M]) *M {
	hdr := c.ether.hdr
	var seq uint64
	for {
		s := hdr.seqno.LoadRelaxed()
		if hdr.seqno.CompareAndSwapAcqRel(s, s+1) {
			seq = s + 1
			break
		}
	}

	slot := c.ether.slotAt(seq)
	slot.commitno.StoreRelaxed(0)
	slot.seqno.StoreRelease(seq)

	data := slot.Data()
	b := unsafe.Slice((*byte)(data), ref.Size)
	clear(b)
	return (*M)(data)
}

// Commit publishes the message returned by Alloc: the selector identifies
// the type, then the commit number catches up to the slot's sequence with
// release ordering. From that point every reader expecting this sequence
// delivers the slot.
//
//go:nosplit
func Commit[M any](c *Cursor, ref Ref[M], m *M) bool {
	slot := (*Slot)(unsafe.Add(unsafe.Pointer(m), -int(dataOffset)))
	slot.selector = ref.Ord
	slot.commitno.StoreRelease(slot.seqno.LoadRelaxed())
	return true
}

// ============================================================================
// DELIVERY
// ============================================================================

// Read delivers at most one message to handler.
//
// Returns:
//
//	 1: a slot was delivered; the cursor advanced
//	 0: nothing committed at the cursor's sequence yet
//	-1: lap overrun; the producer wrapped past this reader and the slot
//	    is gone. Unrecoverable for this cursor; the caller must escalate.
//
//go:nosplit
func (c *Cursor) Read(handler func(*Slot)) int {
	e := c.ether
	c.last = e.hdr.seqno.LoadRelaxed()
	if c.last < c.next {
		return 0
	}
	if c.last-c.next >= e.capacity {
		return -1
	}

	slot := e.slotAt(c.next)
	if slot.seqno.LoadAcquire() != c.next {
		return 0 // slot still carries a previous lap
	}
	if slot.commitno.LoadAcquire() != c.next {
		return 0 // payload not fully written yet
	}
	handler(slot)
	c.next++
	return 1
}

// QueueLength is the number of published-but-undelivered messages, from a
// fresh read of the header sequence. Drives the dispatcher's adaptive batch
// sizing.
//
//go:nosplit
//go:inline
func (c *Cursor) QueueLength() uint64 {
	head := c.ether.hdr.seqno.LoadRelaxed()
	if head < c.next {
		return 0
	}
	return head - c.next + 1
}
