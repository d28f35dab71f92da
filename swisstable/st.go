// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SWISS-TABLE HASH INDEX — SINGLE-WRITER VARIANT
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Event Pipeline Framework
// Component: Fixed-Capacity Key→Pointer Map
//
// Description:
//   Open-addressed hash index probed in 16-byte control groups, used on the
//   hot path to index live parent orders. Fixed capacity, zero allocation
//   after construction, never resizes: once full, insert fails.
//
// Design Principles:
//   - Control bytes carry a 7-bit tag so most probes never touch the key array
//   - Groups are scanned with two unaligned 8-byte SWAR compares (portable
//     stand-in for a 16-byte SIMD byte-compare, same stop-on-empty semantics)
//   - The first 16 control bytes are mirrored past the end of the array so a
//     group load starting at any slot is in-bounds without masking
//
// Safety model:
//   - Single writer. Concurrent mutation corrupts the table. Reads are safe
//     only while no writer is active. For shared mutation use MT.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package swisstable

import (
	"math/bits"

	"main/constants"
	"main/utils"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SWAR GROUP COMPARE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

const lanes = 0x0101010101010101

// matchLanes returns a mask with bit 7 of every byte lane set where the lane
// of word equals b. Exact: the borrow trick cannot fire on non-zero lanes of
// word^broadcast.
//
//go:nosplit
//go:inline
func matchLanes(word uint64, b byte) uint64 {
	x := word ^ (uint64(b) * lanes)
	return (x - lanes) &^ x & (lanes << 7)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ST is the single-writer table: slots control bytes (plus the 16-byte
// mirror), parallel key and value-pointer arrays.
type ST[V any] struct {
	ctrl   []byte // slots + GroupSize, tail mirrors ctrl[0:16]
	keys   []uint64
	values []*V
	mask   uint64
	size   int
	policy Policy
	hash   func(uint64) uint64
}

// NewST creates an empty table with the given slot count. slots must be a
// power of two and at least 16; the table never grows.
func NewST[V any](slots int, policy Policy) *ST[V] {
	if slots < constants.GroupSize || slots&(slots-1) != 0 {
		panic("swisstable: slots must be a power of two >= 16")
	}
	t := &ST[V]{
		ctrl:   make([]byte, slots+constants.GroupSize),
		keys:   make([]uint64, slots),
		values: make([]*V, slots),
		mask:   uint64(slots - 1),
		policy: policy,
		hash:   defaultHash,
	}
	for i := range t.ctrl {
		t.ctrl[i] = ctrlEmpty
	}
	return t
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Find returns the stored value pointer, or nil when the key is absent.
// Probes one 16-byte group per step: candidate tags are verified against the
// full key, and any Empty byte in the group terminates the search.
//
//go:nosplit
func (t *ST[V]) Find(key uint64) *V {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1

	for i := uint64(0); i < slots; i += constants.GroupSize {
		j := (start + i) & t.mask
		// mirrored tail keeps both loads in-bounds for any j
		lo := utils.Load64At(t.ctrl, int(j))
		hi := utils.Load64At(t.ctrl, int(j)+8)

		for half, word := 0, lo; half < 2; half, word = half+1, hi {
			m := matchLanes(word, tag)
			for m != 0 {
				lane := uint64(bits.TrailingZeros64(m) >> 3)
				idx := (j + uint64(half*8) + lane) & t.mask
				if t.keys[idx] == key {
					return t.values[idx]
				}
				m &= m - 1
			}
		}

		if matchLanes(lo, ctrlEmpty)|matchLanes(hi, ctrlEmpty) != 0 {
			return nil
		}
	}
	return nil
}

// Insert stores value under key. The probe chain is searched up to its first
// Empty slot for a live copy of key; a matching live key is an update under
// Overwrite and a failure under Reject. Otherwise the first Empty or Deleted
// slot passed on the chain is claimed. Returns false only on duplicate
// (Reject) or when the whole array is occupied.
func (t *ST[V]) Insert(key uint64, value *V) bool {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1
	free := slots // first Empty/Deleted slot seen; slots means none yet

	for i := uint64(0); i < slots; i++ {
		pos := (start + i) & t.mask
		c := t.ctrl[pos]

		if c == tag && t.keys[pos] == key {
			if t.policy == Reject {
				return false
			}
			t.values[pos] = value
			return true
		}

		if c&0x80 != 0 { // Empty or Deleted
			if free == slots {
				free = pos
			}
			if c == ctrlEmpty { // end of the chain: key is absent
				break
			}
		}
	}
	if free == slots {
		return false
	}
	t.setCtrl(free, tag)
	t.keys[free] = key
	t.values[free] = value
	t.size++
	return true
}

// Erase removes key if present. The slot becomes Deleted, not Empty, so
// probe chains running through it stay intact.
func (t *ST[V]) Erase(key uint64) {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1

	for i := uint64(0); i < slots; i++ {
		pos := (start + i) & t.mask
		c := t.ctrl[pos]

		if c == ctrlEmpty {
			return
		}
		if c == tag && t.keys[pos] == key {
			t.setCtrl(pos, ctrlDeleted)
			t.values[pos] = nil
			if t.size > 0 {
				t.size--
			}
			return
		}
	}
}

// Size returns the number of live entries.
func (t *ST[V]) Size() int { return t.size }

// Capacity returns the fixed slot count.
func (t *ST[V]) Capacity() int { return int(t.mask + 1) }

// Clear empties the table in place.
func (t *ST[V]) Clear() {
	for i := range t.ctrl {
		t.ctrl[i] = ctrlEmpty
	}
	for i := range t.keys {
		t.keys[i] = 0
		t.values[i] = nil
	}
	t.size = 0
}

// ForEach visits every live entry with its slot, key, and probe displacement
// from the key's home slot. Diagnostics and tests only.
func (t *ST[V]) ForEach(visit func(pos int, key uint64, distance int)) {
	slots := t.mask + 1
	for pos := uint64(0); pos < slots; pos++ {
		if t.ctrl[pos]&0x80 != 0 {
			continue
		}
		if t.values[pos] == nil {
			continue
		}
		key := t.keys[pos]
		_, home := splitHash(t.hash(key), t.mask)
		distance := (pos + slots - home) & t.mask
		visit(int(pos), key, int(distance))
	}
}

// setCtrl writes a control byte and maintains the tail mirror when the head
// group changes.
//
//go:inline
func (t *ST[V]) setCtrl(pos uint64, v byte) {
	t.ctrl[pos] = v
	if pos < constants.GroupSize {
		t.ctrl[t.mask+1+pos] = v
	}
}
