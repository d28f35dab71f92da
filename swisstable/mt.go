// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ SWISS-TABLE HASH INDEX — CONCURRENT VARIANT
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Event Pipeline Framework
// Component: Lock-Free Fixed-Capacity Key→Pointer Map
//
// Description:
//   Concurrent rendition of the swiss index: many writers insert, erase, and
//   look up simultaneously. A slot is claimed by CAS-ing its control byte
//   from Empty/Deleted to Busy; the tag store with release publishes the
//   fully written entry. Probes that observe Busy wait on that slot: the
//   key being written there may be a duplicate of ours, so skipping past
//   would break per-key arbitration.
//
// Design Principles:
//   - Control bytes are individually atomic; the probe pass uses relaxed
//     loads and every candidate is re-confirmed with acquire
//   - No mirrored tail: the mirror cannot be kept coherent with atomic
//     control bytes, so groups that would cross the array end fall back to a
//     byte-by-byte wrap-around scan
//   - Capacity is fixed; once full, insert fails
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package swisstable

import (
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"main/constants"
)

// Control byte values widened to the atomic cell type.
const (
	cEmpty   = int32(ctrlEmpty)
	cDeleted = int32(ctrlDeleted)
	cBusy    = int32(ctrlBusy)
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPE DEFINITIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// MT is the concurrent table. The value array uses the runtime's typed
// atomic pointer so stored values stay visible to the garbage collector;
// everything else runs on explicit-ordering atomics.
type MT[V any] struct {
	ctrl   []atomix.Int32
	keys   []atomix.Uint64
	values []atomic.Pointer[V]
	mask   uint64
	size   atomix.Int64
	policy Policy
	hash   func(uint64) uint64
}

// NewMT creates an empty concurrent table. slots must be a power of two and
// at least 16; the table never grows.
func NewMT[V any](slots int, policy Policy) *MT[V] {
	if slots < constants.GroupSize || slots&(slots-1) != 0 {
		panic("swisstable: slots must be a power of two >= 16")
	}
	t := &MT[V]{
		ctrl:   make([]atomix.Int32, slots),
		keys:   make([]atomix.Uint64, slots),
		values: make([]atomic.Pointer[V], slots),
		mask:   uint64(slots - 1),
		policy: policy,
		hash:   defaultHash,
	}
	for i := range t.ctrl {
		t.ctrl[i].StoreRelaxed(cEmpty)
	}
	return t
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LOOKUP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Find returns the stored value pointer, or nil when the key is absent.
//
// The group pass runs on relaxed loads; any candidate tag byte and any
// observed Empty is re-confirmed with acquire before it is acted on, so a
// half-published slot can neither be returned nor end the probe early.
func (t *MT[V]) Find(key uint64) *V {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1

	for i := uint64(0); i < slots; i += constants.GroupSize {
		j := (start + i) & t.mask

		var matchMask, emptyMask uint32
		if j+constants.GroupSize <= slots {
			for k := uint64(0); k < constants.GroupSize; k++ {
				c := t.ctrl[j+k].LoadRelaxed()
				if c == int32(tag) {
					matchMask |= 1 << k
				} else if c == cEmpty {
					emptyMask |= 1 << k
				}
			}
		} else {
			// group straddles the array end: wrap slot-by-slot
			for k := uint64(0); k < constants.GroupSize; k++ {
				c := t.ctrl[(j+k)&t.mask].LoadRelaxed()
				if c == int32(tag) {
					matchMask |= 1 << k
				} else if c == cEmpty {
					emptyMask |= 1 << k
				}
			}
		}

		for matchMask != 0 {
			bit := uint64(bits.TrailingZeros32(matchMask))
			idx := (j + bit) & t.mask
			if t.ctrl[idx].LoadAcquire() == int32(tag) {
				if t.keys[idx].LoadRelaxed() == key {
					return t.values[idx].Load()
				}
			}
			matchMask &= matchMask - 1
		}

		if emptyMask != 0 {
			bit := uint64(bits.TrailingZeros32(emptyMask))
			idx := (j + bit) & t.mask
			// a relaxed Empty may be stale; only an acquire-confirmed
			// Empty proves the key is absent
			if t.ctrl[idx].LoadAcquire() == cEmpty {
				return nil
			}
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MUTATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Insert stores value under key. Exactly one concurrent inserter of a given
// key wins; the loser sees a duplicate (Reject) or overwrites (Overwrite).
// Returns false on duplicate under Reject or when every slot is occupied.
func (t *MT[V]) Insert(key uint64, value *V) bool {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1
	sw := spin.Wait{}

	for i := uint64(0); i < slots; {
		pos := (start + i) & t.mask
		c := t.ctrl[pos].LoadRelaxed()

		if c == int32(tag) {
			if t.keys[pos].LoadRelaxed() == key {
				if t.policy == Reject {
					return false
				}
				t.values[pos].Store(value)
				return true
			}
			i++
			continue
		}

		if c == cEmpty || c == cDeleted {
			if t.ctrl[pos].CompareAndSwapAcqRel(c, cBusy) {
				t.keys[pos].StoreRelaxed(key)
				t.values[pos].Store(value)
				t.ctrl[pos].StoreRelease(int32(tag))
				t.size.Add(1)
				return true
			}
			// lost the claim; the slot may now hold our key: retry it
			continue
		}

		if c == cBusy {
			// the writer there may be inserting our key; wait, don't skip
			sw.Once()
			continue
		}

		i++
	}
	return false
}

// Erase removes key if present. The value pointer is cleared before the
// control byte turns Deleted.
func (t *MT[V]) Erase(key uint64) {
	h := t.hash(key)
	tag, start := splitHash(h, t.mask)
	slots := t.mask + 1

	for i := uint64(0); i < slots; i++ {
		pos := (start + i) & t.mask
		c := t.ctrl[pos].LoadAcquire()

		if c == cEmpty {
			return
		}
		if c == int32(tag) && t.keys[pos].LoadAcquire() == key {
			old := t.values[pos].Swap(nil)
			t.ctrl[pos].StoreRelease(cDeleted)
			if old != nil {
				t.size.Add(-1)
			}
			return
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Size returns the number of live entries.
func (t *MT[V]) Size() int { return int(t.size.Load()) }

// Capacity returns the fixed slot count.
func (t *MT[V]) Capacity() int { return int(t.mask + 1) }

// Clear empties the table. Not linearizable against concurrent writers;
// quiesce first.
func (t *MT[V]) Clear() {
	for i := range t.ctrl {
		t.values[i].Store(nil)
		t.keys[i].StoreRelaxed(0)
		t.ctrl[i].StoreRelaxed(cEmpty)
	}
	t.size.Store(0)
}

// ForEach visits live entries with slot, key, and probe displacement.
// Diagnostics and tests only; entries mutated during the walk may be seen
// or skipped.
func (t *MT[V]) ForEach(visit func(pos int, key uint64, distance int)) {
	slots := t.mask + 1
	for pos := uint64(0); pos < slots; pos++ {
		c := t.ctrl[pos].LoadAcquire()
		if c >= cDeleted { // Empty/Deleted/Busy
			continue
		}
		key := t.keys[pos].LoadAcquire()
		if t.values[pos].Load() == nil {
			continue
		}
		_, home := splitHash(t.hash(key), t.mask)
		distance := (pos + slots - home) & t.mask
		visit(int(pos), key, int(distance))
	}
}
