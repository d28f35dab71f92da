package swisstable

import (
	"golang.org/x/crypto/sha3"

	"main/utils"
)

// Control byte encoding shared by both table variants.
//
//	0xFF       Empty
//	0x80       Deleted
//	0xFE       Busy (concurrent variant only)
//	0x00..0x7F 7-bit tag from the key's hash
const (
	ctrlEmpty   = 0xFF
	ctrlDeleted = 0x80
	ctrlBusy    = 0xFE
)

// Policy decides what Insert does when the key is already present.
type Policy uint8

const (
	// Reject makes a duplicate insert fail.
	Reject Policy = iota
	// Overwrite replaces the stored value pointer.
	Overwrite
)

// defaultHash is the Murmur3 finalizer; integer keys go straight through it.
func defaultHash(k uint64) uint64 { return utils.Mix64(k) }

// splitHash derives the probe coordinates: the low 7 bits become the control
// tag, the rest selects the starting slot.
//
//go:inline
func splitHash(h, mask uint64) (tag byte, start uint64) {
	return byte(h & 0x7F), (h >> 7) & mask
}

// KeyFold reduces a structured key (symbol, composite order id) to the
// table's 64-bit key space. Cold path: call once at registration, keep the
// folded key. Collisions across distinct inputs are negligible at table
// scale.
func KeyFold(b []byte) uint64 {
	sum := sha3.Sum256(b)
	return utils.Load64(sum[:8])
}

// KeyFoldString is KeyFold for string keys without forcing a copy at the
// call site.
func KeyFoldString(s string) uint64 {
	return KeyFold([]byte(s))
}
