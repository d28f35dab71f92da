package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Itoa renders a signed integer into a stack buffer and returns the string.
// Avoids strconv on cold diagnostic paths shared with nosplit callers.
func Itoa(v int) string {
	var buf [20]byte
	neg := v < 0
	if neg {
		v = -v
	}
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Utoa64 renders an unsigned 64-bit value. Same contract as Itoa.
func Utoa64(v uint64) string {
	var buf [20]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Fast Loaders — Unaligned 64-Bit Reads
///////////////////////////////////////////////////////////////////////////////

// Load64 reads an unaligned 64-bit word from a byte slice.
//
//go:nosplit
//go:inline
func Load64(b []byte) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[0]))
}

// Load64At reads an unaligned 64-bit word at offset i.
//
//go:nosplit
//go:inline
func Load64At(b []byte, i int) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[i]))
}

///////////////////////////////////////////////////////////////////////////////
// Hash & Mixers — Key Scrambling For The Hash Index
///////////////////////////////////////////////////////////////////////////////

// Mix64 applies a Murmur3-style avalanche to a 64-bit value.
// Default key finalizer for the swisstable index: the low 7 bits become the
// control tag, the next bits select the starting slot.
//
//go:nosplit
//go:inline
func Mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// Fnv1a64 folds a byte string with the FNV-1a constants. Shared by the
// Ether type-list signature so the value is stable across builds.
//
//go:inline
func Fnv1a64(s string) uint64 {
	h := uint64(0xcbf29ce484222325)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 0x100000001b3
	}
	return h
}

///////////////////////////////////////////////////////////////////////////////
// Raw Writes — Stderr Without The Heap
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes msg to file descriptor 2 directly. Diagnostics only;
// never called from a drain loop.
//
//go:nosplit
func PrintWarning(msg string) {
	b := unsafe.Slice(unsafe.StringData(msg), len(msg))
	_, _ = syscall.Write(2, b)
}
