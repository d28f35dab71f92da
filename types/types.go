// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ MESSAGE SCHEMA & TYPE-LIST SIGNATURE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Event Pipeline Framework
// Component: Message Type Registry
//
// Description:
//   An Ether transports a closed set of message types fixed at construction.
//   Each type gets a stable ordinal (its declaration index) used as the slot
//   selector, and the whole list folds into a 64-bit signature written to the
//   Ether header. Two processes attach the same shared region only when their
//   declared lists agree in identity, size, and order.
//
// Design Principles:
//   - Ordinals are declaration order; dispatch is a slice index, never a type switch
//   - Signature fold uses the FNV-1a constants; the value is part of the wire contract
//   - Messages must be trivially copyable: fixed-size, no pointers, no slices
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package types

import (
	"errors"
	"unsafe"

	"main/utils"
)

// ErrDuplicateType rejects a schema declaring the same name twice.
var ErrDuplicateType = errors.New("types: duplicate message type in schema")

// ErrUnknownType is returned when a Ref is requested for a name the schema
// never declared.
var ErrUnknownType = errors.New("types: message type not in schema")

// ErrSizeMismatch is returned when the Go struct bound to a Ref does not
// match the declared size. Catches a struct edited after wiring.
var ErrSizeMismatch = errors.New("types: message size does not match declaration")

// Desc declares one message type: a stable name and its in-slot size.
type Desc struct {
	Name string
	Size uintptr
}

// DescOf builds the Desc for a concrete message struct.
func DescOf[M any](name string) Desc {
	var m M
	return Desc{Name: name, Size: unsafe.Sizeof(m)}
}

// Schema is the ordered, closed list of message types an Ether carries.
// Construct once at wiring time; immutable afterwards.
type Schema struct {
	descs     []Desc
	ordinals  map[string]int
	maxSize   uintptr
	signature uint64
}

// NewSchema folds the declaration list. Order matters: it fixes both the
// ordinals and the signature.
func NewSchema(descs ...Desc) (*Schema, error) {
	s := &Schema{
		descs:    make([]Desc, len(descs)),
		ordinals: make(map[string]int, len(descs)),
	}
	copy(s.descs, descs)

	sig := uint64(0xcbf29ce484222325)
	for i, d := range s.descs {
		if _, dup := s.ordinals[d.Name]; dup {
			return nil, ErrDuplicateType
		}
		s.ordinals[d.Name] = i
		if d.Size > s.maxSize {
			s.maxSize = d.Size
		}
		sig ^= utils.Fnv1a64(d.Name) ^ (uint64(d.Size) << 1)
		sig *= 0x100000001b3
	}
	s.signature = sig
	return s, nil
}

// MustSchema panics on a bad declaration list. Wiring-time helper.
func MustSchema(descs ...Desc) *Schema {
	s, err := NewSchema(descs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Signature is the 64-bit fold over the declaration list. Written into the
// Ether header on reset and validated on every attach.
func (s *Schema) Signature() uint64 { return s.signature }

// MaxMsgSize is the largest declared size; it dictates the slot data length.
func (s *Schema) MaxMsgSize() uintptr { return s.maxSize }

// Len is the number of declared types.
func (s *Schema) Len() int { return len(s.descs) }

// Desc returns the declaration at ordinal ord.
func (s *Schema) Desc(ord int) Desc { return s.descs[ord] }

// Ordinal resolves a name to its declaration index.
func (s *Schema) Ordinal(name string) (int, bool) {
	ord, ok := s.ordinals[name]
	return ord, ok
}

// Ref binds a concrete Go struct type to its ordinal in one schema.
// Obtained once at wiring time; makes every hot-path operation on M a
// plain integer index.
type Ref[M any] struct {
	Ord  uint64
	Size uintptr
}

// RefOf resolves name in s and checks the struct size against the
// declaration.
func RefOf[M any](s *Schema, name string) (Ref[M], error) {
	ord, ok := s.ordinals[name]
	if !ok {
		return Ref[M]{}, ErrUnknownType
	}
	var m M
	if unsafe.Sizeof(m) != s.descs[ord].Size {
		return Ref[M]{}, ErrSizeMismatch
	}
	return Ref[M]{Ord: uint64(ord), Size: s.descs[ord].Size}, nil
}

// MustRef panics when the binding fails. Wiring-time helper.
func MustRef[M any](s *Schema, name string) Ref[M] {
	r, err := RefOf[M](s, name)
	if err != nil {
		panic(err)
	}
	return r
}
