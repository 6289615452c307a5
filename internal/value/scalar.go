package value

import (
	"fmt"

	"fortio.org/safecast"
)

// MaxScalarSize is the widest scalar in bytes.
const MaxScalarSize = 16

// ScalarInt is a raw integer of a fixed byte width.
type ScalarInt struct {
	Data Uint128
	Size uint8
}

// Bits returns the width in bits.
func (s ScalarInt) Bits() uint {
	return uint(s.Size) * 8
}

// AssertBits returns the raw bits, panicking if the width does not match.
func (s ScalarInt) AssertBits(size int) Uint128 {
	if int(s.Size) != size {
		panic(fmt.Sprintf("value: expected int of size %d, got size %d", size, s.Size))
	}
	return s.Data
}

// Signed returns the value sign-extended to 128 bits.
func (s ScalarInt) Signed() Uint128 {
	return s.Data.SignExtend(s.Bits())
}

// IsNull reports whether the integer is zero.
func (s ScalarInt) IsNull() bool {
	return s.Data.IsZero()
}

func checkSize(size int) uint8 {
	if size <= 0 || size > MaxScalarSize {
		panic(fmt.Sprintf("value: invalid scalar size %d", size))
	}
	n, err := safecast.Conv[uint8](size)
	if err != nil {
		panic(fmt.Errorf("value: scalar size: %w", err))
	}
	return n
}

// TryIntFromUint builds a ScalarInt when v fits in size bytes unsigned.
func TryIntFromUint(v Uint128, size int) (ScalarInt, bool) {
	n := checkSize(size)
	if !v.FitsUnsigned(uint(n) * 8) {
		return ScalarInt{}, false
	}
	return ScalarInt{Data: v, Size: n}, true
}

// TryIntFromInt builds a ScalarInt when the signed value v fits in size
// bytes. The stored bits are truncated to the width.
func TryIntFromInt(v Uint128, size int) (ScalarInt, bool) {
	n := checkSize(size)
	bitsN := uint(n) * 8
	if !v.FitsSigned(bitsN) {
		return ScalarInt{}, false
	}
	return ScalarInt{Data: v.Truncate(bitsN), Size: n}, true
}

// ScalarKind distinguishes integer and pointer scalars.
type ScalarKind uint8

const (
	ScalarInvalid ScalarKind = iota
	ScalarIntKind
	ScalarPtrKind
)

// Scalar is one primitive machine value: either raw integer bits or a
// pointer that carries provenance.
type Scalar struct {
	kind ScalarKind
	bits ScalarInt
	ptr  Pointer
	size uint8
}

// FromScalarInt wraps a raw integer.
func FromScalarInt(i ScalarInt) Scalar {
	return Scalar{kind: ScalarIntKind, bits: i}
}

// FromUint builds an integer scalar; v must fit in size bytes.
func FromUint(v Uint128, size int) Scalar {
	i, ok := TryIntFromUint(v, size)
	if !ok {
		panic(fmt.Sprintf("value: unsigned value %s does not fit in %d bytes", v, size))
	}
	return FromScalarInt(i)
}

// TryFromUint is FromUint returning ok=false on overflow.
func TryFromUint(v Uint128, size int) (Scalar, bool) {
	i, ok := TryIntFromUint(v, size)
	if !ok {
		return Scalar{}, false
	}
	return FromScalarInt(i), true
}

// FromInt builds an integer scalar from a signed value; it must fit.
func FromInt(v Uint128, size int) Scalar {
	i, ok := TryIntFromInt(v, size)
	if !ok {
		panic(fmt.Sprintf("value: signed value %s does not fit in %d bytes", v.BigSigned(), size))
	}
	return FromScalarInt(i)
}

// TryFromInt is FromInt returning ok=false on overflow.
func TryFromInt(v Uint128, size int) (Scalar, bool) {
	i, ok := TryIntFromInt(v, size)
	if !ok {
		return Scalar{}, false
	}
	return FromScalarInt(i), true
}

// FromBool builds a one-byte 0/1 scalar.
func FromBool(b bool) Scalar {
	if b {
		return FromUint(U128(1), 1)
	}
	return FromUint(U128(0), 1)
}

// FromMachineUsize builds a pointer-sized unsigned integer.
func FromMachineUsize(v uint64, ptrSize int) Scalar {
	return FromUint(U128(v), ptrSize)
}

// FromPointer builds a pointer scalar. The pointer must carry provenance.
func FromPointer(p Pointer, ptrSize int) Scalar {
	if !p.HasProvenance() {
		panic("value: FromPointer needs a pointer with provenance")
	}
	return Scalar{kind: ScalarPtrKind, ptr: p, size: checkSize(ptrSize)}
}

// FromMaybePointer builds a pointer scalar when p has provenance and an
// integer scalar holding its address otherwise.
func FromMaybePointer(p Pointer, ptrSize int) Scalar {
	if p.HasProvenance() {
		return FromPointer(p, ptrSize)
	}
	return FromUint(U128(p.Offset), ptrSize)
}

// Kind reports which form the scalar has.
func (s Scalar) Kind() ScalarKind {
	return s.kind
}

// IsPtr reports whether the scalar is a pointer with provenance.
func (s Scalar) IsPtr() bool {
	return s.kind == ScalarPtrKind
}

// Size returns the width in bytes.
func (s Scalar) Size() int {
	if s.kind == ScalarPtrKind {
		return int(s.size)
	}
	return int(s.bits.Size)
}

// TryToInt returns the integer form; it fails for pointers, whose absolute
// address is unknown during compile-time evaluation.
func (s Scalar) TryToInt() (ScalarInt, bool) {
	if s.kind != ScalarIntKind {
		return ScalarInt{}, false
	}
	return s.bits, true
}

// AssertInt returns the integer form and panics on pointers.
func (s Scalar) AssertInt() ScalarInt {
	i, ok := s.TryToInt()
	if !ok {
		panic(fmt.Sprintf("value: expected an integer scalar, got %s", s))
	}
	return i
}

// AssertBits returns the raw bits of an integer scalar of the given size.
func (s Scalar) AssertBits(size int) Uint128 {
	return s.AssertInt().AssertBits(size)
}

// ToPointer returns the pointer of a pointer scalar, or an address-only
// pointer for an integer scalar.
func (s Scalar) ToPointer() Pointer {
	switch s.kind {
	case ScalarPtrKind:
		return s.ptr
	case ScalarIntKind:
		lo, _ := s.bits.Data.Uint64()
		return Pointer{Offset: lo}
	default:
		panic("value: invalid scalar")
	}
}

// String renders integers in hex and pointers as alloc+offset.
func (s Scalar) String() string {
	switch s.kind {
	case ScalarIntKind:
		return s.bits.Data.Hex()
	case ScalarPtrKind:
		return s.ptr.String()
	default:
		return "<invalid scalar>"
	}
}

// ScalarMaybeUninit is a scalar that may not be initialized.
type ScalarMaybeUninit struct {
	s    Scalar
	init bool
}

// Uninit is the uninitialized scalar.
var Uninit = ScalarMaybeUninit{}

// Init wraps an initialized scalar.
func Init(s Scalar) ScalarMaybeUninit {
	return ScalarMaybeUninit{s: s, init: true}
}

// IsInit reports whether the scalar is initialized.
func (m ScalarMaybeUninit) IsInit() bool {
	return m.init
}

// Scalar returns the scalar and whether it is initialized.
func (m ScalarMaybeUninit) Scalar() (Scalar, bool) {
	return m.s, m.init
}

// String renders the scalar or "uninit".
func (m ScalarMaybeUninit) String() string {
	if !m.init {
		return "uninit"
	}
	return m.s.String()
}
