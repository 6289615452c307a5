package layout

import (
	"fmt"

	"ctfe/internal/value"
)

// PrimitiveKind is the machine class of a scalar.
type PrimitiveKind uint8

const (
	PrimInt PrimitiveKind = iota
	PrimF32
	PrimF64
	PrimPointer
)

// Primitive is one machine value class with its byte size.
type Primitive struct {
	Kind   PrimitiveKind
	Size   int
	Signed bool
}

// IntPrim returns an integer primitive.
func IntPrim(size int, signed bool) Primitive {
	return Primitive{Kind: PrimInt, Size: size, Signed: signed}
}

// IsInt reports whether p is an integer primitive.
func (p Primitive) IsInt() bool {
	return p.Kind == PrimInt
}

// IsPtr reports whether p is a pointer primitive.
func (p Primitive) IsPtr() bool {
	return p.Kind == PrimPointer
}

// Align returns the ABI alignment of p on target t.
func (p Primitive) Align(t Target) int {
	if p.Kind == PrimPointer {
		return t.PtrAlign
	}
	return p.Size
}

func (p Primitive) String() string {
	switch p.Kind {
	case PrimInt:
		if p.Signed {
			return fmt.Sprintf("i%d", p.Size*8)
		}
		return fmt.Sprintf("u%d", p.Size*8)
	case PrimF32:
		return "f32"
	case PrimF64:
		return "f64"
	case PrimPointer:
		return "ptr"
	default:
		return fmt.Sprintf("Primitive(%d)", p.Kind)
	}
}

// WrappingRange is an inclusive range of valid bit patterns that may wrap
// around the maximum value of its width: Start > End means
// [Start, max] plus [0, End].
type WrappingRange struct {
	Start value.Uint128
	End   value.Uint128
}

// FullRange returns the range accepting every pattern of size bytes.
func FullRange(size int) WrappingRange {
	return WrappingRange{Start: value.U128(0), End: value.Mask(bitsOf(size))}
}

// Contains reports whether v lies in the range.
func (r WrappingRange) Contains(v value.Uint128) bool {
	if r.Start.Cmp(r.End) <= 0 {
		return r.Start.Cmp(v) <= 0 && v.Cmp(r.End) <= 0
	}
	return r.Start.Cmp(v) <= 0 || v.Cmp(r.End) <= 0
}

// IsFull reports whether the range accepts every pattern of size bytes.
func (r WrappingRange) IsFull(size int) bool {
	mask := value.Mask(bitsOf(size))
	return r.End.Add(value.U128(1)).And(mask) == r.Start
}

func (r WrappingRange) String() string {
	return fmt.Sprintf("%s..=%s", r.Start, r.End)
}

// Scalar describes one primitive stored in a layout and the bit patterns it
// may hold. Initialized is false for the scalars of maybe-uninit wrappers,
// which accept any byte state.
type Scalar struct {
	Value       Primitive
	Valid       WrappingRange
	Initialized bool
}

// InitScalar returns an initialized scalar accepting every pattern.
func InitScalar(p Primitive) Scalar {
	return Scalar{Value: p, Valid: FullRange(p.Size), Initialized: true}
}

// UnionScalar returns the scalar of a maybe-uninit wrapper around p.
func UnionScalar(p Primitive) Scalar {
	return Scalar{Value: p, Valid: FullRange(p.Size)}
}

// Size returns the scalar's byte size.
func (s Scalar) Size() int {
	return s.Value.Size
}

// Align returns the scalar's ABI alignment on target t.
func (s Scalar) Align(t Target) int {
	return s.Value.Align(t)
}

// AvailableNiche returns how many bit patterns lie outside the valid range.
func (s Scalar) AvailableNiche() value.Uint128 {
	if !s.Initialized {
		return value.Uint128{}
	}
	n := bitsOf(s.Size())
	// patterns in (End, Start) exclusive
	return s.Valid.Start.Sub(s.Valid.End).Sub(value.U128(1)).Truncate(n)
}

// ReserveNiche claims count invalid patterns directly after the valid range.
// It returns the first claimed pattern and the scalar with its valid range
// grown to include the claimed patterns.
func (s Scalar) ReserveNiche(count value.Uint128) (value.Uint128, Scalar, bool) {
	if count.IsZero() || s.AvailableNiche().Cmp(count) < 0 {
		return value.Uint128{}, s, false
	}
	n := bitsOf(s.Size())
	start := s.Valid.End.Add(value.U128(1)).Truncate(n)
	s.Valid.End = s.Valid.End.Add(count).Truncate(n)
	return start, s, true
}

func (s Scalar) String() string {
	if !s.Initialized {
		return fmt.Sprintf("union %s", s.Value)
	}
	if s.Valid.IsFull(s.Size()) {
		return s.Value.String()
	}
	return fmt.Sprintf("%s(%s)", s.Value, s.Valid)
}

// AbiKind is the closed set of ABI shapes.
type AbiKind uint8

const (
	AbiScalar AbiKind = iota
	AbiScalarPair
	AbiAggregate
)

func (k AbiKind) String() string {
	switch k {
	case AbiScalar:
		return "Scalar"
	case AbiScalarPair:
		return "ScalarPair"
	case AbiAggregate:
		return "Aggregate"
	default:
		return fmt.Sprintf("AbiKind(%d)", k)
	}
}

// Abi is the register-level shape of a layout. A is set for Scalar, A and B
// for ScalarPair; Sized is meaningful for Aggregate only.
type Abi struct {
	Kind  AbiKind
	A     Scalar
	B     Scalar
	Sized bool
}

// ScalarAbi returns a Scalar ABI.
func ScalarAbi(s Scalar) Abi {
	return Abi{Kind: AbiScalar, A: s, Sized: true}
}

// PairAbi returns a ScalarPair ABI.
func PairAbi(a, b Scalar) Abi {
	return Abi{Kind: AbiScalarPair, A: a, B: b, Sized: true}
}

// AggregateAbi returns an Aggregate ABI.
func AggregateAbi(sized bool) Abi {
	return Abi{Kind: AbiAggregate, Sized: sized}
}

// IsUnsized reports whether values of this ABI have a dynamic size.
func (a Abi) IsUnsized() bool {
	return a.Kind == AbiAggregate && !a.Sized
}

// IsSigned reports whether the ABI is a single signed integer scalar.
func (a Abi) IsSigned() bool {
	return a.Kind == AbiScalar && a.A.Value.IsInt() && a.A.Value.Signed
}

func (a Abi) String() string {
	switch a.Kind {
	case AbiScalar:
		return fmt.Sprintf("Scalar(%s)", a.A)
	case AbiScalarPair:
		return fmt.Sprintf("ScalarPair(%s, %s)", a.A, a.B)
	default:
		if !a.Sized {
			return "Aggregate(unsized)"
		}
		return "Aggregate"
	}
}

// PairSecondOffset is the byte offset of the second scalar of a pair.
func PairSecondOffset(a, b Scalar, t Target) int {
	return AlignTo(a.Size(), b.Align(t))
}

// Niche is a scalar inside a layout with invalid patterns to spare.
type Niche struct {
	Offset int
	Scalar Scalar
}

// Available returns the number of spare patterns.
func (n *Niche) Available() value.Uint128 {
	if n == nil {
		return value.Uint128{}
	}
	return n.Scalar.AvailableNiche()
}

func nicheOf(s Scalar, offset int) *Niche {
	n := &Niche{Offset: offset, Scalar: s}
	if n.Available().IsZero() {
		return nil
	}
	return n
}

func largerNiche(a, b *Niche) *Niche {
	if b == nil {
		return a
	}
	if a == nil || b.Available().Cmp(a.Available()) > 0 {
		return b
	}
	return a
}

// AlignTo rounds n up to a multiple of align.
func AlignTo(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func bitsOf(size int) uint {
	if size <= 0 {
		return 0
	}
	return uint(size) * 8 //nolint:gosec // G115: size is at most 16
}
