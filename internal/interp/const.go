package interp

import (
	"fmt"

	"ctfe/internal/layout"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// ConstKind is the closed set of constant representations.
type ConstKind uint8

const (
	ConstScalarKind ConstKind = iota
	ConstZeroSizedKind
	ConstSliceKind
	ConstByRefKind
)

// ConstValue is an evaluated constant. Scalar is set for ConstScalarKind;
// Alloc with Start and End for slices; Alloc with Offset for by-ref
// constants living in memory.
type ConstValue struct {
	Kind   ConstKind
	Scalar value.Scalar
	Alloc  value.AllocID
	Start  uint64
	End    uint64
	Offset uint64
}

// ConstScalar is a constant held in one scalar.
func ConstScalar(s value.Scalar) ConstValue {
	return ConstValue{Kind: ConstScalarKind, Scalar: s}
}

// ConstZeroSized is the constant of a zero-sized type.
func ConstZeroSized() ConstValue {
	return ConstValue{Kind: ConstZeroSizedKind}
}

// ConstSlice is a &[T] or &str constant covering bytes [start, end) of alloc.
func ConstSlice(alloc value.AllocID, start, end uint64) ConstValue {
	return ConstValue{Kind: ConstSliceKind, Alloc: alloc, Start: start, End: end}
}

// ConstByRef is a constant stored in alloc at offset.
func ConstByRef(alloc value.AllocID, offset uint64) ConstValue {
	return ConstValue{Kind: ConstByRefKind, Alloc: alloc, Offset: offset}
}

func (c ConstValue) String() string {
	switch c.Kind {
	case ConstScalarKind:
		return c.Scalar.String()
	case ConstZeroSizedKind:
		return "zst"
	case ConstSliceKind:
		return fmt.Sprintf("slice(%s[%d..%d])", c.Alloc, c.Start, c.End)
	case ConstByRefKind:
		return fmt.Sprintf("by_ref(%s+0x%x)", c.Alloc, c.Offset)
	default:
		return "?"
	}
}

// ConstValToOp turns a constant of type ty into an operand. known, when not
// nil, is the already computed layout of ty.
func (cx *InterpCx) ConstValToOp(c ConstValue, ty types.TypeID, known *layout.TypeLayout) (OpTy, error) {
	l, err := cx.fromKnownLayout(ty, known)
	if err != nil {
		return OpTy{}, err
	}
	switch c.Kind {
	case ConstByRefKind:
		return OpFromMPlace(NewMPlace(value.PtrTo(c.Alloc, c.Offset), l)), nil
	case ConstScalarKind:
		return OpFromImm(ImmTyFromImmediate(ImmFromScalar(c.Scalar), l)), nil
	case ConstZeroSizedKind:
		return OpFromImm(ImmTyUninit(l)), nil
	case ConstSliceKind:
		if c.End < c.Start {
			cx.bug(l, "slice constant ends at %d before its start %d", c.End, c.Start)
		}
		imm := NewSlice(value.PtrTo(c.Alloc, c.Start), c.End-c.Start, cx.ptrSize)
		return OpFromImm(ImmTyFromImmediate(imm, l)), nil
	default:
		cx.bug(l, "unknown constant kind %d", c.Kind)
		return OpTy{}, nil
	}
}

func (cx *InterpCx) fromKnownLayout(ty types.TypeID, known *layout.TypeLayout) (*layout.TypeLayout, error) {
	if known == nil {
		return cx.LayoutOf(ty)
	}
	if known.Type != ty {
		cx.bug(known, "layout of %s passed for %s", cx.label(known), types.Label(cx.types, ty))
	}
	return known, nil
}
