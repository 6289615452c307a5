package interp

import (
	"ctfe/internal/layout"
)

// OperandField projects op to its field i.
func (cx *InterpCx) OperandField(op OpTy, i int) (OpTy, error) {
	fieldLayout, err := cx.layouts.FieldLayout(op.Layout, i)
	if err != nil {
		cx.bug(op.Layout, "field %d: %v", i, err)
	}
	if m, ok := op.MPlace(); ok {
		return OpFromMPlace(cx.mplaceField(m, i, fieldLayout)), nil
	}

	imm, _ := op.Immediate()
	if fieldLayout.IsZST() {
		return OpFromImm(ImmTyUninit(fieldLayout)), nil
	}
	offset := op.Layout.Fields.Offset(i)
	if offset == 0 && fieldLayout.Size == op.Layout.Size {
		// the field covers the entire value
		return OpFromImm(ImmTyFromImmediate(imm.Imm, fieldLayout)), nil
	}
	switch imm.Imm.kind {
	case ImmUninitKind:
		return OpFromImm(ImmTyUninit(fieldLayout)), nil
	case ImmScalarPairKind:
		if op.Layout.Abi.Kind != layout.AbiScalarPair || fieldLayout.Abi.Kind != layout.AbiScalar {
			cx.bug(op.Layout, "scalar pair immediate for field %d of a non-pair layout", i)
		}
		a, b := op.Layout.Abi.A, op.Layout.Abi.B
		if offset == 0 {
			if fieldLayout.Size != a.Size() {
				cx.bug(op.Layout, "field %d size %d does not match the first scalar", i, fieldLayout.Size)
			}
			return OpFromImm(ImmTyFromImmediate(ImmScalar(imm.Imm.a), fieldLayout)), nil
		}
		if offset != layout.PairSecondOffset(a, b, cx.layouts.Target()) || fieldLayout.Size != b.Size() {
			cx.bug(op.Layout, "field %d at offset %d does not match the second scalar", i, offset)
		}
		return OpFromImm(ImmTyFromImmediate(ImmScalar(imm.Imm.b), fieldLayout)), nil
	default:
		cx.bug(op.Layout, "field access on non-aggregate %s", imm.Imm)
		return OpTy{}, nil
	}
}

// mplaceField projects a place to field i. An unsized field keeps the
// parent's metadata and is placed at its own alignment.
func (cx *InterpCx) mplaceField(m MPlaceTy, i int, fieldLayout *layout.TypeLayout) MPlaceTy {
	offset := m.Layout.Fields.Offset(i)
	meta := MetaNone
	if fieldLayout.IsUnsized() {
		meta = m.MPlace.Meta
		if fieldLayout.Fields.Kind == layout.FieldsArray {
			offset = layout.AlignTo(offset, fieldLayout.Align)
		}
	}
	return m.offsetWithMeta(cx, offset, meta, fieldLayout)
}
