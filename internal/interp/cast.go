package interp

import (
	"ctfe/internal/layout"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// CastFromIntLike reinterprets integer bits of layout src as type dst:
// sign-extended when src is signed, then truncated to the width of dst.
// dst must be an integer, bool or char type.
func (cx *InterpCx) CastFromIntLike(bits value.Uint128, src *layout.TypeLayout, dst types.TypeID) value.Scalar {
	if src.Abi.IsSigned() {
		bits = bits.SignExtend(bitsOfSize(src.Size))
	}
	dt, ok := cx.types.Lookup(dst)
	if !ok {
		bug("cast to unknown type %d", dst)
	}
	switch dt.Kind {
	case types.KindInt, types.KindUint, types.KindBool, types.KindChar:
	default:
		bug("int-like cast to %s", types.Label(cx.types, dst))
	}
	dstLayout := cx.mustLayoutOf(dst)
	return value.FromUint(bits.Truncate(bitsOfSize(dstLayout.Size)), dstLayout.Size)
}

// IntToInt casts an integer immediate to another integer type.
func (cx *InterpCx) IntToInt(src ImmTy, dst types.TypeID) (ImmTy, error) {
	s, err := src.ToScalar()
	if err != nil {
		return ImmTy{}, err
	}
	i, ok := s.TryToInt()
	if !ok {
		return ImmTy{}, unsupportedf(CodePointerArithmetic, "casting a pointer with provenance to an integer is not supported")
	}
	dstLayout, err := cx.LayoutOf(dst)
	if err != nil {
		return ImmTy{}, err
	}
	return ImmTyFromScalar(cx.CastFromIntLike(i.AssertBits(src.Layout.Size), src.Layout, dst), dstLayout), nil
}
