package interp

import (
	"fortio.org/safecast"

	"ctfe/internal/layout"
	"ctfe/internal/trace"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// ReadDiscriminant returns the discriminant of the enum value op, typed at
// the enum's discriminant type, and the index of its active variant.
func (cx *InterpCx) ReadDiscriminant(op OpTy) (value.Scalar, layout.VariantIdx, error) {
	span := trace.Begin(cx.tracer, trace.ScopeNode, "read_discriminant", 0)
	discr, idx, err := cx.readDiscriminant(op)
	if span.ID() != 0 {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		span.WithExtra("type", cx.label(op.Layout)).WithExtra("variant", formatIdx(idx)).End(detail)
	}
	return discr, idx, err
}

func (cx *InterpCx) readDiscriminant(op OpTy) (value.Scalar, layout.VariantIdx, error) {
	l := op.Layout
	discrTy := cx.types.DiscriminantType(l.Type)
	discrLayout := cx.mustLayoutOf(discrTy)

	v := l.Variants
	switch v.Kind {
	case layout.VariantsSingle:
		if info, ok := cx.types.EnumInfo(l.Type); ok && len(info.Variants) == 0 {
			return value.Scalar{}, 0, ubf(CodeUninhabitedEnum, "read discriminant of %s, which has no variants", cx.label(l))
		}
		bits, ok := cx.types.DiscriminantForVariant(l.Type, int(v.Index))
		if !ok {
			if v.Index != 0 {
				cx.bug(l, "%s has no variants but its layout is variant %d", cx.label(l), v.Index)
			}
			bits = value.U128(0)
		}
		return value.FromUint(bits.Truncate(bitsOfSize(discrLayout.Size)), discrLayout.Size), v.Index, nil
	case layout.VariantsMultiple:
	default:
		cx.bug(l, "unknown variants kind %d", v.Kind)
	}

	tagLayout := cx.mustLayoutOf(cx.layouts.PrimitiveIntType(v.Tag.Value))
	tagOp, err := cx.OperandField(op, v.TagField)
	if err != nil {
		return value.Scalar{}, 0, err
	}
	tagImm, err := cx.ReadImmediate(tagOp)
	if err != nil {
		return value.Scalar{}, 0, err
	}
	if tagImm.Layout.Size != tagLayout.Size {
		cx.bug(l, "tag layout size %d does not match the tag scalar size %d", tagLayout.Size, tagImm.Layout.Size)
	}
	if tagImm.Layout.Abi.IsSigned() != tagLayout.Abi.IsSigned() {
		cx.bug(l, "tag signedness does not match the tag scalar")
	}
	rawTag := tagImm.Imm.ToScalarOrUninit()
	tagVal, err := tagImm.ToScalar()
	if err != nil {
		return value.Scalar{}, 0, err
	}

	switch v.Encoding.Kind {
	case layout.TagDirect:
		return cx.directDiscriminant(l, tagVal, rawTag, tagLayout, discrTy)
	case layout.TagNiche:
		return cx.nicheDiscriminant(l, tagVal, rawTag, tagLayout, discrLayout)
	default:
		cx.bug(l, "unknown tag encoding %d", v.Encoding.Kind)
		return value.Scalar{}, 0, nil
	}
}

// directDiscriminant reinterprets the tag bits at the discriminant type and
// looks the value up in the variant table.
func (cx *InterpCx) directDiscriminant(l *layout.TypeLayout, tagVal value.Scalar, raw value.ScalarMaybeUninit, tagLayout *layout.TypeLayout, discrTy types.TypeID) (value.Scalar, layout.VariantIdx, error) {
	tagInt, ok := tagVal.TryToInt()
	if !ok {
		return value.Scalar{}, 0, invalidTag(raw)
	}
	discr := cx.CastFromIntLike(tagInt.AssertBits(tagLayout.Size), tagLayout, discrTy)
	discrSize := discr.Size()
	discrBits := discr.AssertBits(discrSize)
	for i, d := range cx.types.Discriminants(l.Type) {
		if d.Truncate(bitsOfSize(discrSize)) != discrBits {
			continue
		}
		idx, err := safecast.Conv[layout.VariantIdx](i)
		if err != nil {
			cx.bug(l, "variant index %d: %v", i, err)
		}
		if int(idx) >= len(l.Variants.Layouts) {
			cx.bug(l, "variant %d past the declared variant count", idx)
		}
		return discr, idx, nil
	}
	return value.Scalar{}, 0, invalidTag(raw)
}

// nicheDiscriminant maps a niche tag to its variant. Tags inside the
// reserved range select a niche variant; every other tag selects the
// dataful variant.
func (cx *InterpCx) nicheDiscriminant(l *layout.TypeLayout, tagVal value.Scalar, raw value.ScalarMaybeUninit, tagLayout, discrLayout *layout.TypeLayout) (value.Scalar, layout.VariantIdx, error) {
	enc := l.Variants.Encoding
	variantsStart := uint64(enc.NicheVariants.Start)
	variantsEnd := uint64(enc.NicheVariants.End)

	var idx layout.VariantIdx
	if tagInt, ok := tagVal.TryToInt(); ok {
		tagBits := tagInt.AssertBits(tagLayout.Size)
		tagImm := ImmTyFromUint(tagBits, tagLayout)
		nicheStart := ImmTyFromUint(enc.NicheStart.Truncate(bitsOfSize(tagLayout.Size)), tagLayout)
		relImm, err := cx.BinaryOp(BinSub, tagImm, nicheStart)
		if err != nil {
			return value.Scalar{}, 0, err
		}
		rel, err := relImm.ToScalar()
		if err != nil {
			return value.Scalar{}, 0, err
		}
		relative := rel.AssertBits(tagLayout.Size)
		if relative.Cmp(value.U128(variantsEnd-variantsStart)) <= 0 {
			r, _ := relative.Uint64()
			vi, err := safecast.Conv[layout.VariantIdx](variantsStart + r)
			if err != nil {
				cx.bug(l, "overflow computing absolute variant index: %v", err)
			}
			if int(vi) >= len(l.Variants.Layouts) {
				cx.bug(l, "niche variant %d past the declared variant count %d", vi, len(l.Variants.Layouts))
			}
			idx = vi
		} else {
			idx = enc.DatafulVariant
		}
	} else {
		// Only a single niche value at zero can be told apart from a
		// pointer, and only when the pointer is known to be non-null.
		ptr := tagVal.ToPointer()
		if !enc.NicheStart.IsZero() || variantsStart != variantsEnd || cx.mem.PointerMayBeNull(ptr) {
			return value.Scalar{}, 0, invalidTag(raw)
		}
		idx = enc.DatafulVariant
	}
	return value.FromUint(value.U128(uint64(idx)), discrLayout.Size), idx, nil
}

func bitsOfSize(size int) uint {
	n, err := safecast.Conv[uint](size)
	if err != nil {
		bug("negative scalar size %d", size)
	}
	return n * 8
}

func formatIdx(idx layout.VariantIdx) string {
	return value.U128(uint64(idx)).String()
}
