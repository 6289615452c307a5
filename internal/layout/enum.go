package layout

import (
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// enumLayout picks between a single-variant layout, niche filling and a
// direct tag. Niche filling and the single-variant shortcut are disabled
// by an explicit repr.
func (e *Engine) enumLayout(id types.TypeID, state *layoutState) (*TypeLayout, error) {
	info, _ := e.types.EnumInfo(id)
	variants := make([]*TypeLayout, len(info.Variants))
	var present []int
	for i, v := range info.Variants {
		vl, err := e.univariant(id, variantFieldTypes(v), types.LayoutAttrs{}, nil, state)
		if err != nil {
			return nil, err
		}
		if vl.IsUnsized() {
			return nil, &LayoutError{Kind: LayoutErrUnsizedField, Type: id, Field: i}
		}
		vl.Variants = Variants{Kind: VariantsSingle, Index: VariantIdx(i)} //nolint:gosec // G115: variant counts are small
		variants[i] = vl
		if !e.uninhabitedVariant(v) {
			present = append(present, i)
		}
	}

	if len(present) == 0 {
		return &TypeLayout{
			Type:     id,
			Align:    1,
			Abi:      AggregateAbi(true),
			Fields:   FieldsShape{Kind: FieldsArbitrary},
			Variants: Variants{Kind: VariantsSingle},
		}, nil
	}
	hasRepr := info.Repr != types.NoTypeID
	if !hasRepr && len(present) == 1 {
		single := *variants[present[0]]
		return &single, nil
	}
	if !hasRepr {
		if l := e.nicheLayout(id, variants, present); l != nil {
			return l, nil
		}
	}
	return e.directLayout(id, info, present, state)
}

func variantFieldTypes(v types.Variant) []types.TypeID {
	out := make([]types.TypeID, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Type
	}
	return out
}

func (e *Engine) uninhabitedVariant(v types.Variant) bool {
	for _, f := range v.Fields {
		if tt, ok := e.types.Lookup(f.Type); ok && tt.Kind == types.KindNever {
			return true
		}
	}
	return false
}

// nicheLayout stores the tag inside the invalid patterns of the only
// non-zero-sized variant. It returns nil when that is impossible.
func (e *Engine) nicheLayout(id types.TypeID, variants []*TypeLayout, present []int) *TypeLayout {
	dataful := -1
	for _, i := range present {
		if variants[i].Size == 0 {
			continue
		}
		if dataful >= 0 {
			return nil
		}
		dataful = i
	}
	if dataful < 0 {
		return nil
	}
	dl := variants[dataful]
	if dl.LargestNiche == nil {
		return nil
	}

	first, last := -1, -1
	for _, i := range present {
		if i == dataful {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	count := value.U128(uint64(last - first + 1)) //nolint:gosec // G115: last >= first
	niche := dl.LargestNiche
	start, tag, ok := niche.Scalar.ReserveNiche(count)
	if !ok {
		return nil
	}

	abi := AggregateAbi(true)
	switch dl.Abi.Kind {
	case AbiScalar:
		abi = ScalarAbi(tag)
	case AbiScalarPair:
		if niche.Offset == 0 {
			abi = PairAbi(tag, dl.Abi.B)
		} else {
			abi = PairAbi(dl.Abi.A, tag)
		}
	case AbiAggregate:
	}
	return &TypeLayout{
		Type:   id,
		Size:   dl.Size,
		Align:  dl.Align,
		Abi:    abi,
		Fields: FieldsShape{Kind: FieldsArbitrary, Offsets: []int{niche.Offset}},
		Variants: Variants{
			Kind: VariantsMultiple,
			Tag:  tag,
			Encoding: TagEncoding{
				Kind:           TagNiche,
				DatafulVariant: VariantIdx(dataful),                                         //nolint:gosec // G115: variant counts are small
				NicheVariants:  VariantRange{Start: VariantIdx(first), End: VariantIdx(last)}, //nolint:gosec // G115: variant counts are small
				NicheStart:     start,
			},
			Layouts: variants,
		},
		LargestNiche: nicheOf(tag, niche.Offset),
	}
}

// discrTag picks the tag integer for the discriminants of the present
// variants: the repr when given, otherwise the smallest integer holding
// every value.
func (e *Engine) discrTag(id types.TypeID, info *types.EnumInfo, present []int) (Scalar, error) {
	discrs := e.types.Discriminants(id)
	minV, maxV := discrs[present[0]], discrs[present[0]]
	for _, i := range present[1:] {
		if discrs[i].CmpSigned(minV) < 0 {
			minV = discrs[i]
		}
		if discrs[i].CmpSigned(maxV) > 0 {
			maxV = discrs[i]
		}
	}

	var prim Primitive
	if info.Repr != types.NoTypeID {
		rl, err := e.LayoutOf(info.Repr)
		if err != nil {
			return Scalar{}, err
		}
		prim = rl.Abi.A.Value
		bits := bitsOf(prim.Size)
		for _, d := range discrs {
			fits := d.FitsUnsigned(bits)
			if prim.Signed {
				fits = d.FitsSigned(bits)
			}
			if !fits {
				return Scalar{}, &LayoutError{Kind: LayoutErrDiscriminantRange, Type: id}
			}
		}
	} else {
		signed := minV.CmpSigned(value.U128(0)) < 0
		for _, size := range []int{1, 2, 4, 8, 16} {
			bits := bitsOf(size)
			fits := maxV.FitsUnsigned(bits)
			if signed {
				fits = minV.FitsSigned(bits) && maxV.FitsSigned(bits)
			}
			if fits {
				prim = IntPrim(size, signed)
				break
			}
		}
		if prim.Size == 0 {
			return Scalar{}, &LayoutError{Kind: LayoutErrDiscriminantRange, Type: id}
		}
	}
	bits := bitsOf(prim.Size)
	return Scalar{
		Value:       prim,
		Valid:       WrappingRange{Start: minV.Truncate(bits), End: maxV.Truncate(bits)},
		Initialized: true,
	}, nil
}

func (e *Engine) directLayout(id types.TypeID, info *types.EnumInfo, present []int, state *layoutState) (*TypeLayout, error) {
	tag, err := e.discrTag(id, info, present)
	if err != nil {
		return nil, err
	}
	tagAlign := tag.Align(e.target)
	pre := &prefix{size: tag.Size(), align: tagAlign}

	size, align := tag.Size(), tagAlign
	variants := make([]*TypeLayout, len(info.Variants))
	for i, v := range info.Variants {
		vl, err := e.univariant(id, variantFieldTypes(v), types.LayoutAttrs{}, pre, state)
		if err != nil {
			return nil, err
		}
		vl.Variants = Variants{Kind: VariantsSingle, Index: VariantIdx(i)} //nolint:gosec // G115: variant counts are small
		variants[i] = vl
		size = max(size, vl.Size)
		align = max(align, vl.Align)
	}
	size = AlignTo(size, align)
	for _, vl := range variants {
		vl.Size = size
	}

	return &TypeLayout{
		Type:   id,
		Size:   size,
		Align:  align,
		Abi:    e.taggedAbi(tag, variants, present, size, align),
		Fields: FieldsShape{Kind: FieldsArbitrary, Offsets: []int{0}},
		Variants: Variants{
			Kind:     VariantsMultiple,
			Tag:      tag,
			Encoding: TagEncoding{Kind: TagDirect},
			Layouts:  variants,
		},
		LargestNiche: nicheOf(tag, 0),
	}, nil
}

// taggedAbi returns Scalar(tag) for field-less enums and ScalarPair(tag, x)
// when every variant holds at most one scalar of the same primitive at the
// same offset.
func (e *Engine) taggedAbi(tag Scalar, variants []*TypeLayout, present []int, size, align int) Abi {
	var (
		common      *Scalar
		commonOff   int
		initInAll   = true
		anyNonEmpty bool
	)
	for _, i := range present {
		var nonZST []int
		for j := range variants[i].Fields.Offsets {
			fl, err := e.FieldLayout(variants[i], j)
			if err != nil || fl.IsZST() {
				continue
			}
			nonZST = append(nonZST, j)
		}
		switch len(nonZST) {
		case 0:
			initInAll = false
			continue
		case 1:
		default:
			return AggregateAbi(true)
		}
		anyNonEmpty = true
		fl, _ := e.FieldLayout(variants[i], nonZST[0])
		if fl.Abi.Kind != AbiScalar {
			return AggregateAbi(true)
		}
		off := variants[i].Fields.Offsets[nonZST[0]]
		if common == nil {
			s := fl.Abi.A
			common, commonOff = &s, off
			continue
		}
		if common.Value != fl.Abi.A.Value || commonOff != off {
			return AggregateAbi(true)
		}
	}

	if !anyNonEmpty {
		if size == tag.Size() {
			return ScalarAbi(tag)
		}
		return AggregateAbi(true)
	}
	pairAlign := max(tag.Align(e.target), common.Align(e.target))
	second := PairSecondOffset(tag, *common, e.target)
	if commonOff != second || align != pairAlign || size != AlignTo(second+common.Size(), pairAlign) {
		return AggregateAbi(true)
	}
	b := InitScalar(common.Value)
	if !initInAll {
		b = UnionScalar(common.Value)
	}
	return PairAbi(tag, b)
}
