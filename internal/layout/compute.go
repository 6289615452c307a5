package layout

import (
	"fortio.org/safecast"

	"ctfe/internal/types"
	"ctfe/internal/value"
)

type pointeeMetaKind uint8

const (
	metaNone pointeeMetaKind = iota
	metaLen
	metaVtable
)

// pointeeMeta classifies the metadata a pointer to id carries, following
// the unsized tail of structs and tuples.
func (e *Engine) pointeeMeta(id types.TypeID) pointeeMetaKind {
	for depth := 0; depth < 64; depth++ {
		tt, ok := e.types.Lookup(id)
		if !ok {
			return metaNone
		}
		switch tt.Kind {
		case types.KindStr, types.KindSlice:
			return metaLen
		case types.KindDyn:
			return metaVtable
		case types.KindStruct:
			info, _ := e.types.StructInfo(id)
			if len(info.Fields) == 0 {
				return metaNone
			}
			id = info.Fields[len(info.Fields)-1].Type
		case types.KindTuple:
			info, _ := e.types.TupleInfo(id)
			id = info.Elems[len(info.Elems)-1]
		default:
			return metaNone
		}
	}
	return metaNone
}

func (e *Engine) computeLayout(id types.TypeID, state *layoutState) (*TypeLayout, error) {
	tt, ok := e.types.Lookup(id)
	if !ok {
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}

	switch tt.Kind {
	case types.KindUnit, types.KindNever:
		return &TypeLayout{
			Type:   id,
			Size:   0,
			Align:  1,
			Abi:    AggregateAbi(true),
			Fields: FieldsShape{Kind: FieldsArbitrary},
		}, nil

	case types.KindBool:
		s := Scalar{Value: IntPrim(1, false), Valid: WrappingRange{End: value.U128(1)}, Initialized: true}
		return e.scalarType(id, s), nil

	case types.KindChar:
		s := Scalar{Value: IntPrim(4, false), Valid: WrappingRange{End: value.U128(0x10FFFF)}, Initialized: true}
		return e.scalarType(id, s), nil

	case types.KindInt, types.KindUint:
		size := e.target.PtrSize
		if tt.Width != types.WidthAny {
			size = int(tt.Width) / 8
		}
		return e.scalarType(id, InitScalar(IntPrim(size, tt.Kind == types.KindInt))), nil

	case types.KindFloat:
		if tt.Width == types.Width32 {
			return e.scalarType(id, InitScalar(Primitive{Kind: PrimF32, Size: 4})), nil
		}
		return e.scalarType(id, InitScalar(Primitive{Kind: PrimF64, Size: 8})), nil

	case types.KindPointer, types.KindReference:
		return e.pointerLayout(id, tt), nil

	case types.KindStr:
		return e.unsizedArrayLayout(id, e.types.Builtins().U8, state)

	case types.KindSlice:
		return e.unsizedArrayLayout(id, tt.Elem, state)

	case types.KindDyn:
		return &TypeLayout{
			Type:   id,
			Align:  1,
			Abi:    AggregateAbi(false),
			Fields: FieldsShape{Kind: FieldsArbitrary},
		}, nil

	case types.KindArray:
		return e.arrayFixedLayout(id, tt.Elem, tt.Count, state)

	case types.KindTuple:
		info, _ := e.types.TupleInfo(id)
		return e.univariant(id, info.Elems, types.LayoutAttrs{}, nil, state)

	case types.KindStruct:
		info, _ := e.types.StructInfo(id)
		fields := make([]types.TypeID, len(info.Fields))
		for i, f := range info.Fields {
			fields[i] = f.Type
		}
		return e.univariant(id, fields, info.Attrs, nil, state)

	case types.KindEnum:
		return e.enumLayout(id, state)

	case types.KindMaybeUninit:
		return e.maybeUninitLayout(id, tt.Elem, state)

	default:
		return nil, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
	}
}

func (e *Engine) scalarType(id types.TypeID, s Scalar) *TypeLayout {
	return &TypeLayout{
		Type:         id,
		Size:         s.Size(),
		Align:        s.Align(e.target),
		Abi:          ScalarAbi(s),
		Fields:       FieldsShape{Kind: FieldsPrimitive},
		LargestNiche: nicheOf(s, 0),
	}
}

func (e *Engine) ptrScalar(nonNull bool) Scalar {
	s := InitScalar(Primitive{Kind: PrimPointer, Size: e.target.PtrSize})
	if nonNull {
		s.Valid.Start = value.U128(1)
	}
	return s
}

func (e *Engine) pointerLayout(id types.TypeID, tt types.Type) *TypeLayout {
	data := e.ptrScalar(tt.Kind == types.KindReference)
	var meta Scalar
	switch e.pointeeMeta(tt.Elem) {
	case metaNone:
		return e.scalarType(id, data)
	case metaLen:
		meta = InitScalar(IntPrim(e.target.PtrSize, false))
	case metaVtable:
		meta = e.ptrScalar(true)
	}
	ptr := e.target.PtrSize
	return &TypeLayout{
		Type:         id,
		Size:         2 * ptr,
		Align:        e.target.PtrAlign,
		Abi:          PairAbi(data, meta),
		Fields:       FieldsShape{Kind: FieldsArbitrary, Offsets: []int{0, ptr}},
		LargestNiche: largerNiche(nicheOf(data, 0), nicheOf(meta, ptr)),
	}
}

func (e *Engine) unsizedArrayLayout(id, elem types.TypeID, state *layoutState) (*TypeLayout, error) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return nil, err
	}
	if el.IsUnsized() {
		return nil, &LayoutError{Kind: LayoutErrUnsizedField, Type: id}
	}
	return &TypeLayout{
		Type:   id,
		Align:  el.Align,
		Abi:    AggregateAbi(false),
		Fields: FieldsShape{Kind: FieldsArray, Stride: AlignTo(el.Size, el.Align)},
	}, nil
}

// maxObjectSize bounds every type to half the address space of the target.
func (e *Engine) maxObjectSize() int {
	if e.target.PtrSize >= 8 {
		return 1 << 47
	}
	return 1<<(uint(e.target.PtrSize)*8-1) - 1 //nolint:gosec // G115: pointer size is 2, 4 or 8
}

func (e *Engine) arrayFixedLayout(id, elem types.TypeID, length uint64, state *layoutState) (*TypeLayout, error) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return nil, err
	}
	if el.IsUnsized() {
		return nil, &LayoutError{Kind: LayoutErrUnsizedField, Type: id}
	}
	n, convErr := safecast.Conv[int](length)
	if convErr != nil {
		return nil, &LayoutError{Kind: LayoutErrLengthConversion, Type: id, Err: convErr}
	}
	stride := AlignTo(el.Size, el.Align)
	if stride > 0 && n > e.maxObjectSize()/stride {
		return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id}
	}
	l := &TypeLayout{
		Type:   id,
		Size:   stride * n,
		Align:  el.Align,
		Abi:    AggregateAbi(true),
		Fields: FieldsShape{Kind: FieldsArray, Stride: stride, Count: length},
	}
	if n > 0 {
		l.LargestNiche = el.LargestNiche
	}
	return l, nil
}

// prefix reserves room for an enum tag in front of the fields.
type prefix struct {
	size  int
	align int
}

// univariant lays out fields in declaration order.
func (e *Engine) univariant(id types.TypeID, fields []types.TypeID, attrs types.LayoutAttrs, pre *prefix, state *layoutState) (*TypeLayout, error) {
	if attrs.Packed && attrs.AlignOverride != nil {
		return nil, &LayoutError{Kind: LayoutErrConflictingAttrs, Type: id}
	}
	fls := make([]*TypeLayout, len(fields))
	for i, f := range fields {
		fl, err := e.layoutOf(f, state)
		if err != nil {
			return nil, err
		}
		fls[i] = fl
	}

	offset := 0
	align := 1
	if pre != nil {
		offset = pre.size
		align = pre.align
	}
	offsets := make([]int, len(fls))
	sized := true
	var niche *Niche
	for i, fl := range fls {
		if fl.IsUnsized() {
			if i != len(fls)-1 {
				return nil, &LayoutError{Kind: LayoutErrUnsizedField, Type: id, Field: i}
			}
			sized = false
		}
		fAlign := fl.Align
		if attrs.Packed {
			fAlign = 1
		}
		offset = AlignTo(offset, fAlign)
		offsets[i] = offset
		if fl.LargestNiche != nil {
			niche = largerNiche(niche, &Niche{Offset: offset + fl.LargestNiche.Offset, Scalar: fl.LargestNiche.Scalar})
		}
		offset += fl.Size
		align = max(align, fAlign)
	}
	if attrs.AlignOverride != nil {
		align = max(align, *attrs.AlignOverride)
	}
	size := offset
	if sized {
		size = AlignTo(offset, align)
	}
	if size > e.maxObjectSize() {
		return nil, &LayoutError{Kind: LayoutErrTooLarge, Type: id}
	}

	abi := AggregateAbi(sized)
	if sized && pre == nil {
		abi = e.univariantAbi(fls, offsets, size, align)
	}
	return &TypeLayout{
		Type:         id,
		Size:         size,
		Align:        align,
		Abi:          abi,
		Fields:       FieldsShape{Kind: FieldsArbitrary, Offsets: offsets},
		LargestNiche: niche,
	}, nil
}

// univariantAbi lets newtypes inherit the ABI of their only non-zero-sized
// field and packs two scalar fields into a ScalarPair.
func (e *Engine) univariantAbi(fls []*TypeLayout, offsets []int, size, align int) Abi {
	var nonZST []int
	for i, fl := range fls {
		if !fl.IsZST() {
			nonZST = append(nonZST, i)
		}
	}
	switch len(nonZST) {
	case 1:
		f := fls[nonZST[0]]
		if offsets[nonZST[0]] == 0 && f.Size == size && f.Align == align &&
			(f.Abi.Kind == AbiScalar || f.Abi.Kind == AbiScalarPair) {
			return f.Abi
		}
	case 2:
		a, b := fls[nonZST[0]], fls[nonZST[1]]
		if a.Abi.Kind != AbiScalar || b.Abi.Kind != AbiScalar {
			break
		}
		pairAlign := max(a.Abi.A.Align(e.target), b.Abi.A.Align(e.target))
		second := PairSecondOffset(a.Abi.A, b.Abi.A, e.target)
		if offsets[nonZST[0]] == 0 && offsets[nonZST[1]] == second &&
			align == pairAlign && size == AlignTo(second+b.Size, pairAlign) {
			return PairAbi(a.Abi.A, b.Abi.A)
		}
	}
	return AggregateAbi(true)
}

func (e *Engine) maybeUninitLayout(id, elem types.TypeID, state *layoutState) (*TypeLayout, error) {
	el, err := e.layoutOf(elem, state)
	if err != nil {
		return nil, err
	}
	if el.IsUnsized() {
		return nil, &LayoutError{Kind: LayoutErrUnsizedField, Type: id}
	}
	abi := AggregateAbi(true)
	switch el.Abi.Kind {
	case AbiScalar:
		abi = ScalarAbi(UnionScalar(el.Abi.A.Value))
	case AbiScalarPair:
		abi = PairAbi(UnionScalar(el.Abi.A.Value), UnionScalar(el.Abi.B.Value))
	case AbiAggregate:
	}
	return &TypeLayout{
		Type:   id,
		Size:   el.Size,
		Align:  el.Align,
		Abi:    abi,
		Fields: FieldsShape{Kind: FieldsArbitrary, Offsets: []int{0}},
	}, nil
}
