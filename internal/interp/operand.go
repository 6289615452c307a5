package interp

import (
	"fmt"

	"fortio.org/safecast"

	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// MemPlaceMeta is the dynamic metadata of a place: a slice length or a
// vtable pointer. Sized places have none.
type MemPlaceMeta struct {
	s   value.Scalar
	has bool
}

// MetaNone is the metadata of sized places.
var MetaNone = MemPlaceMeta{}

// MetaScalar wraps a metadata scalar.
func MetaScalar(s value.Scalar) MemPlaceMeta {
	return MemPlaceMeta{s: s, has: true}
}

// Has reports whether metadata is present.
func (m MemPlaceMeta) Has() bool {
	return m.has
}

// Scalar returns the metadata scalar; it panics on MetaNone.
func (m MemPlaceMeta) Scalar() value.Scalar {
	if !m.has {
		bug("expected place metadata, found none")
	}
	return m.s
}

func (m MemPlaceMeta) String() string {
	if !m.has {
		return "none"
	}
	return m.s.String()
}

// MemPlace is an address plus its metadata.
type MemPlace struct {
	Ptr  value.Pointer
	Meta MemPlaceMeta
}

// offset moves the place by off bytes and replaces its metadata.
func (mp MemPlace) offset(off int, meta MemPlaceMeta, ptrSize int) MemPlace {
	delta, err := safecast.Conv[uint64](off)
	if err != nil {
		bug("negative place offset %d", off)
	}
	return MemPlace{Ptr: mp.Ptr.WrappingOffset(delta, ptrSize), Meta: meta}
}

func (mp MemPlace) String() string {
	if mp.Meta.Has() {
		return fmt.Sprintf("%s (meta %s)", mp.Ptr, mp.Meta)
	}
	return mp.Ptr.String()
}

// MPlaceTy is a place with the layout of the value stored there and the
// alignment the place is known to have.
type MPlaceTy struct {
	MPlace MemPlace
	Layout *layout.TypeLayout
	Align  int
}

// NewMPlace builds a place aligned to the layout's alignment.
func NewMPlace(ptr value.Pointer, l *layout.TypeLayout) MPlaceTy {
	return MPlaceTy{MPlace: MemPlace{Ptr: ptr}, Layout: l, Align: l.Align}
}

// NewMPlaceWithMeta builds a place for an unsized value.
func NewMPlaceWithMeta(ptr value.Pointer, meta MemPlaceMeta, l *layout.TypeLayout) MPlaceTy {
	return MPlaceTy{MPlace: MemPlace{Ptr: ptr, Meta: meta}, Layout: l, Align: l.Align}
}

// Len returns the element count of an array, slice or str place.
func (m MPlaceTy) Len(cx *InterpCx) (uint64, error) {
	if m.Layout.IsUnsized() {
		if m.Layout.Fields.Kind != layout.FieldsArray {
			cx.bug(m.Layout, "len not supported on unsized type %s", cx.label(m.Layout))
		}
		n, ok := m.MPlace.Meta.Scalar().TryToInt()
		if !ok {
			return 0, unsupportedf(CodeReadPointerAsBytes, "slice length is a pointer")
		}
		length, ok := n.AssertBits(cx.ptrSize).Uint64()
		if !ok {
			cx.bug(m.Layout, "slice length exceeds 64 bits")
		}
		return length, nil
	}
	if m.Layout.Fields.Kind != layout.FieldsArray {
		cx.bug(m.Layout, "len not supported on sized type %s", cx.label(m.Layout))
	}
	return m.Layout.Fields.Count, nil
}

// OperandKind is the closed set of operand forms.
type OperandKind uint8

const (
	OperandImmediate OperandKind = iota
	OperandIndirect
)

// Operand is a computed value: an immediate or a place in memory.
type Operand struct {
	kind   OperandKind
	imm    Immediate
	mplace MemPlace
}

// Kind returns the operand form.
func (o Operand) Kind() OperandKind {
	return o.kind
}

// Immediate returns the immediate of an OperandImmediate.
func (o Operand) Immediate() (Immediate, bool) {
	return o.imm, o.kind == OperandImmediate
}

// MemPlace returns the place of an OperandIndirect.
func (o Operand) MemPlace() (MemPlace, bool) {
	return o.mplace, o.kind == OperandIndirect
}

func (o Operand) String() string {
	if o.kind == OperandIndirect {
		return "indirect " + o.mplace.String()
	}
	return o.imm.String()
}

// OpTy is an operand with its layout. Its operand is private: an indirect
// operand always carries an alignment, an immediate never does.
type OpTy struct {
	op     Operand
	Layout *layout.TypeLayout
	align  int
}

// OpFromImm wraps an immediate value.
func OpFromImm(imm ImmTy) OpTy {
	return OpTy{op: Operand{kind: OperandImmediate, imm: imm.Imm}, Layout: imm.Layout}
}

// OpFromMPlace wraps a memory place, keeping its alignment.
func OpFromMPlace(m MPlaceTy) OpTy {
	align := m.Align
	if align <= 0 {
		align = 1
	}
	return OpTy{op: Operand{kind: OperandIndirect, mplace: m.MPlace}, Layout: m.Layout, align: align}
}

// Operand returns a copy of the underlying operand.
func (o OpTy) Operand() Operand {
	return o.op
}

// Align returns the alignment override; immediates have none.
func (o OpTy) Align() (int, bool) {
	return o.align, o.op.kind == OperandIndirect
}

// IsImmediate reports whether the operand is held by copy.
func (o OpTy) IsImmediate() bool {
	return o.op.kind == OperandImmediate
}

// Immediate returns the typed immediate of an immediate operand.
func (o OpTy) Immediate() (ImmTy, bool) {
	if o.op.kind != OperandImmediate {
		return ImmTy{}, false
	}
	return ImmTy{Imm: o.op.imm, Layout: o.Layout}, true
}

// MPlace returns the place of an indirect operand.
func (o OpTy) MPlace() (MPlaceTy, bool) {
	if o.op.kind != OperandIndirect {
		return MPlaceTy{}, false
	}
	return MPlaceTy{MPlace: o.op.mplace, Layout: o.Layout, Align: o.align}, true
}

// OffsetWithMeta projects to the value at offset with layout l and the
// given metadata. Indirect operands move their address. Immediates can only
// be projected when uninitialized.
func (o OpTy) OffsetWithMeta(cx *InterpCx, offset int, meta MemPlaceMeta, l *layout.TypeLayout) OpTy {
	switch o.op.kind {
	case OperandIndirect:
		m, _ := o.MPlace()
		return OpFromMPlace(m.offsetWithMeta(cx, offset, meta, l))
	case OperandImmediate:
		if meta.Has() {
			cx.bug(o.Layout, "cannot offset an immediate with metadata")
		}
		if o.op.imm.kind != ImmUninitKind {
			cx.bug(o.Layout, "scalar projection at offset %d must go through memory", offset)
		}
		return OpFromImm(ImmTyUninit(l))
	default:
		cx.bug(o.Layout, "invalid operand kind %d", o.op.kind)
		return OpTy{}
	}
}

// Offset is OffsetWithMeta for sized layouts.
func (o OpTy) Offset(cx *InterpCx, offset int, l *layout.TypeLayout) OpTy {
	if l.IsUnsized() {
		cx.bug(l, "offset to an unsized layout needs metadata")
	}
	return o.OffsetWithMeta(cx, offset, MetaNone, l)
}

// Len returns the element count of an array, slice or str operand.
func (o OpTy) Len(cx *InterpCx) (uint64, error) {
	if o.Layout.IsUnsized() {
		m, ok := o.MPlace()
		if !ok {
			cx.bug(o.Layout, "unsized value held as an immediate")
		}
		return m.Len(cx)
	}
	if o.Layout.Fields.Kind != layout.FieldsArray {
		cx.bug(o.Layout, "len not supported on sized type %s", cx.label(o.Layout))
	}
	return o.Layout.Fields.Count, nil
}

func (m MPlaceTy) offsetWithMeta(cx *InterpCx, offset int, meta MemPlaceMeta, l *layout.TypeLayout) MPlaceTy {
	return MPlaceTy{
		MPlace: m.MPlace.offset(offset, meta, cx.ptrSize),
		Layout: l,
		Align:  restrictForOffset(m.Align, offset),
	}
}

// restrictForOffset returns the alignment known for an address offset bytes
// past one aligned to align.
func restrictForOffset(align, offset int) int {
	if offset == 0 {
		return align
	}
	low := offset & -offset
	if low < align {
		return low
	}
	return align
}
