package layout

import (
	"fmt"

	"ctfe/internal/types"
	"ctfe/internal/value"
)

// FieldsKind distinguishes how field offsets are described.
type FieldsKind uint8

const (
	// FieldsPrimitive has no fields (integers, floats, thin pointers).
	FieldsPrimitive FieldsKind = iota
	// FieldsArbitrary lists one offset per field.
	FieldsArbitrary
	// FieldsArray places Count fields of the same layout Stride bytes apart.
	FieldsArray
)

// FieldsShape locates the fields of a layout.
type FieldsShape struct {
	Kind    FieldsKind
	Offsets []int
	Stride  int
	Count   uint64
}

// Len returns the number of fields. Unsized arrays report zero.
func (f FieldsShape) Len() int {
	switch f.Kind {
	case FieldsArbitrary:
		return len(f.Offsets)
	case FieldsArray:
		return int(f.Count) //nolint:gosec // G115: array lengths are bounded by the target size
	default:
		return 0
	}
}

// Offset returns the byte offset of field i.
func (f FieldsShape) Offset(i int) int {
	switch f.Kind {
	case FieldsArbitrary:
		return f.Offsets[i]
	case FieldsArray:
		return f.Stride * i
	default:
		panic(fmt.Sprintf("layout: primitive has no field %d", i))
	}
}

// VariantIdx is the index of an enum variant in declaration order.
type VariantIdx uint32

// VariantRange is an inclusive range of variant indices.
type VariantRange struct {
	Start VariantIdx
	End   VariantIdx
}

// TagEncodingKind is the closed set of tag encodings.
type TagEncodingKind uint8

const (
	// TagDirect stores the discriminant itself in the tag field.
	TagDirect TagEncodingKind = iota
	// TagNiche reuses invalid patterns of the dataful variant's field.
	TagNiche
)

// TagEncoding tells how a tag field value maps to a variant. The Niche
// fields are meaningful for TagNiche only.
type TagEncoding struct {
	Kind           TagEncodingKind
	DatafulVariant VariantIdx
	NicheVariants  VariantRange
	NicheStart     value.Uint128
}

// VariantsKind is the closed set of variant encodings.
type VariantsKind uint8

const (
	// VariantsSingle means only one variant exists physically.
	VariantsSingle VariantsKind = iota
	// VariantsMultiple stores a tag field selecting the active variant.
	VariantsMultiple
)

// Variants describes the variant structure of a layout. Non-enums are
// Single with Index 0.
type Variants struct {
	Kind     VariantsKind
	Index    VariantIdx
	Tag      Scalar
	Encoding TagEncoding
	TagField int
	Layouts  []*TypeLayout
}

// TypeLayout is the ABI layout of a type for a specific Target. Layouts are
// shared between interpretation contexts and must not be modified.
type TypeLayout struct {
	Type         types.TypeID
	Size         int
	Align        int
	Abi          Abi
	Fields       FieldsShape
	Variants     Variants
	LargestNiche *Niche
}

// IsZST reports whether the layout is sized with zero bytes.
func (l *TypeLayout) IsZST() bool {
	return !l.Abi.IsUnsized() && l.Size == 0
}

// IsUnsized reports whether the layout has a dynamic size.
func (l *TypeLayout) IsUnsized() bool {
	return l.Abi.IsUnsized()
}

// String renders a one-line summary.
func (l *TypeLayout) String() string {
	return fmt.Sprintf("size=%d align=%d abi=%s", l.Size, l.Align, l.Abi)
}
