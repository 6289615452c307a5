// Package types is the type interner shared by every interpretation context.
// It hands out stable TypeIDs for structural types and allocates nominal
// slots for structs and enums. The interner is append-only and safe for
// concurrent use.
package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindNever
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindPointer
	KindReference
	KindStr
	KindSlice
	KindDyn
	KindArray
	KindTuple
	KindStruct
	KindEnum
	KindMaybeUninit
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindNever:
		return "never"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindReference:
		return "reference"
	case KindStr:
		return "str"
	case KindSlice:
		return "slice"
	case KindDyn:
		return "dyn"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindMaybeUninit:
		return "maybe_uninit"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers and floats. WidthAny on an
// integer means "pointer sized" (isize/usize).
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Count   uint64 // array length
	Width   Width  // numeric primitives
	Mutable bool   // pointers and references
	Payload uint32 // side-table slot for tuples, structs, enums and dyn
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width (WidthAny for isize).
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes [T; count].
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes the unsized [T].
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakePointer describes a raw pointer (*const T or *mut T).
func MakePointer(elem TypeID, mutable bool) Type {
	return Type{Kind: KindPointer, Elem: elem, Mutable: mutable}
}

// MakeReference describes &T or &mut T depending on the mutable flag.
func MakeReference(elem TypeID, mutable bool) Type {
	return Type{Kind: KindReference, Elem: elem, Mutable: mutable}
}

// MakeMaybeUninit describes MaybeUninit<T>.
func MakeMaybeUninit(elem TypeID) Type {
	return Type{Kind: KindMaybeUninit, Elem: elem}
}

// IsIntegral reports whether the kind is a signed or unsigned integer.
func (t Type) IsIntegral() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsSigned reports whether the type is a signed integer.
func (t Type) IsSigned() bool {
	return t.Kind == KindInt
}

// IsPtrLike reports whether values of the type are thin or wide pointers.
func (t Type) IsPtrLike() bool {
	return t.Kind == KindPointer || t.Kind == KindReference
}

// IsUnsizedKind reports whether the kind itself is dynamically sized.
// Structs with an unsized tail are resolved by the layout engine.
func (t Type) IsUnsizedKind() bool {
	switch t.Kind {
	case KindStr, KindSlice, KindDyn:
		return true
	default:
		return false
	}
}
