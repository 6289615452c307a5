package mir

import (
	"ctfe/internal/types"
	"ctfe/internal/value"
)

type BlockID int32
type LocalID int32

const (
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

type Local struct {
	Name string
	Type types.TypeID
}

// Place is a local with an optional chain of field projections.
type Place struct {
	Local  LocalID
	Fields []int
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

type OperandKind uint8

const (
	OperandConst OperandKind = iota
	OperandCopy
	OperandMove
)

type Operand struct {
	Kind  OperandKind
	Place Place
	Const Const
}

// Const is a scalar constant typed by the interner the body was built with.
type Const struct {
	Type   types.TypeID
	Scalar value.Scalar
}

// ConstOperand wraps s as a constant operand of type ty.
func ConstOperand(ty types.TypeID, s value.Scalar) Operand {
	return Operand{Kind: OperandConst, Const: Const{Type: ty, Scalar: s}}
}

// CopyOperand reads local l by copy.
func CopyOperand(l LocalID) Operand {
	return Operand{Kind: OperandCopy, Place: Place{Local: l}}
}
