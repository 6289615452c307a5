package interp

import (
	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// ImmediateKind is the closed set of immediate shapes.
type ImmediateKind uint8

const (
	ImmScalarKind ImmediateKind = iota
	ImmScalarPairKind
	ImmUninitKind
)

func (k ImmediateKind) String() string {
	switch k {
	case ImmScalarKind:
		return "Scalar"
	case ImmScalarPairKind:
		return "ScalarPair"
	case ImmUninitKind:
		return "Uninit"
	default:
		return "ImmediateKind(?)"
	}
}

// Immediate is a value held by copy: one scalar, two scalars, or nothing
// initialized at all. Which shapes are legal for a layout is decided by its
// ABI alone.
type Immediate struct {
	kind ImmediateKind
	a, b value.ScalarMaybeUninit
}

// ImmUninit is the fully uninitialized immediate.
var ImmUninit = Immediate{kind: ImmUninitKind}

// ImmScalar wraps one possibly uninitialized scalar.
func ImmScalar(s value.ScalarMaybeUninit) Immediate {
	return Immediate{kind: ImmScalarKind, a: s}
}

// ImmScalarPair wraps two possibly uninitialized scalars.
func ImmScalarPair(a, b value.ScalarMaybeUninit) Immediate {
	return Immediate{kind: ImmScalarPairKind, a: a, b: b}
}

// ImmFromScalar wraps an initialized scalar.
func ImmFromScalar(s value.Scalar) Immediate {
	return ImmScalar(value.Init(s))
}

// ImmFromPointer wraps a pointer with provenance.
func ImmFromPointer(p value.Pointer, ptrSize int) Immediate {
	return ImmFromScalar(value.FromPointer(p, ptrSize))
}

// ImmFromMaybePointer wraps a pointer; without provenance it becomes a
// plain address.
func ImmFromMaybePointer(p value.Pointer, ptrSize int) Immediate {
	return ImmFromScalar(value.FromMaybePointer(p, ptrSize))
}

// NewSlice builds the wide pointer of a slice or str.
func NewSlice(ptr value.Pointer, length uint64, ptrSize int) Immediate {
	return ImmScalarPair(
		value.Init(value.FromMaybePointer(ptr, ptrSize)),
		value.Init(value.FromMachineUsize(length, ptrSize)),
	)
}

// NewDynTrait builds the wide pointer of a trait object.
func NewDynTrait(ptr, vtable value.Pointer, ptrSize int) Immediate {
	return ImmScalarPair(
		value.Init(value.FromMaybePointer(ptr, ptrSize)),
		value.Init(value.FromPointer(vtable, ptrSize)),
	)
}

// Kind returns the shape of the immediate.
func (imm Immediate) Kind() ImmediateKind {
	return imm.kind
}

// ToScalarOrUninit returns the scalar of a Scalar immediate; Uninit yields
// an uninitialized scalar.
func (imm Immediate) ToScalarOrUninit() value.ScalarMaybeUninit {
	switch imm.kind {
	case ImmScalarKind:
		return imm.a
	case ImmUninitKind:
		return value.Uninit
	default:
		bug("got a scalar pair where a scalar was expected")
		return value.Uninit
	}
}

// ToScalar returns the initialized scalar of a Scalar immediate.
func (imm Immediate) ToScalar() (value.Scalar, error) {
	return checkInit(imm.ToScalarOrUninit())
}

// ToScalarOrUninitPair returns both halves of a ScalarPair immediate.
func (imm Immediate) ToScalarOrUninitPair() (value.ScalarMaybeUninit, value.ScalarMaybeUninit) {
	switch imm.kind {
	case ImmScalarPairKind:
		return imm.a, imm.b
	case ImmUninitKind:
		return value.Uninit, value.Uninit
	default:
		bug("got a scalar where a scalar pair was expected")
		return value.Uninit, value.Uninit
	}
}

// ToScalarPair returns both halves, which must be initialized.
func (imm Immediate) ToScalarPair() (value.Scalar, value.Scalar, error) {
	a, b := imm.ToScalarOrUninitPair()
	sa, err := checkInit(a)
	if err != nil {
		return value.Scalar{}, value.Scalar{}, err
	}
	sb, err := checkInit(b)
	if err != nil {
		return value.Scalar{}, value.Scalar{}, err
	}
	return sa, sb, nil
}

func (imm Immediate) String() string {
	switch imm.kind {
	case ImmScalarKind:
		return imm.a.String()
	case ImmScalarPairKind:
		return "(" + imm.a.String() + ", " + imm.b.String() + ")"
	default:
		return "uninit"
	}
}

func checkInit(s value.ScalarMaybeUninit) (value.Scalar, error) {
	sc, ok := s.Scalar()
	if !ok {
		return value.Scalar{}, ubf(CodeInvalidUninitBytes, "using uninitialized data, but this operation requires initialized memory")
	}
	return sc, nil
}

// ImmTy is an immediate together with the layout of its type.
type ImmTy struct {
	Imm    Immediate
	Layout *layout.TypeLayout
}

// ImmTyFromImmediate pairs imm with l.
func ImmTyFromImmediate(imm Immediate, l *layout.TypeLayout) ImmTy {
	return ImmTy{Imm: imm, Layout: l}
}

// ImmTyFromScalar pairs an initialized scalar with l.
func ImmTyFromScalar(s value.Scalar, l *layout.TypeLayout) ImmTy {
	return ImmTy{Imm: ImmFromScalar(s), Layout: l}
}

// ImmTyUninit returns an uninitialized value of layout l.
func ImmTyUninit(l *layout.TypeLayout) ImmTy {
	return ImmTy{Imm: ImmUninit, Layout: l}
}

// TryImmTyFromUint builds an integer of layout l, reporting false when v
// does not fit.
func TryImmTyFromUint(v value.Uint128, l *layout.TypeLayout) (ImmTy, bool) {
	if l.Size <= 0 || l.Size > value.MaxScalarSize {
		return ImmTy{}, false
	}
	s, ok := value.TryFromUint(v, l.Size)
	if !ok {
		return ImmTy{}, false
	}
	return ImmTyFromScalar(s, l), true
}

// ImmTyFromUint is TryImmTyFromUint for values known to fit.
func ImmTyFromUint(v value.Uint128, l *layout.TypeLayout) ImmTy {
	imm, ok := TryImmTyFromUint(v, l)
	if !ok {
		panic(&Bug{Msg: "unsigned value " + v.String() + " does not fit", Layout: l.String()})
	}
	return imm
}

// TryImmTyFromInt builds a signed integer of layout l from a two's
// complement 128-bit value, reporting false when it does not fit.
func TryImmTyFromInt(v value.Uint128, l *layout.TypeLayout) (ImmTy, bool) {
	if l.Size <= 0 || l.Size > value.MaxScalarSize {
		return ImmTy{}, false
	}
	s, ok := value.TryFromInt(v, l.Size)
	if !ok {
		return ImmTy{}, false
	}
	return ImmTyFromScalar(s, l), true
}

// ImmTyFromInt is TryImmTyFromInt for values known to fit.
func ImmTyFromInt(v value.Uint128, l *layout.TypeLayout) ImmTy {
	imm, ok := TryImmTyFromInt(v, l)
	if !ok {
		panic(&Bug{Msg: "signed value " + v.BigSigned().String() + " does not fit", Layout: l.String()})
	}
	return imm
}

// ToScalar returns the initialized scalar of a scalar value.
func (i ImmTy) ToScalar() (value.Scalar, error) {
	return i.Imm.ToScalar()
}
