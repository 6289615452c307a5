package interp

import (
	"fmt"
	"math/big"

	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// BinOp is an integer binary operator.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinBitAnd
	BinBitOr
	BinBitXor
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
)

var binOpNames = [...]string{
	BinAdd:    "Add",
	BinSub:    "Sub",
	BinMul:    "Mul",
	BinBitAnd: "BitAnd",
	BinBitOr:  "BitOr",
	BinBitXor: "BitXor",
	BinEq:     "Eq",
	BinNe:     "Ne",
	BinLt:     "Lt",
	BinLe:     "Le",
	BinGt:     "Gt",
	BinGe:     "Ge",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", op)
}

// ParseBinOp resolves an operator by name.
func ParseBinOp(s string) (BinOp, error) {
	for i, name := range binOpNames {
		if name == s {
			return BinOp(i), nil //nolint:gosec // G115: index of a short table
		}
	}
	return 0, fmt.Errorf("unknown binary operator %q", s)
}

// IsComparison reports whether op yields a bool.
func (op BinOp) IsComparison() bool {
	return op >= BinEq
}

// BinaryOp evaluates op with wrapping arithmetic at the operand width.
func (cx *InterpCx) BinaryOp(op BinOp, l, r ImmTy) (ImmTy, error) {
	res, _, err := cx.OverflowingBinaryOp(op, l, r)
	return res, err
}

// OverflowingBinaryOp evaluates op and also reports whether the exact
// result did not fit the operand type. Comparisons never overflow.
func (cx *InterpCx) OverflowingBinaryOp(op BinOp, l, r ImmTy) (ImmTy, bool, error) {
	lp := cx.intPrimitive(l)
	rp := cx.intPrimitive(r)
	if lp.Size != rp.Size || lp.Signed != rp.Signed {
		cx.bug(l.Layout, "%s on mismatched operands %s and %s", op, lp, rp)
	}
	ls, err := l.ToScalar()
	if err != nil {
		return ImmTy{}, false, err
	}
	rs, err := r.ToScalar()
	if err != nil {
		return ImmTy{}, false, err
	}
	li, lok := ls.TryToInt()
	ri, rok := rs.TryToInt()
	if !lok || !rok {
		return ImmTy{}, false, unsupportedf(CodePointerArithmetic, "%s on a pointer with provenance is not supported", op)
	}

	size := lp.Size
	n := bitsOfSize(size)
	lv := toBig(li.AssertBits(size), n, lp.Signed)
	rv := toBig(ri.AssertBits(size), n, lp.Signed)

	if op.IsComparison() {
		c := lv.Cmp(rv)
		var b bool
		switch op {
		case BinEq:
			b = c == 0
		case BinNe:
			b = c != 0
		case BinLt:
			b = c < 0
		case BinLe:
			b = c <= 0
		case BinGt:
			b = c > 0
		case BinGe:
			b = c >= 0
		}
		boolLayout := cx.mustLayoutOf(cx.types.Builtins().Bool)
		return ImmTyFromScalar(value.FromBool(b), boolLayout), false, nil
	}

	exact := new(big.Int)
	switch op {
	case BinAdd:
		exact.Add(lv, rv)
	case BinSub:
		exact.Sub(lv, rv)
	case BinMul:
		exact.Mul(lv, rv)
	case BinBitAnd:
		exact.And(lv, rv)
	case BinBitOr:
		exact.Or(lv, rv)
	case BinBitXor:
		exact.Xor(lv, rv)
	default:
		cx.bug(l.Layout, "unknown binary operator %s", op)
	}
	wrapped, overflow := wrapBig(exact, n, lp.Signed)
	return ImmTyFromScalar(value.FromUint(wrapped, size), l.Layout), overflow, nil
}

// BinaryOpWithOverflow evaluates op and packs the wrapped result and the
// overflow flag into a (T, bool) pair.
func (cx *InterpCx) BinaryOpWithOverflow(op BinOp, l, r ImmTy) (ImmTy, error) {
	if op.IsComparison() {
		cx.bug(l.Layout, "%s cannot overflow", op)
	}
	res, overflow, err := cx.OverflowingBinaryOp(op, l, r)
	if err != nil {
		return ImmTy{}, err
	}
	b := cx.types.Builtins()
	pairTy := cx.types.Tuple(l.Layout.Type, b.Bool)
	pairLayout, err := cx.LayoutOf(pairTy)
	if err != nil {
		return ImmTy{}, err
	}
	if pairLayout.Abi.Kind != layout.AbiScalarPair {
		cx.bug(pairLayout, "overflow result is not a scalar pair")
	}
	return ImmTyFromImmediate(ImmScalarPair(res.Imm.ToScalarOrUninit(), value.Init(value.FromBool(overflow))), pairLayout), nil
}

func (cx *InterpCx) intPrimitive(i ImmTy) layout.Primitive {
	if i.Layout.Abi.Kind != layout.AbiScalar {
		cx.bug(i.Layout, "binary operand is not a scalar")
	}
	p := i.Layout.Abi.A.Value
	if !p.IsInt() {
		cx.bug(i.Layout, "binary operand %s is not an integer", p)
	}
	return p
}

func toBig(bits value.Uint128, n uint, signed bool) *big.Int {
	if signed {
		return bits.SignExtend(n).BigSigned()
	}
	return bits.Big()
}

// wrapBig reduces x modulo 2^n and reports whether x was outside the range
// of the n-bit type.
func wrapBig(x *big.Int, n uint, signed bool) (value.Uint128, bool) {
	var lo, hi big.Int
	if signed {
		lo.Lsh(big.NewInt(1), n-1)
		lo.Neg(&lo)
		hi.Lsh(big.NewInt(1), n-1)
		hi.Sub(&hi, big.NewInt(1))
	} else {
		hi.Lsh(big.NewInt(1), n)
		hi.Sub(&hi, big.NewInt(1))
	}
	overflow := x.Cmp(&lo) < 0 || x.Cmp(&hi) > 0

	mod := new(big.Int).Lsh(big.NewInt(1), n)
	return value.FromBig(new(big.Int).Mod(x, mod)), overflow
}
