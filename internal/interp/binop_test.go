package interp_test

import (
	"testing"

	"ctfe/internal/interp"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

func TestOverflowingBinaryOp(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name     string
		op       interp.BinOp
		ty       types.TypeID
		l, r     value.Uint128
		want     value.Uint128
		overflow bool
	}{
		{"u8 add wraps", interp.BinAdd, f.b.U8, value.U128(250), value.U128(10), value.U128(4), true},
		{"u8 add fits", interp.BinAdd, f.b.U8, value.U128(250), value.U128(5), value.U128(255), false},
		{"u8 sub wraps", interp.BinSub, f.b.U8, value.U128(0), value.U128(1), value.U128(255), true},
		{"i8 sub wraps", interp.BinSub, f.b.I8, value.I128(-128), value.I128(1), value.U128(127), true},
		{"i8 sub negative", interp.BinSub, f.b.I8, value.I128(1), value.I128(3), value.U128(0xFE), false},
		{"i16 mul", interp.BinMul, f.b.I16, value.I128(-300), value.I128(200), value.U128(0x15A0), true},
		{"u32 and", interp.BinBitAnd, f.b.U32, value.U128(0xF0F0), value.U128(0xFF00), value.U128(0xF000), false},
		{"u32 or", interp.BinBitOr, f.b.U32, value.U128(0xF0), value.U128(0x0F), value.U128(0xFF), false},
		{"i32 xor", interp.BinBitXor, f.b.I32, value.I128(-1), value.I128(1), value.U128(0xFFFFFFFE), false},
		{"u128 add wraps", interp.BinAdd, f.b.U128, value.Mask(128), value.U128(2), value.U128(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := f.layoutOf(t, tt.ty)
			lhs := interp.ImmTyFromScalar(value.FromUint(tt.l.Truncate(uint(l.Size*8)), l.Size), l)
			rhs := interp.ImmTyFromScalar(value.FromUint(tt.r.Truncate(uint(l.Size*8)), l.Size), l)
			res, overflow, err := f.cx.OverflowingBinaryOp(tt.op, lhs, rhs)
			if err != nil {
				t.Fatalf("%s: %v", tt.op, err)
			}
			s, err := res.ToScalar()
			if err != nil {
				t.Fatal(err)
			}
			if got := s.AssertBits(l.Size); got != tt.want {
				t.Fatalf("result = %s, want %s", got.Hex(), tt.want.Hex())
			}
			if overflow != tt.overflow {
				t.Fatalf("overflow = %v, want %v", overflow, tt.overflow)
			}
			if res.Layout != l {
				t.Fatalf("result layout changed to %s", res.Layout)
			}
		})
	}
}

func TestComparisonsRespectSignedness(t *testing.T) {
	f := newFixture(t)
	i8 := f.layoutOf(t, f.b.I8)
	u8 := f.layoutOf(t, f.b.U8)
	minusOne := interp.ImmTyFromInt(value.I128(-1), i8)
	one := interp.ImmTyFromInt(value.I128(1), i8)
	big := interp.ImmTyFromUint(value.U128(255), u8)
	small := interp.ImmTyFromUint(value.U128(1), u8)

	tests := []struct {
		op   interp.BinOp
		l, r interp.ImmTy
		want bool
	}{
		{interp.BinLt, minusOne, one, true},
		{interp.BinGt, big, small, true},
		{interp.BinEq, one, one, true},
		{interp.BinNe, one, one, false},
		{interp.BinLe, one, minusOne, false},
		{interp.BinGe, small, small, true},
	}
	for _, tt := range tests {
		res, err := f.cx.BinaryOp(tt.op, tt.l, tt.r)
		if err != nil {
			t.Fatalf("%s: %v", tt.op, err)
		}
		if res.Layout.Type != f.b.Bool {
			t.Fatalf("%s yields %s, want bool", tt.op, types.Label(f.in, res.Layout.Type))
		}
		s, _ := res.ToScalar()
		if got := s.AssertBits(1) == value.U128(1); got != tt.want {
			t.Fatalf("%s(%s, %s) = %v, want %v", tt.op, tt.l.Imm, tt.r.Imm, got, tt.want)
		}
	}
}

func TestBinaryOpWithOverflowPacksPair(t *testing.T) {
	f := newFixture(t)
	u8 := f.layoutOf(t, f.b.U8)
	res, err := f.cx.BinaryOpWithOverflow(interp.BinAdd, f.imm(t, 200, f.b.U8), interp.ImmTyFromUint(value.U128(100), u8))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imm.Kind() != interp.ImmScalarPairKind {
		t.Fatalf("expected a pair, got %s", res.Imm)
	}
	sum, flag, err := res.Imm.ToScalarPair()
	if err != nil {
		t.Fatal(err)
	}
	if sum.AssertBits(1) != value.U128(44) || flag.AssertBits(1) != value.U128(1) {
		t.Fatalf("got (%s, %s), want (44, true)", sum, flag)
	}
	if res.Layout.Type != f.in.Tuple(f.b.U8, f.b.Bool) {
		t.Fatalf("pair typed as %s", types.Label(f.in, res.Layout.Type))
	}
}

func TestBinaryOpErrors(t *testing.T) {
	f := newFixture(t)
	usize := f.layoutOf(t, f.b.Usize)
	id := f.alloc(t, "a", 8, 8)
	ptr := interp.ImmTyFromImmediate(interp.ImmFromPointer(value.PtrTo(id, 0), 8), usize)
	_, err := f.cx.BinaryOp(interp.BinAdd, ptr, interp.ImmTyFromUint(value.U128(1), usize))
	expectCode(t, err, interp.CodePointerArithmetic)

	_, err = f.cx.BinaryOp(interp.BinAdd, interp.ImmTyUninit(usize), interp.ImmTyFromUint(value.U128(1), usize))
	expectCode(t, err, interp.CodeInvalidUninitBytes)

	u8 := f.layoutOf(t, f.b.U8)
	expectBug(t, func() {
		_, _ = f.cx.BinaryOp(interp.BinAdd, interp.ImmTyFromUint(value.U128(1), u8), interp.ImmTyFromUint(value.U128(1), usize))
	})
}

func TestParseBinOp(t *testing.T) {
	for _, name := range []string{"Add", "Sub", "Eq", "Ge"} {
		op, err := interp.ParseBinOp(name)
		if err != nil || op.String() != name {
			t.Fatalf("ParseBinOp(%q) = %s, %v", name, op, err)
		}
	}
	if _, err := interp.ParseBinOp("Shl"); err == nil {
		t.Fatal("expected an error for an unknown operator")
	}
}
