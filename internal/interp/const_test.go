package interp_test

import (
	"math"
	"testing"

	"ctfe/internal/interp"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

func TestIntToInt(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		src  types.TypeID
		bits uint64
		dst  types.TypeID
		want uint64
	}{
		{"i8 to u16 sign-extends", f.b.I8, 0xFF, f.b.U16, 0xFFFF},
		{"u16 to u8 truncates", f.b.U16, 0x1234, f.b.U8, 0x34},
		{"u8 to i32 zero-extends", f.b.U8, 0x80, f.b.I32, 0x80},
		{"i32 to i64 keeps sign", f.b.I32, 0xFFFFFFF0, f.b.I64, 0xFFFFFFFFFFFFFFF0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.cx.IntToInt(f.imm(t, tt.bits, tt.src), tt.dst)
			if err != nil {
				t.Fatal(err)
			}
			if res.Layout.Type != tt.dst {
				t.Fatalf("result typed %s", types.Label(f.in, res.Layout.Type))
			}
			if got := scalarBits(t, res.Imm.ToScalarOrUninit()); got != tt.want {
				t.Fatalf("got %#x, want %#x", got, tt.want)
			}
		})
	}

	expectBug(t, func() {
		f.cx.CastFromIntLike(value.U128(1), f.layoutOf(t, f.b.U8), f.b.F32)
	})
}

func TestConstValToOp(t *testing.T) {
	f := newFixture(t)
	u32 := f.layoutOf(t, f.b.U32)

	op, err := f.cx.ConstValToOp(interp.ConstScalar(value.FromUint(value.U128(9), 4)), f.b.U32, u32)
	if err != nil {
		t.Fatal(err)
	}
	imm, ok := op.Immediate()
	if !ok || scalarBits(t, imm.Imm.ToScalarOrUninit()) != 9 {
		t.Fatalf("scalar constant = %s", op.Operand())
	}

	id := f.alloc(t, "const", 8, 4)
	f.writeUint(t, value.PtrTo(id, 4), 77, 4)
	op, err = f.cx.ConstValToOp(interp.ConstByRef(id, 4), f.b.U32, nil)
	if err != nil {
		t.Fatal(err)
	}
	if align, ok := op.Align(); !ok || align != 4 {
		t.Fatalf("by-ref constant alignment = %d, %v", align, ok)
	}
	got, err := f.cx.ReadImmediate(op)
	if err != nil || scalarBits(t, got.Imm.ToScalarOrUninit()) != 77 {
		t.Fatalf("by-ref read = %v, %v", got.Imm, err)
	}

	text := f.alloc(t, "text", 16, 1)
	strRef := f.in.Intern(types.MakeReference(f.b.Str, false))
	op, err = f.cx.ConstValToOp(interp.ConstSlice(text, 3, 10), strRef, nil)
	if err != nil {
		t.Fatal(err)
	}
	imm, _ = op.Immediate()
	ptr, length, err := imm.Imm.ToScalarPair()
	if err != nil {
		t.Fatal(err)
	}
	if ptr.ToPointer() != value.PtrTo(text, 3) || length.AssertBits(8) != value.U128(7) {
		t.Fatalf("slice constant = (%s, %s)", ptr, length)
	}

	op, err = f.cx.ConstValToOp(interp.ConstZeroSized(), f.b.Unit, nil)
	if err != nil {
		t.Fatal(err)
	}
	if imm, ok := op.Immediate(); !ok || imm.Imm.Kind() != interp.ImmUninitKind {
		t.Fatalf("zero-sized constant = %s", op.Operand())
	}

	expectBug(t, func() {
		_, _ = f.cx.ConstValToOp(interp.ConstSlice(text, 5, 2), strRef, nil)
	})
	expectBug(t, func() {
		_, _ = f.cx.ConstValToOp(interp.ConstZeroSized(), f.b.Unit, u32)
	})
}

func TestFormatImm(t *testing.T) {
	f := newFixture(t)
	text := f.alloc(t, "greeting", 8, 1)
	if err := f.mem.WriteBytes(value.PtrTo(text, 0), []byte("cafe\u0301")); err != nil {
		t.Fatal(err)
	}
	strRef := f.in.Intern(types.MakeReference(f.b.Str, false))
	strLayout := f.layoutOf(t, strRef)

	tests := []struct {
		name string
		imm  interp.ImmTy
		want string
	}{
		{"unsigned", f.imm(t, 200, f.b.U8), "200: u8"},
		{"signed", interp.ImmTyFromInt(value.I128(-3), f.layoutOf(t, f.b.I8)), "-3: i8"},
		{"bool", interp.ImmTyFromScalar(value.FromBool(true), f.layoutOf(t, f.b.Bool)), "true: bool"},
		{"char", f.imm(t, 'x', f.b.Char), "'x': char"},
		{"float", f.imm(t, math.Float64bits(1.5), f.b.F64), "1.5: f64"},
		{"uninit", interp.ImmTyUninit(f.layoutOf(t, f.b.U16)), "uninit: u16"},
		{"str", interp.ImmTyFromImmediate(interp.NewSlice(value.PtrTo(text, 0), 6, 8), strLayout), "\"caf\u00e9\": &str"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.cx.FormatImm(tt.imm); got != tt.want {
				t.Fatalf("FormatImm = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToConstInt(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		imm  interp.ImmTy
		want string
	}{
		{interp.ImmTyFromInt(value.I128(-3), f.layoutOf(t, f.b.I8)), "-3_i8"},
		{f.imm(t, 4, f.b.Usize), "4_usize"},
		{f.imm(t, 65535, f.b.U16), "65535_u16"},
		{interp.ImmTyFromInt(value.I128(-1), f.layoutOf(t, f.b.Isize)), "-1_isize"},
	}
	for _, tt := range tests {
		c, err := f.cx.ToConstInt(tt.imm)
		if err != nil {
			t.Fatal(err)
		}
		if c.String() != tt.want {
			t.Fatalf("ConstInt = %s, want %s", c, tt.want)
		}
	}
	_, err := f.cx.ToConstInt(interp.ImmTyUninit(f.layoutOf(t, f.b.U8)))
	expectCode(t, err, interp.CodeInvalidUninitBytes)
}

func TestCatchRethrowsForeignPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("recovered %v, want the original panic", r)
		}
	}()
	var err error
	func() {
		defer interp.Catch(&err)
		panic("boom")
	}()
	t.Fatal("panic was swallowed")
}
