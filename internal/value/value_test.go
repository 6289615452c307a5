package value_test

import (
	"math/big"
	"testing"

	"ctfe/internal/value"
)

func TestUint128WrappingSub(t *testing.T) {
	got := value.U128(4).Sub(value.U128(5))
	if got != value.Max128 {
		t.Fatalf("4-5: got %s want all ones", got.Hex())
	}
	if got.Truncate(8) != value.U128(0xff) {
		t.Fatalf("truncate to u8: got %s", got.Truncate(8).Hex())
	}
}

func TestUint128SignExtend(t *testing.T) {
	tests := []struct {
		in   uint64
		bits uint
		want value.Uint128
	}{
		{0x7f, 8, value.U128(0x7f)},
		{0xff, 8, value.I128(-1)},
		{0x80, 8, value.I128(-128)},
		{0x1ff, 8, value.I128(-1)},
		{0x8000, 16, value.I128(-32768)},
	}
	for _, tt := range tests {
		if got := value.U128(tt.in).SignExtend(tt.bits); got != tt.want {
			t.Errorf("SignExtend(%#x, %d) = %s, want %s", tt.in, tt.bits, got.Hex(), tt.want.Hex())
		}
	}
}

func TestUint128Shifts(t *testing.T) {
	one := value.U128(1)
	if got := one.Lsh(64); got != (value.Uint128{Hi: 1}) {
		t.Fatalf("1<<64 = %s", got.Hex())
	}
	if got := one.Lsh(127).Rsh(127); got != one {
		t.Fatalf("round trip shift = %s", got.Hex())
	}
	if got := value.Mask(128); got != value.Max128 {
		t.Fatalf("mask 128 = %s", got.Hex())
	}
	if got := value.U128(0).Sub(one).String(); got != "340282366920938463463374607431768211455" {
		t.Fatalf("max decimal = %s", got)
	}
}

func TestUint128CmpSigned(t *testing.T) {
	if value.I128(-1).CmpSigned(value.U128(0)) != -1 {
		t.Fatal("-1 should compare below 0")
	}
	if value.I128(-1).Cmp(value.U128(0)) != 1 {
		t.Fatal("unsigned all-ones should compare above 0")
	}
}

func TestScalarFromUintFits(t *testing.T) {
	if _, ok := value.TryFromUint(value.U128(256), 1); ok {
		t.Fatal("256 must not fit in one byte")
	}
	s, ok := value.TryFromUint(value.U128(255), 1)
	if !ok || s.Size() != 1 {
		t.Fatalf("255 should fit in one byte, got ok=%v size=%d", ok, s.Size())
	}
	if _, ok := value.TryFromInt(value.I128(-129), 1); ok {
		t.Fatal("-129 must not fit in i8")
	}
	neg, ok := value.TryFromInt(value.I128(-1), 2)
	if !ok {
		t.Fatal("-1 should fit in i16")
	}
	if bits := neg.AssertBits(2); bits != value.U128(0xffff) {
		t.Fatalf("-1 as i16 bits = %s", bits.Hex())
	}
}

func TestScalarPointerTryToInt(t *testing.T) {
	p := value.FromPointer(value.PtrTo(3, 8), 8)
	if _, ok := p.TryToInt(); ok {
		t.Fatal("pointer with provenance must not convert to int")
	}
	if !p.IsPtr() || p.Size() != 8 {
		t.Fatalf("unexpected pointer scalar %v", p)
	}
	addr := value.FromMaybePointer(value.Address(16), 8)
	i, ok := addr.TryToInt()
	if !ok || i.Data != value.U128(16) {
		t.Fatalf("address-only pointer should be an int scalar, got %v", addr)
	}
}

func TestScalarMaybeUninit(t *testing.T) {
	if value.Uninit.IsInit() {
		t.Fatal("Uninit reports initialized")
	}
	m := value.Init(value.FromBool(true))
	s, ok := m.Scalar()
	if !ok || s.AssertBits(1) != value.U128(1) {
		t.Fatalf("unexpected scalar %v", m)
	}
}

func TestFromBig(t *testing.T) {
	tests := []struct {
		in   *big.Int
		want value.Uint128
	}{
		{big.NewInt(42), value.U128(42)},
		{big.NewInt(-1), value.Max128},
		{new(big.Int).Lsh(big.NewInt(1), 64), value.Uint128{Hi: 1}},
		{new(big.Int).Lsh(big.NewInt(1), 128), value.U128(0)},
	}
	for _, tt := range tests {
		if got := value.FromBig(tt.in); got != tt.want {
			t.Fatalf("FromBig(%s) = %s, want %s", tt.in, got.Hex(), tt.want.Hex())
		}
	}
	if value.FromBig(value.I128(-5).BigSigned()) != value.I128(-5) {
		t.Fatal("FromBig does not invert BigSigned")
	}
}
