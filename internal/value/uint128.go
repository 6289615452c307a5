// Package value holds the scalar primitives of the interpreter: fixed-width
// integers up to 128 bits, pointers with provenance, and the "maybe
// uninitialized" wrapper around them.
package value

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Uint128 is an unsigned 128-bit integer. All arithmetic wraps.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Max128 is the all-ones 128-bit value.
var Max128 = Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}

// U128 widens a uint64.
func U128(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// I128 sign-extends an int64 into a 128-bit two's complement pattern.
func I128(v int64) Uint128 {
	u := Uint128{Lo: uint64(v)} //nolint:gosec // G115: bit-pattern reinterpretation
	if v < 0 {
		u.Hi = ^uint64(0)
	}
	return u
}

// IsZero reports whether u == 0.
func (u Uint128) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

// Add returns u+v mod 2^128.
func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{Hi: hi, Lo: lo}
}

// Sub returns u-v mod 2^128.
func (u Uint128) Sub(v Uint128) Uint128 {
	lo, borrow := bits.Sub64(u.Lo, v.Lo, 0)
	hi, _ := bits.Sub64(u.Hi, v.Hi, borrow)
	return Uint128{Hi: hi, Lo: lo}
}

// Mul returns u*v mod 2^128.
func (u Uint128) Mul(v Uint128) Uint128 {
	hi, lo := bits.Mul64(u.Lo, v.Lo)
	hi += u.Hi*v.Lo + u.Lo*v.Hi
	return Uint128{Hi: hi, Lo: lo}
}

// And returns u&v.
func (u Uint128) And(v Uint128) Uint128 {
	return Uint128{Hi: u.Hi & v.Hi, Lo: u.Lo & v.Lo}
}

// Or returns u|v.
func (u Uint128) Or(v Uint128) Uint128 {
	return Uint128{Hi: u.Hi | v.Hi, Lo: u.Lo | v.Lo}
}

// Xor returns u^v.
func (u Uint128) Xor(v Uint128) Uint128 {
	return Uint128{Hi: u.Hi ^ v.Hi, Lo: u.Lo ^ v.Lo}
}

// Not returns ^u.
func (u Uint128) Not() Uint128 {
	return Uint128{Hi: ^u.Hi, Lo: ^u.Lo}
}

// Cmp compares u and v as unsigned numbers.
func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	default:
		return 0
	}
}

// CmpSigned compares u and v as 128-bit two's complement numbers.
func (u Uint128) CmpSigned(v Uint128) int {
	un := u.Hi>>63 == 1
	vn := v.Hi>>63 == 1
	if un != vn {
		if un {
			return -1
		}
		return 1
	}
	return u.Cmp(v)
}

// Lsh returns u<<n; n >= 128 yields 0.
func (u Uint128) Lsh(n uint) Uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Hi: u.Lo << (n - 64)}
	default:
		return Uint128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
	}
}

// Rsh returns the logical shift u>>n; n >= 128 yields 0.
func (u Uint128) Rsh(n uint) Uint128 {
	switch {
	case n == 0:
		return u
	case n >= 128:
		return Uint128{}
	case n >= 64:
		return Uint128{Lo: u.Hi >> (n - 64)}
	default:
		return Uint128{Hi: u.Hi >> n, Lo: u.Lo>>n | u.Hi<<(64-n)}
	}
}

// Mask returns the value with the low n bits set.
func Mask(n uint) Uint128 {
	if n >= 128 {
		return Max128
	}
	return U128(1).Lsh(n).Sub(U128(1))
}

// Truncate keeps the low n bits.
func (u Uint128) Truncate(n uint) Uint128 {
	return u.And(Mask(n))
}

// SignExtend treats the low n bits as a signed number and extends it to
// 128 bits.
func (u Uint128) SignExtend(n uint) Uint128 {
	if n == 0 || n >= 128 {
		return u
	}
	u = u.Truncate(n)
	if u.Rsh(n-1).Lo&1 == 0 {
		return u
	}
	return u.Or(Mask(n).Not())
}

// FitsUnsigned reports whether u is representable in n unsigned bits.
func (u Uint128) FitsUnsigned(n uint) bool {
	return u.Truncate(n) == u
}

// FitsSigned reports whether u, read as a 128-bit signed number, is
// representable in n signed bits.
func (u Uint128) FitsSigned(n uint) bool {
	return u.SignExtend(n) == u
}

// Uint64 returns the low word and whether the value fits in it.
func (u Uint128) Uint64() (uint64, bool) {
	return u.Lo, u.Hi == 0
}

// Big converts u to an unsigned big.Int.
func (u Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

// FromBig returns b modulo 2^128. Negative values wrap to their two's
// complement pattern.
func FromBig(b *big.Int) Uint128 {
	mod := new(big.Int).Lsh(big.NewInt(1), 128)
	m := new(big.Int).Mod(b, mod)
	lo := new(big.Int).And(m, new(big.Int).SetUint64(^uint64(0)))
	return Uint128{Hi: new(big.Int).Rsh(m, 64).Uint64(), Lo: lo.Uint64()}
}

// BigSigned converts u, read as two's complement, to a big.Int.
func (u Uint128) BigSigned() *big.Int {
	if u.Hi>>63 == 0 {
		return u.Big()
	}
	b := u.Not().Add(U128(1)).Big()
	return b.Neg(b)
}

// String formats u in decimal.
func (u Uint128) String() string {
	if u.Hi == 0 {
		return fmt.Sprintf("%d", u.Lo)
	}
	return u.Big().String()
}

// Hex formats u as 0x-prefixed hex without leading zeros.
func (u Uint128) Hex() string {
	if u.Hi == 0 {
		return fmt.Sprintf("0x%x", u.Lo)
	}
	return fmt.Sprintf("0x%x%016x", u.Hi, u.Lo)
}
