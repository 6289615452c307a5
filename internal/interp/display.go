package interp

import (
	"math"
	"strconv"
	"unicode/utf8"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"ctfe/internal/types"
	"ctfe/internal/value"
)

// ConstInt is an integer constant that knows its type's signedness.
type ConstInt struct {
	Int      value.ScalarInt
	Signed   bool
	PtrSized bool
}

// String renders the value with its type suffix, e.g. "-3_i8" or "4_usize".
func (c ConstInt) String() string {
	var num string
	if c.Signed {
		num = c.Int.Signed().BigSigned().String()
	} else {
		num = c.Int.Data.String()
	}
	suffix := "u"
	if c.Signed {
		suffix = "i"
	}
	if c.PtrSized {
		return num + "_" + suffix + "size"
	}
	return num + "_" + suffix + strconv.FormatUint(uint64(c.Int.Bits()), 10)
}

// ToConstInt reads an initialized integer immediate as a ConstInt.
func (cx *InterpCx) ToConstInt(i ImmTy) (ConstInt, error) {
	tt := cx.types.MustLookup(i.Layout.Type)
	if !tt.IsIntegral() {
		cx.bug(i.Layout, "ToConstInt on non-integral type %s", cx.label(i.Layout))
	}
	s, err := i.ToScalar()
	if err != nil {
		return ConstInt{}, err
	}
	n, ok := s.TryToInt()
	if !ok {
		cx.bug(i.Layout, "ToConstInt on a pointer %s", s)
	}
	return ConstInt{Int: n, Signed: tt.IsSigned(), PtrSized: tt.Width == types.WidthAny}, nil
}

// FormatImm renders a typed immediate as "value: type". Integers are shown
// in decimal, bools and chars by value and &str pairs as the quoted text
// they point to when it can be read.
func (cx *InterpCx) FormatImm(i ImmTy) string {
	return cx.formatImmValue(i) + ": " + cx.label(i.Layout)
}

func (cx *InterpCx) formatImmValue(i ImmTy) string {
	tt := cx.types.MustLookup(i.Layout.Type)
	switch i.Imm.kind {
	case ImmUninitKind:
		return "uninit"
	case ImmScalarPairKind:
		if s, ok := cx.strContents(tt, i.Imm); ok {
			return s
		}
		return i.Imm.String()
	default:
		return formatScalar(tt, i.Imm.a)
	}
}

func formatScalar(tt types.Type, m value.ScalarMaybeUninit) string {
	s, ok := m.Scalar()
	if !ok {
		return "uninit"
	}
	n, ok := s.TryToInt()
	if !ok {
		return s.String()
	}
	switch tt.Kind {
	case types.KindBool:
		switch {
		case n.IsNull():
			return "false"
		case n.Data == value.U128(1):
			return "true"
		}
	case types.KindChar:
		if c, ok := n.Data.Uint64(); ok && c <= utf8.MaxRune {
			r, err := safecast.Conv[rune](c)
			if err == nil && utf8.ValidRune(r) {
				return strconv.QuoteRune(r)
			}
		}
	case types.KindInt:
		return n.Signed().BigSigned().String()
	case types.KindUint:
		return n.Data.String()
	case types.KindFloat:
		bits, _ := n.Data.Uint64()
		if n.Size == 4 {
			return strconv.FormatFloat(float64(math.Float32frombits(uint32(bits))), 'g', -1, 32) //nolint:gosec // G115: 4-byte scalar
		}
		return strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64)
	}
	return s.String()
}

// strContents reads the text a &str wide pointer points to.
func (cx *InterpCx) strContents(tt types.Type, imm Immediate) (string, bool) {
	if !tt.IsPtrLike() {
		return "", false
	}
	pointee, ok := cx.types.Lookup(tt.Elem)
	if !ok || pointee.Kind != types.KindStr {
		return "", false
	}
	ptrS, lenS, err := imm.ToScalarPair()
	if err != nil {
		return "", false
	}
	n, ok := lenS.TryToInt()
	if !ok {
		return "", false
	}
	length, ok := n.Data.Uint64()
	if !ok {
		return "", false
	}
	size, err := safecast.Conv[int](length)
	if err != nil {
		return "", false
	}
	b, err := cx.mem.ReadBytes(ptrS.ToPointer(), size)
	if err != nil || !utf8.Valid(b) {
		return "", false
	}
	return strconv.Quote(norm.NFC.String(string(b))), true
}
