package scenario

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// Op is a query operation.
type Op string

const (
	OpReadImmediate      Op = "read_immediate"
	OpReadImmediateForce Op = "read_immediate_force"
	OpReadDiscriminant   Op = "read_discriminant"
	OpReadStr            Op = "read_str"
	OpReadPointer        Op = "read_pointer"
	OpConstInt           Op = "const_int"
	OpLen                Op = "len"
	OpLayout             Op = "layout"
)

var knownOps = []Op{
	OpReadImmediate, OpReadImmediateForce, OpReadDiscriminant, OpReadStr,
	OpReadPointer, OpConstInt, OpLen, OpLayout,
}

func parseOp(s string) (Op, error) {
	for _, op := range knownOps {
		if string(op) == s {
			return op, nil
		}
	}
	names := make([]string, len(knownOps))
	for i, op := range knownOps {
		names[i] = string(op)
	}
	return "", fmt.Errorf("unknown op %q (expected: %s)", s, strings.Join(names, "|"))
}

// Query is a validated QuerySpec.
type Query struct {
	Name        string
	Op          Op
	Type        types.TypeID
	Alloc       value.AllocID
	Offset      uint64
	Meta        *uint64
	Fields      []int
	Expect      string
	ExpectError string
}

func (s *Scenario) buildQuery(i int, qs *QuerySpec) (Query, error) {
	name := qs.Name
	if name == "" {
		name = "#" + strconv.Itoa(i)
	}
	fail := func(err error) (Query, error) {
		return Query{}, fmt.Errorf("query %s: %w", name, err)
	}
	op, err := parseOp(qs.Op)
	if err != nil {
		return fail(err)
	}
	ty, err := s.ParseType(qs.Type)
	if err != nil {
		return fail(err)
	}
	q := Query{
		Name:        name,
		Op:          op,
		Type:        ty,
		Fields:      qs.Fields,
		Expect:      qs.Expect,
		ExpectError: strings.ToUpper(strings.TrimSpace(qs.ExpectError)),
	}
	if q.Expect != "" && q.ExpectError != "" {
		return fail(errors.New("expect and expect-error are exclusive"))
	}
	if op == OpLayout {
		if qs.Alloc != "" || len(qs.Fields) > 0 || qs.Meta != nil {
			return fail(errors.New("layout queries take only a type"))
		}
		return q, nil
	}
	if qs.Alloc == "" {
		return fail(errors.New("missing alloc"))
	}
	id, ok := s.Mem.Lookup(qs.Alloc)
	if !ok {
		return fail(fmt.Errorf("unknown allocation %q", qs.Alloc))
	}
	q.Alloc = id
	if q.Offset, err = safecast.Conv[uint64](qs.Offset); err != nil {
		return fail(fmt.Errorf("offset %d: %w", qs.Offset, err))
	}
	if qs.Meta != nil {
		m, err := safecast.Conv[uint64](*qs.Meta)
		if err != nil {
			return fail(fmt.Errorf("meta %d: %w", *qs.Meta, err))
		}
		q.Meta = &m
	}
	return q, nil
}

// Result is the outcome of one query.
type Result struct {
	Query  *Query
	Output string
	Err    error
	Code   string // CE code of Err, if it is an evaluation error
}

// Checked reports whether the query carried an expectation.
func (r *Result) Checked() bool {
	return r.Query.Expect != "" || r.Query.ExpectError != ""
}

// Pass reports whether the result meets the query's expectation. Queries
// without one pass when they do not fail.
func (r *Result) Pass() bool {
	switch {
	case r.Query.ExpectError != "":
		return r.Code == r.Query.ExpectError
	case r.Query.Expect != "":
		return r.Err == nil && r.Output == r.Query.Expect
	default:
		return r.Err == nil
	}
}

// Eval runs q in cx. Interpreter bugs propagate as panics.
func (s *Scenario) Eval(cx *interp.InterpCx, q *Query) Result {
	out, err := s.eval(cx, q)
	r := Result{Query: q, Output: out, Err: err}
	if code, ok := interp.CodeOf(err); ok {
		r.Code = code.String()
	}
	return r
}

func (s *Scenario) eval(cx *interp.InterpCx, q *Query) (string, error) {
	l, err := cx.LayoutOf(q.Type)
	if err != nil {
		return "", err
	}
	if q.Op == OpLayout {
		return l.String(), nil
	}
	op, err := s.place(cx, q, l)
	if err != nil {
		return "", err
	}

	switch q.Op {
	case OpReadImmediate, OpReadImmediateForce:
		imm, mp, ok, err := cx.ReadImmediateRaw(op, q.Op == OpReadImmediateForce)
		if err != nil {
			return "", err
		}
		if !ok {
			return "not liftable: " + mp.MPlace.String(), nil
		}
		return cx.FormatImm(imm), nil
	case OpReadDiscriminant:
		discr, idx, err := cx.ReadDiscriminant(op)
		if err != nil {
			return "", err
		}
		return formatDiscriminant(cx, op.Layout.Type, discr, idx), nil
	case OpReadStr:
		return s.readStr(cx, op)
	case OpReadPointer:
		if err := requireScalar(cx, op.Layout, q.Op); err != nil {
			return "", err
		}
		p, err := cx.ReadPointer(op)
		if err != nil {
			return "", err
		}
		return p.String(), nil
	case OpConstInt:
		if tt := cx.Types().MustLookup(op.Layout.Type); !tt.IsIntegral() {
			return "", fmt.Errorf("const_int on %s, which is not an integer type", types.Label(cx.Types(), op.Layout.Type))
		}
		imm, err := cx.ReadImmediate(op)
		if err != nil {
			return "", err
		}
		c, err := cx.ToConstInt(imm)
		if err != nil {
			return "", err
		}
		return c.String(), nil
	case OpLen:
		if op.Layout.Fields.Kind != layout.FieldsArray {
			return "", fmt.Errorf("len on %s, which is not an array or slice", types.Label(cx.Types(), op.Layout.Type))
		}
		n, err := op.Len(cx)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	default:
		return "", fmt.Errorf("unknown op %q", q.Op)
	}
}

// place builds the queried place and applies the field projections.
func (s *Scenario) place(cx *interp.InterpCx, q *Query, l *layout.TypeLayout) (interp.OpTy, error) {
	ptr := value.PtrTo(q.Alloc, q.Offset)
	var mp interp.MPlaceTy
	switch {
	case l.IsUnsized() && q.Meta == nil:
		return interp.OpTy{}, fmt.Errorf("%s is unsized and needs meta", types.Label(cx.Types(), l.Type))
	case l.IsUnsized():
		meta := interp.MetaScalar(value.FromMachineUsize(*q.Meta, cx.PointerSize()))
		mp = interp.NewMPlaceWithMeta(ptr, meta, l)
	case q.Meta != nil:
		return interp.OpTy{}, fmt.Errorf("%s is sized and takes no meta", types.Label(cx.Types(), l.Type))
	default:
		mp = interp.NewMPlace(ptr, l)
	}
	op := interp.OpFromMPlace(mp)
	for _, i := range q.Fields {
		if i < 0 || i >= op.Layout.Fields.Len() {
			return interp.OpTy{}, fmt.Errorf("%s has no field %d", types.Label(cx.Types(), op.Layout.Type), i)
		}
		if _, err := cx.Layouts().FieldLayout(op.Layout, i); err != nil {
			return interp.OpTy{}, err
		}
		next, err := cx.OperandField(op, i)
		if err != nil {
			return interp.OpTy{}, err
		}
		op = next
	}
	return op, nil
}

// readStr reads a str place, or the str a &str points to.
func (s *Scenario) readStr(cx *interp.InterpCx, op interp.OpTy) (string, error) {
	in := cx.Types()
	b := in.Builtins()
	var mp interp.MPlaceTy
	switch tt := in.MustLookup(op.Layout.Type); {
	case op.Layout.Type == b.Str:
		mp, _ = op.MPlace()
	case tt.Kind == types.KindReference && tt.Elem == b.Str:
		imm, err := cx.ReadImmediate(op)
		if err != nil {
			return "", err
		}
		ptr, length, err := imm.Imm.ToScalarPair()
		if err != nil {
			return "", err
		}
		str, err := cx.LayoutOf(b.Str)
		if err != nil {
			return "", err
		}
		mp = interp.NewMPlaceWithMeta(ptr.ToPointer(), interp.MetaScalar(length), str)
	default:
		return "", fmt.Errorf("read_str on %s, which is neither str nor &str", types.Label(in, op.Layout.Type))
	}
	text, err := cx.ReadStr(mp)
	if err != nil {
		return "", err
	}
	return strconv.Quote(text), nil
}

func requireScalar(cx *interp.InterpCx, l *layout.TypeLayout, op Op) error {
	if l.Abi.Kind != layout.AbiScalar {
		return fmt.Errorf("%s on %s, which is not a scalar", op, types.Label(cx.Types(), l.Type))
	}
	return nil
}

// formatDiscriminant renders "Name (variant i, discr d)"; d is decimal in
// the enum's discriminant type.
func formatDiscriminant(cx *interp.InterpCx, ty types.TypeID, discr value.Scalar, idx layout.VariantIdx) string {
	in := cx.Types()
	bits := discr.AssertBits(discr.Size())
	num := bits.String()
	if dt := in.MustLookup(in.DiscriminantType(ty)); dt.IsSigned() {
		num = bits.SignExtend(uint(discr.Size()) * 8).BigSigned().String() //nolint:gosec // G115: scalar sizes are small
	}
	name := "variant"
	if info, ok := in.EnumInfo(ty); ok && int(idx) < len(info.Variants) {
		name = info.Variants[idx].Name
	}
	return fmt.Sprintf("%s (variant %d, discr %s)", name, idx, num)
}
