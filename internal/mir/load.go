package mir

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"ctfe/internal/layout"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// ErrNoFunctions is returned for a body file without any [[fn]] table.
var ErrNoFunctions = errors.New("no [[fn]] tables")

type bodyFile struct {
	Fn []fnSpec `toml:"fn"`
}

type fnSpec struct {
	Name   string      `toml:"name"`
	Entry  int         `toml:"entry"`
	Locals []localSpec `toml:"locals"`
	Blocks []blockSpec `toml:"blocks"`
}

type localSpec struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type blockSpec struct {
	Assign []assignSpec `toml:"assign"`
	Term   termSpec     `toml:"term"`
}

type assignSpec struct {
	Dst string `toml:"dst"`
	Src string `toml:"src"`
}

type termSpec struct {
	Kind      string     `toml:"kind"`
	Target    int        `toml:"target"`
	Discr     string     `toml:"discr"`
	Cases     []caseSpec `toml:"cases"`
	Otherwise int        `toml:"otherwise"`
	Cond      string     `toml:"cond"`
	Expected  *bool      `toml:"expected"`
	Msg       string     `toml:"msg"`
}

type caseSpec struct {
	Value  int64 `toml:"value"`
	Target int   `toml:"target"`
}

// LoadFile reads a body file. Types are interned into the engine's
// interner and sized with its target.
func LoadFile(path string, eng *layout.Engine) (*Module, error) {
	var spec bodyFile
	meta, err := toml.DecodeFile(path, &spec)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	m, err := build(meta, &spec, eng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode reads a body file from memory.
func Decode(data string, eng *layout.Engine) (*Module, error) {
	var spec bodyFile
	meta, err := toml.Decode(data, &spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return build(meta, &spec, eng)
}

func build(meta toml.MetaData, spec *bodyFile, eng *layout.Engine) (*Module, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if !meta.IsDefined("fn") || len(spec.Fn) == 0 {
		return nil, ErrNoFunctions
	}
	m := &Module{Funcs: make([]*Func, 0, len(spec.Fn))}
	for i := range spec.Fn {
		b := &fnBuilder{eng: eng, spec: &spec.Fn[i], locals: make(map[string]LocalID)}
		f, err := b.build()
		if err != nil {
			name := spec.Fn[i].Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("fn %s: %w", name, err)
		}
		m.Funcs = append(m.Funcs, f)
	}
	if err := Validate(m, eng.Types()); err != nil {
		return nil, err
	}
	return m, nil
}

type fnBuilder struct {
	eng    *layout.Engine
	spec   *fnSpec
	f      *Func
	locals map[string]LocalID
}

func (b *fnBuilder) build() (*Func, error) {
	if b.spec.Name == "" {
		return nil, errors.New("missing name")
	}
	b.f = &Func{Name: b.spec.Name, Entry: BlockID(b.spec.Entry)} //nolint:gosec // G115: checked by Validate
	for i, ls := range b.spec.Locals {
		ty, err := types.Parse(b.eng.Types(), ls.Type, nil)
		if err != nil {
			return nil, fmt.Errorf("local %q: %w", ls.Name, err)
		}
		if _, dup := b.locals[ls.Name]; dup && ls.Name != "" {
			return nil, fmt.Errorf("local %q declared twice", ls.Name)
		}
		b.locals[ls.Name] = LocalID(i) //nolint:gosec // G115: local counts are small
		b.f.Locals = append(b.f.Locals, Local{Name: ls.Name, Type: ty})
	}
	for i := range b.spec.Blocks {
		bs := &b.spec.Blocks[i]
		bb := Block{ID: BlockID(i)} //nolint:gosec // G115: block counts are small
		for j, as := range bs.Assign {
			dst, err := b.place(as.Dst)
			if err != nil {
				return nil, fmt.Errorf("bb%d assign %d: %w", i, j, err)
			}
			src, err := b.operand(as.Src)
			if err != nil {
				return nil, fmt.Errorf("bb%d assign %d: %w", i, j, err)
			}
			bb.Instrs = append(bb.Instrs, Instr{Kind: InstrAssign, Assign: AssignInstr{Dst: dst, Src: src}})
		}
		term, err := b.term(&bs.Term)
		if err != nil {
			return nil, fmt.Errorf("bb%d: %w", i, err)
		}
		bb.Term = term
		b.f.Blocks = append(b.f.Blocks, bb)
	}
	return b.f, nil
}

func (b *fnBuilder) term(ts *termSpec) (Terminator, error) {
	switch ts.Kind {
	case "return":
		return Terminator{Kind: TermReturn}, nil
	case "unreachable":
		return Terminator{Kind: TermUnreachable}, nil
	case "goto":
		return Terminator{Kind: TermGoto, Goto: GotoTerm{Target: BlockID(ts.Target)}}, nil //nolint:gosec // G115: checked by Validate
	case "switch_int":
		discr, err := b.operand(ts.Discr)
		if err != nil {
			return Terminator{}, err
		}
		size, err := b.operandSize(discr)
		if err != nil {
			return Terminator{}, err
		}
		sw := SwitchIntTerm{Discr: discr, Otherwise: BlockID(ts.Otherwise)} //nolint:gosec // G115: checked by Validate
		for _, c := range ts.Cases {
			bits := value.I128(c.Value).Truncate(uint(size) * 8) //nolint:gosec // G115: layout sizes are positive
			sw.Cases = append(sw.Cases, SwitchCase{Value: bits, Target: BlockID(c.Target)}) //nolint:gosec // G115: checked by Validate
		}
		return Terminator{Kind: TermSwitchInt, SwitchInt: sw}, nil
	case "assert":
		cond, err := b.operand(ts.Cond)
		if err != nil {
			return Terminator{}, err
		}
		expected := true
		if ts.Expected != nil {
			expected = *ts.Expected
		}
		return Terminator{Kind: TermAssert, Assert: AssertTerm{
			Cond:     cond,
			Expected: expected,
			Msg:      ts.Msg,
			Target:   BlockID(ts.Target), //nolint:gosec // G115: checked by Validate
		}}, nil
	case "":
		return Terminator{}, errors.New("missing terminator")
	default:
		return Terminator{}, fmt.Errorf("unknown terminator %q", ts.Kind)
	}
}

// place parses "name" or "name.0.1".
func (b *fnBuilder) place(s string) (Place, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	id, ok := b.locals[parts[0]]
	if !ok || parts[0] == "" {
		return Place{}, fmt.Errorf("unknown local %q", parts[0])
	}
	p := Place{Local: id}
	for _, part := range parts[1:] {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return Place{}, fmt.Errorf("bad field %q in %q", part, s)
		}
		p.Fields = append(p.Fields, idx)
	}
	return p, nil
}

// operand parses "copy x", "move x", a bare place, "true", "false" or an
// integer literal with a type suffix such as "5_u8" or "-1_i32".
func (b *fnBuilder) operand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Operand{}, errors.New("missing operand")
	case s == "true" || s == "false":
		return ConstOperand(b.eng.Types().Builtins().Bool, value.FromBool(s == "true")), nil
	case strings.HasPrefix(s, "copy "):
		p, err := b.place(strings.TrimPrefix(s, "copy "))
		return Operand{Kind: OperandCopy, Place: p}, err
	case strings.HasPrefix(s, "move "):
		p, err := b.place(strings.TrimPrefix(s, "move "))
		return Operand{Kind: OperandMove, Place: p}, err
	case s[0] == '-' || (s[0] >= '0' && s[0] <= '9'):
		return b.literal(s)
	default:
		p, err := b.place(s)
		return Operand{Kind: OperandCopy, Place: p}, err
	}
}

func (b *fnBuilder) literal(s string) (Operand, error) {
	cut := strings.LastIndexByte(s, '_')
	if cut <= 0 {
		return Operand{}, fmt.Errorf("literal %q needs a type suffix", s)
	}
	num, suffix := strings.ReplaceAll(s[:cut], "_", ""), s[cut+1:]
	ty, err := types.Parse(b.eng.Types(), suffix, nil)
	if err != nil {
		return Operand{}, fmt.Errorf("literal %q: %w", s, err)
	}
	tt := b.eng.Types().MustLookup(ty)
	if !tt.IsIntegral() {
		return Operand{}, fmt.Errorf("literal %q: %s is not an integer type", s, suffix)
	}
	n, ok := new(big.Int).SetString(num, 0)
	if !ok {
		return Operand{}, fmt.Errorf("literal %q: bad number", s)
	}
	l, err := b.eng.LayoutOf(ty)
	if err != nil {
		return Operand{}, err
	}
	bits := value.FromBig(n)
	var sc value.Scalar
	switch {
	case tt.IsSigned():
		sc, ok = value.TryFromInt(bits, l.Size)
	case n.Sign() < 0:
		ok = false
	default:
		sc, ok = value.TryFromUint(bits, l.Size)
	}
	if !ok {
		return Operand{}, fmt.Errorf("literal %q does not fit %s", s, suffix)
	}
	return ConstOperand(ty, sc), nil
}

func (b *fnBuilder) operandSize(op Operand) (int, error) {
	if op.Kind == OperandConst {
		return op.Const.Scalar.Size(), nil
	}
	if len(op.Place.Fields) > 0 {
		return 0, errors.New("switch_int on a projected place is not supported")
	}
	l, err := b.eng.LayoutOf(b.f.Locals[op.Place.Local].Type)
	if err != nil {
		return 0, err
	}
	if l.Size <= 0 || l.Size > value.MaxScalarSize {
		return 0, fmt.Errorf("switch_int on %s, which is not a scalar", types.Label(b.eng.Types(), l.Type))
	}
	return l.Size, nil
}
