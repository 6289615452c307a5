package mir

import "ctfe/internal/value"

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermSwitchInt
	TermAssert
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto      GotoTerm
	SwitchInt SwitchIntTerm
	Assert    AssertTerm
}

type GotoTerm struct {
	Target BlockID
}

type SwitchCase struct {
	Value  value.Uint128
	Target BlockID
}

// SwitchIntTerm jumps to the first case whose value equals the bits of
// Discr, or to Otherwise.
type SwitchIntTerm struct {
	Discr     Operand
	Cases     []SwitchCase
	Otherwise BlockID
}

// AssertTerm continues at Target when Cond equals Expected and aborts
// with Msg otherwise.
type AssertTerm struct {
	Cond     Operand
	Expected bool
	Msg      string
	Target   BlockID
}

// Successors lists the blocks control may flow to, in declaration order.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermSwitchInt:
		out := make([]BlockID, 0, len(t.SwitchInt.Cases)+1)
		for _, c := range t.SwitchInt.Cases {
			out = append(out, c.Target)
		}
		return append(out, t.SwitchInt.Otherwise)
	case TermAssert:
		return []BlockID{t.Assert.Target}
	default:
		return nil
	}
}

// MapTargets rewrites every successor through fn. The case slice is
// copied so terminators sharing it are left alone.
func (t *Terminator) MapTargets(fn func(BlockID) BlockID) {
	switch t.Kind {
	case TermGoto:
		t.Goto.Target = fn(t.Goto.Target)
	case TermSwitchInt:
		if len(t.SwitchInt.Cases) > 0 {
			t.SwitchInt.Cases = append([]SwitchCase(nil), t.SwitchInt.Cases...)
		}
		for j := range t.SwitchInt.Cases {
			t.SwitchInt.Cases[j].Target = fn(t.SwitchInt.Cases[j].Target)
		}
		t.SwitchInt.Otherwise = fn(t.SwitchInt.Otherwise)
	case TermAssert:
		t.Assert.Target = fn(t.Assert.Target)
	}
}
