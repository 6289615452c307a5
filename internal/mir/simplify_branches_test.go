package mir_test

import (
	"testing"

	"ctfe/internal/mir"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

func TestSimplifyBranches(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	u16 := func(v uint64) mir.Operand { return mir.ConstOperand(b.U16, value.FromUint(value.U128(v), 2)) }
	boolean := func(v bool) mir.Operand { return mir.ConstOperand(b.Bool, value.FromBool(v)) }
	sw := func(discr mir.Operand) mir.Terminator {
		return mir.Terminator{Kind: mir.TermSwitchInt, SwitchInt: mir.SwitchIntTerm{
			Discr:     discr,
			Cases:     []mir.SwitchCase{{Value: value.U128(1), Target: 1}, {Value: value.U128(2), Target: 2}},
			Otherwise: 3,
		}}
	}
	assert := func(cond mir.Operand, expected bool) mir.Terminator {
		return mir.Terminator{Kind: mir.TermAssert, Assert: mir.AssertTerm{Cond: cond, Expected: expected, Msg: "boom", Target: 4}}
	}

	tests := []struct {
		name   string
		term   mir.Terminator
		folded bool
		target mir.BlockID
	}{
		{"switch hits first case", sw(u16(1)), true, 1},
		{"switch hits second case", sw(u16(2)), true, 2},
		{"switch falls through", sw(u16(700)), true, 3},
		{"switch on local", sw(mir.CopyOperand(0)), false, 0},
		{"assert holds", assert(boolean(true), true), true, 4},
		{"negated assert holds", assert(boolean(false), false), true, 4},
		{"assert fails", assert(boolean(false), true), false, 0},
		{"assert on integer", assert(mir.ConstOperand(b.U8, value.FromUint(value.U128(1), 1)), true), false, 0},
		{"assert on local", assert(mir.CopyOperand(1), true), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mir.Func{
				Name:   "branch",
				Locals: []mir.Local{{Name: "x", Type: b.U16}, {Name: "c", Type: b.Bool}},
				Blocks: []mir.Block{{ID: 0, Term: tt.term}},
			}
			before := f.Blocks[0].Term.Kind
			n := mir.SimplifyBranches(f, in)
			term := f.Blocks[0].Term
			if !tt.folded {
				if n != 0 || term.Kind != before {
					t.Fatalf("terminator rewritten to %+v", term)
				}
				return
			}
			if n != 1 || term.Kind != mir.TermGoto || term.Goto.Target != tt.target {
				t.Fatalf("got %d rewrites and %+v, want goto bb%d", n, term, tt.target)
			}
		})
	}

	if mir.SimplifyBranches(nil, in) != 0 {
		t.Fatalf("nil function reported rewrites")
	}
}
