package mir

import (
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// SimplifyBranches replaces branches on constants with plain gotos:
// a SwitchInt on a constant jumps straight to the matching case or to
// Otherwise, and an Assert whose constant condition holds becomes a goto
// to its target. Asserts that would fail and branches on locals are left
// alone. It returns the number of rewritten terminators.
func SimplifyBranches(f *Func, typesIn *types.Interner) int {
	if f == nil {
		return 0
	}
	rewritten := 0
	for i := range f.Blocks {
		term := &f.Blocks[i].Term
		switch term.Kind {
		case TermSwitchInt:
			bits, ok := constBits(&term.SwitchInt.Discr)
			if !ok {
				continue
			}
			target := term.SwitchInt.Otherwise
			for _, c := range term.SwitchInt.Cases {
				if c.Value == bits {
					target = c.Target
					break
				}
			}
			*term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
			rewritten++
		case TermAssert:
			cond, ok := constBool(typesIn, &term.Assert.Cond)
			if !ok || cond != term.Assert.Expected {
				continue
			}
			*term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: term.Assert.Target}}
			rewritten++
		}
	}
	return rewritten
}

// constBits returns the raw bits of an integer constant operand.
func constBits(op *Operand) (value.Uint128, bool) {
	if op.Kind != OperandConst {
		return value.Uint128{}, false
	}
	n, ok := op.Const.Scalar.TryToInt()
	if !ok {
		return value.Uint128{}, false
	}
	return n.AssertBits(op.Const.Scalar.Size()), true
}

func constBool(typesIn *types.Interner, op *Operand) (bool, bool) {
	if op.Kind != OperandConst || op.Const.Type != typesIn.Builtins().Bool {
		return false, false
	}
	bits, ok := constBits(op)
	if !ok {
		return false, false
	}
	switch bits {
	case value.U128(0):
		return false, true
	case value.U128(1):
		return true, true
	default:
		return false, false
	}
}
