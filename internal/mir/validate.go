package mir

import (
	"errors"
	"fmt"

	"ctfe/internal/types"
)

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module, typesIn *types.Interner) error {
	if m == nil {
		return nil
	}
	var errs []error
	seen := make(map[string]bool, len(m.Funcs))
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("function %s defined twice", f.Name))
		}
		seen[f.Name] = true
		if err := ValidateFunc(f, typesIn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks one body: every block is terminated, every jump
// lands on an existing block, every place names an existing local and
// constants are typed by typesIn.
func ValidateFunc(f *Func, typesIn *types.Interner) error {
	if f == nil {
		return nil
	}
	var errs []error
	if len(f.Blocks) == 0 {
		errs = append(errs, errors.New("no blocks"))
	} else if !blockExists(f, f.Entry) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	if err := validateBlocks(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateOperands(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func blockExists(f *Func, id BlockID) bool {
	return id >= 0 && int(id) < len(f.Blocks)
}

func validateBlocks(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if int(bb.ID) != i {
			errs = append(errs, fmt.Errorf("bb%d: stored with id bb%d", i, bb.ID))
		}
		if !bb.Terminated() {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
			continue
		}
		for _, target := range bb.Term.Successors() {
			if !blockExists(f, target) {
				errs = append(errs, fmt.Errorf("bb%d: target bb%d does not exist", i, target))
			}
		}
		if bb.Term.Kind == TermSwitchInt {
			seen := make(map[string]bool, len(bb.Term.SwitchInt.Cases))
			for _, c := range bb.Term.SwitchInt.Cases {
				key := c.Value.String()
				if seen[key] {
					errs = append(errs, fmt.Errorf("bb%d: switch_int has duplicate case %s", i, key))
				}
				seen[key] = true
			}
		}
	}
	return errors.Join(errs...)
}

func validateOperands(f *Func, typesIn *types.Interner) error {
	var errs []error
	checkPlace := func(p Place, where string) {
		if p.Local < 0 || int(p.Local) >= len(f.Locals) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", where, p.Local))
		}
	}
	checkOperand := func(op Operand, where string) {
		switch op.Kind {
		case OperandCopy, OperandMove:
			checkPlace(op.Place, where)
		case OperandConst:
			if _, ok := typesIn.Lookup(op.Const.Type); !ok {
				errs = append(errs, fmt.Errorf("%s: constant has unknown type %d", where, op.Const.Type))
			}
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			if ins.Kind == InstrAssign {
				where := fmt.Sprintf("bb%d instr %d", i, j)
				checkPlace(ins.Assign.Dst, where)
				checkOperand(ins.Assign.Src, where)
			}
		}
		where := fmt.Sprintf("bb%d terminator", i)
		switch bb.Term.Kind {
		case TermSwitchInt:
			checkOperand(bb.Term.SwitchInt.Discr, where)
		case TermAssert:
			checkOperand(bb.Term.Assert.Cond, where)
		}
	}
	return errors.Join(errs...)
}
