package mir

import (
	"fmt"
	"io"
	"strings"

	"ctfe/internal/types"
)

// DumpModule writes a human-readable representation of every body in m.
func DumpModule(w io.Writer, m *Module, typesIn *types.Interner) error {
	if w == nil || m == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "funcs=%d\n", len(m.Funcs)); err != nil {
		return err
	}
	for _, f := range m.Funcs {
		if err := DumpFunc(w, f, typesIn); err != nil {
			return err
		}
	}
	return nil
}

// DumpFunc writes one body.
func DumpFunc(w io.Writer, f *Func, typesIn *types.Interner) error {
	if w == nil || f == nil {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\nfn %s:\n", f.Name)
	sb.WriteString("  locals:\n")
	for i := range f.Locals {
		l := f.Locals[i]
		name := l.Name
		if name == "" {
			name = "_"
		}
		fmt.Fprintf(&sb, "    L%d: %s name=%s\n", i, types.Label(typesIn, l.Type), name)
	}
	if f.Entry != 0 {
		fmt.Fprintf(&sb, "  entry: bb%d\n", f.Entry)
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(&sb, "  bb%d:\n", bb.ID)
		for j := range bb.Instrs {
			fmt.Fprintf(&sb, "    %s\n", formatInstr(typesIn, &bb.Instrs[j]))
		}
		fmt.Fprintf(&sb, "    %s\n", formatTerm(typesIn, &bb.Term))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func formatInstr(typesIn *types.Interner, ins *Instr) string {
	switch ins.Kind {
	case InstrNop:
		return "nop"
	case InstrAssign:
		return fmt.Sprintf("%s = %s", formatPlace(ins.Assign.Dst), formatOperand(typesIn, &ins.Assign.Src))
	default:
		return "<instr?>"
	}
}

func formatTerm(typesIn *types.Interner, term *Terminator) string {
	switch term.Kind {
	case TermNone:
		return "<unterminated>"
	case TermReturn:
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", term.Goto.Target)
	case TermSwitchInt:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch_int %s {", formatOperand(typesIn, &term.SwitchInt.Discr))
		for _, c := range term.SwitchInt.Cases {
			fmt.Fprintf(&sb, " %s -> bb%d;", c.Value, c.Target)
		}
		fmt.Fprintf(&sb, " otherwise -> bb%d; }", term.SwitchInt.Otherwise)
		return sb.String()
	case TermAssert:
		return fmt.Sprintf("assert %s == %t, %q -> bb%d",
			formatOperand(typesIn, &term.Assert.Cond), term.Assert.Expected, term.Assert.Msg, term.Assert.Target)
	case TermUnreachable:
		return "unreachable"
	default:
		return "<term?>"
	}
}

func formatPlace(p Place) string {
	if !p.IsValid() {
		return "L?"
	}
	out := fmt.Sprintf("L%d", p.Local)
	for _, f := range p.Fields {
		out += fmt.Sprintf(".%d", f)
	}
	return out
}

func formatOperand(typesIn *types.Interner, op *Operand) string {
	switch op.Kind {
	case OperandConst:
		return formatConst(typesIn, &op.Const)
	case OperandCopy:
		return "copy " + formatPlace(op.Place)
	case OperandMove:
		return "move " + formatPlace(op.Place)
	default:
		return "<op?>"
	}
}

// formatConst renders integers in decimal with their type suffix, the way
// the body loader reads them back.
func formatConst(typesIn *types.Interner, c *Const) string {
	tt, ok := typesIn.Lookup(c.Type)
	n, isInt := c.Scalar.TryToInt()
	if !ok || !isInt {
		return "const " + c.Scalar.String()
	}
	bits := n.AssertBits(c.Scalar.Size())
	switch tt.Kind {
	case types.KindBool:
		if bits.IsZero() {
			return "const false"
		}
		return "const true"
	case types.KindInt:
		return fmt.Sprintf("const %s_%s", bits.SignExtend(uint(c.Scalar.Size())*8).BigSigned(), types.Label(typesIn, c.Type))
	default:
		return fmt.Sprintf("const %s_%s", bits, types.Label(typesIn, c.Type))
	}
}
