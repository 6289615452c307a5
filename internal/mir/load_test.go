package mir_test

import (
	"errors"
	"strings"
	"testing"

	"ctfe/internal/layout"
	"ctfe/internal/mir"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

const branchyBody = `
[[fn]]
name = "pick"
locals = [{ name = "x", type = "u8" }]

[[fn.blocks]]
assign = [{ dst = "x", src = "3_u8" }]
term = { kind = "switch_int", discr = "3_u8", cases = [{ value = 3, target = 1 }], otherwise = 2 }

[[fn.blocks]]
term = { kind = "assert", cond = "true", msg = "ok", target = 3 }

[[fn.blocks]]
term = { kind = "goto", target = 3 }

[[fn.blocks]]
term = { kind = "return" }
`

func newEngine() (*types.Interner, *layout.Engine) {
	in := types.NewInterner()
	return in, layout.NewEngine(layout.X86_64LinuxGNU(), in)
}

func dump(t *testing.T, f *mir.Func, in *types.Interner) string {
	t.Helper()
	var sb strings.Builder
	if err := mir.DumpFunc(&sb, f, in); err != nil {
		t.Fatalf("DumpFunc: %v", err)
	}
	return sb.String()
}

func TestDecodeAndDump(t *testing.T) {
	in, eng := newEngine()
	m, err := mir.Decode(branchyBody, eng)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := m.Func("pick"); !ok {
		t.Fatalf("function pick not found")
	}
	if _, ok := m.Func("other"); ok {
		t.Fatalf("unexpected function lookup result")
	}

	want := `
fn pick:
  locals:
    L0: u8 name=x
  bb0:
    L0 = const 3_u8
    switch_int const 3_u8 { 3 -> bb1; otherwise -> bb2; }
  bb1:
    assert const true == true, "ok" -> bb3
  bb2:
    goto bb3
  bb3:
    return
`
	if got := dump(t, m.Funcs[0], in); got != want {
		t.Fatalf("dump mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestSimplifyLoadedBody(t *testing.T) {
	in, eng := newEngine()
	m, err := mir.Decode(branchyBody, eng)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := m.Funcs[0]
	if n := mir.SimplifyBranches(f, in); n != 2 {
		t.Fatalf("SimplifyBranches rewrote %d terminators, want 2", n)
	}
	mir.SimplifyCFG(f)

	want := `
fn pick:
  locals:
    L0: u8 name=x
  bb0:
    L0 = const 3_u8
    goto bb1
  bb1:
    return
`
	if got := dump(t, f, in); got != want {
		t.Fatalf("dump mismatch:\n%s\nwant:\n%s", got, want)
	}

	var sb strings.Builder
	if err := mir.DumpModule(&sb, m, in); err != nil {
		t.Fatalf("DumpModule: %v", err)
	}
	if !strings.HasPrefix(sb.String(), "funcs=1\n") {
		t.Fatalf("module dump starts with %q", sb.String())
	}
}

func TestDecodeSignedLiterals(t *testing.T) {
	in, eng := newEngine()
	m, err := mir.Decode(`
[[fn]]
name = "neg"
locals = [{ name = "a", type = "i8" }, { name = "b", type = "(i32, bool)" }]

[[fn.blocks]]
assign = [{ dst = "a", src = "-1_i8" }, { dst = "b.0", src = "-1_000_i32" }, { dst = "b.1", src = "false" }]
term = { kind = "switch_int", discr = "copy a", cases = [{ value = -1, target = 1 }], otherwise = 1 }

[[fn.blocks]]
term = { kind = "unreachable" }
`, eng)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	f := m.Funcs[0]
	if got := f.Blocks[0].Term.SwitchInt.Cases[0].Value; got != value.U128(0xFF) {
		t.Fatalf("case value = %s, want 255", got)
	}
	out := dump(t, f, in)
	for _, want := range []string{
		"L1: (i32, bool) name=b",
		"L0 = const -1_i8",
		"L1.0 = const -1000_i32",
		"L1.1 = const false",
		"switch_int copy L0 { 255 -> bb1; otherwise -> bb1; }",
		"unreachable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	block := "\n[[fn.blocks]]\nterm = { kind = \"return\" }\n"
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "[[fn]]\nname = \"a\"\nbogus = 1\n" + block, "unknown key"},
		{"missing name", "[[fn]]\n" + block, "missing name"},
		{"bad local type", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u7\" }]\n" + block, "local \"x\""},
		{"duplicate local", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u8\" }, { name = \"x\", type = \"u8\" }]\n" + block, "declared twice"},
		{"unknown local", "[[fn]]\nname = \"a\"\n[[fn.blocks]]\nassign = [{ dst = \"y\", src = \"1_u8\" }]\nterm = { kind = \"return\" }\n", "unknown local"},
		{"literal too large", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u8\" }]\n[[fn.blocks]]\nassign = [{ dst = \"x\", src = \"300_u8\" }]\nterm = { kind = \"return\" }\n", "does not fit"},
		{"negative unsigned", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u8\" }]\n[[fn.blocks]]\nassign = [{ dst = \"x\", src = \"-1_u8\" }]\nterm = { kind = \"return\" }\n", "does not fit"},
		{"no suffix", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u8\" }]\n[[fn.blocks]]\nassign = [{ dst = \"x\", src = \"12\" }]\nterm = { kind = \"return\" }\n", "type suffix"},
		{"float literal", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"u8\" }]\n[[fn.blocks]]\nassign = [{ dst = \"x\", src = \"1_f32\" }]\nterm = { kind = \"return\" }\n", "not an integer type"},
		{"missing terminator", "[[fn]]\nname = \"a\"\n[[fn.blocks]]\n", "missing terminator"},
		{"unknown terminator", "[[fn]]\nname = \"a\"\n[[fn.blocks]]\nterm = { kind = \"call\" }\n", "unknown terminator"},
		{"dangling goto", "[[fn]]\nname = \"a\"\n[[fn.blocks]]\nterm = { kind = \"goto\", target = 9 }\n", "bb9 does not exist"},
		{"switch on aggregate", "[[fn]]\nname = \"a\"\nlocals = [{ name = \"x\", type = \"[u8; 32]\" }]\n[[fn.blocks]]\nterm = { kind = \"switch_int\", discr = \"copy x\", otherwise = 0 }\n", "not a scalar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, eng := newEngine()
			_, err := mir.Decode(tt.src, eng)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Decode error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestDecodeWithoutFunctions(t *testing.T) {
	_, eng := newEngine()
	if _, err := mir.Decode("# nothing here\n", eng); !errors.Is(err, mir.ErrNoFunctions) {
		t.Fatalf("Decode error = %v, want ErrNoFunctions", err)
	}
}
