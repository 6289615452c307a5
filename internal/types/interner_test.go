package types_test

import (
	"sync"
	"testing"

	"ctfe/internal/types"
	"ctfe/internal/value"
)

func TestInternerDeduplicatesStructuralTypes(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()

	p1 := in.Intern(types.MakePointer(b.U8, false))
	p2 := in.Intern(types.MakePointer(b.U8, false))
	if p1 != p2 {
		t.Fatalf("pointer types not deduplicated: %d vs %d", p1, p2)
	}
	if in.Intern(types.MakePointer(b.U8, true)) == p1 {
		t.Fatalf("*mut u8 and *const u8 must differ")
	}
	if got := in.Tuple(b.U32, b.Bool); got != in.Tuple(b.U32, b.Bool) {
		t.Fatalf("tuple types not deduplicated")
	}
	if in.Tuple() != b.Unit {
		t.Fatalf("empty tuple should be unit")
	}
	if in.IntType(4, true) != b.I32 || in.IntType(16, false) != b.U128 {
		t.Fatalf("IntType returned the wrong builtin")
	}
}

func TestNominalTypesAreDistinct(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	a := in.RegisterStruct("A", []types.Field{{Name: "x", Type: b.U8}}, types.LayoutAttrs{})
	a2 := in.RegisterStruct("A", []types.Field{{Name: "x", Type: b.U8}}, types.LayoutAttrs{})
	if a == a2 {
		t.Fatalf("structs with equal shape must get distinct ids")
	}
	if err := in.DefineStruct(a, nil, types.LayoutAttrs{}); err == nil {
		t.Fatalf("expected redefinition error")
	}
}

func TestRecursiveStructViaPointer(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	node := in.DeclareStruct("Node")
	next := in.Intern(types.MakePointer(node, false))
	if err := in.DefineStruct(node, []types.Field{{Name: "val", Type: b.I32}, {Name: "next", Type: next}}, types.LayoutAttrs{}); err != nil {
		t.Fatalf("define: %v", err)
	}
	info, ok := in.StructInfo(node)
	if !ok || len(info.Fields) != 2 {
		t.Fatalf("unexpected struct info %+v", info)
	}
	if got := types.Label(in, next); got != "*const Node" {
		t.Fatalf("label = %q", got)
	}
}

func TestDiscriminants(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	e := in.RegisterEnum("E", b.I8, []types.Variant{
		{Name: "A"},
		{Name: "B", Discr: value.I128(-3), HasDiscr: true},
		{Name: "C"},
		{Name: "D", Discr: value.U128(10), HasDiscr: true},
		{Name: "F"},
	})
	want := []value.Uint128{value.U128(0), value.I128(-3), value.I128(-2), value.U128(10), value.U128(11)}
	got := in.Discriminants(e)
	if len(got) != len(want) {
		t.Fatalf("got %d discriminants, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("variant %d: got %s want %s", i, got[i].BigSigned(), want[i].BigSigned())
		}
	}
	if in.DiscriminantType(e) != b.I8 {
		t.Fatalf("discriminant type should be the repr")
	}
	plain := in.RegisterEnum("P", types.NoTypeID, []types.Variant{{Name: "X"}})
	if in.DiscriminantType(plain) != b.Isize {
		t.Fatalf("enums without repr use isize")
	}
	if in.DiscriminantType(b.Bool) != b.U8 {
		t.Fatalf("non-enums use u8")
	}
	if _, ok := in.DiscriminantForVariant(b.Bool, 0); ok {
		t.Fatalf("non-enums have no discriminant table")
	}
}

func TestDefineEnumRejectsNonIntegerRepr(t *testing.T) {
	in := types.NewInterner()
	e := in.DeclareEnum("E")
	if err := in.DefineEnum(e, in.Builtins().F32, nil); err == nil {
		t.Fatalf("expected error for float repr")
	}
}

func TestConcurrentInterning(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	var wg sync.WaitGroup
	ids := make([]types.TypeID, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = in.Tuple(b.U64, b.Bool)
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent Tuple returned different ids: %v", ids)
		}
	}
}

func TestLabels(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	tests := []struct {
		id   types.TypeID
		want string
	}{
		{b.Usize, "usize"},
		{b.I128, "i128"},
		{in.Intern(types.MakeReference(b.Str, false)), "&str"},
		{in.Intern(types.MakeReference(in.Intern(types.MakeSlice(b.U16)), true)), "&mut [u16]"},
		{in.Intern(types.MakeArray(b.U8, 4)), "[u8; 4]"},
		{in.Tuple(b.U8), "(u8,)"},
		{in.Intern(types.MakeMaybeUninit(b.U32)), "MaybeUninit<u32>"},
		{in.RegisterDyn("Debug"), "dyn Debug"},
	}
	for _, tt := range tests {
		if got := types.Label(in, tt.id); got != tt.want {
			t.Errorf("Label = %q, want %q", got, tt.want)
		}
	}
	if in.RegisterDyn("Debug") != in.RegisterDyn("Debug") {
		t.Fatalf("dyn types should be deduplicated by trait name")
	}
}
