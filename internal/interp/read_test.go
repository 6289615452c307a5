package interp_test

import (
	"testing"

	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

func TestLiftabilityDependsOnLayoutOnly(t *testing.T) {
	f := newFixture(t)
	b := f.b
	pairTy := f.in.Tuple(b.U8, b.U32)
	tripleTy := f.in.Tuple(b.U8, b.U16, b.U32)
	maybe := f.in.Intern(types.MakeMaybeUninit(b.U32))
	arr := f.in.Intern(types.MakeArray(b.U8, 4))

	tests := []struct {
		name      string
		ty        types.TypeID
		liftable  bool
		withForce bool
	}{
		{"u32", b.U32, true, true},
		{"bool", b.Bool, true, true},
		{"(u8, u32)", pairTy, true, true},
		{"(u8, u16, u32)", tripleTy, false, false},
		{"[u8; 4]", arr, false, false},
		{"MaybeUninit<u32>", maybe, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := f.layoutOf(t, tt.ty)
			initID := f.alloc(t, "init-"+tt.name, l.Size, l.Align)
			if err := f.mem.WriteBytes(value.PtrTo(initID, 0), make([]byte, l.Size)); err != nil {
				t.Fatal(err)
			}
			blankID := f.alloc(t, "blank-"+tt.name, l.Size, l.Align)

			for _, id := range []value.AllocID{initID, blankID} {
				op := f.place(t, value.PtrTo(id, 0), tt.ty)
				_, _, ok, err := f.cx.ReadImmediateRaw(op, false)
				if err != nil {
					t.Fatalf("ReadImmediateRaw: %v", err)
				}
				if ok != tt.liftable {
					t.Fatalf("liftable = %v, want %v", ok, tt.liftable)
				}
				_, mp, ok, err := f.cx.ReadImmediateRaw(op, true)
				if err != nil {
					t.Fatalf("ReadImmediateRaw(force): %v", err)
				}
				if ok != tt.withForce {
					t.Fatalf("forced liftable = %v, want %v", ok, tt.withForce)
				}
				if !ok && mp.MPlace.Ptr != value.PtrTo(id, 0) {
					t.Fatalf("not liftable should return the place, got %s", mp.MPlace)
				}
			}
		})
	}
}

func TestUnsizedPlaceIsNotLiftable(t *testing.T) {
	f := newFixture(t)
	id := f.alloc(t, "s", 3, 1)
	mp := interp.NewMPlaceWithMeta(value.PtrTo(id, 0), interp.MetaScalar(value.FromMachineUsize(3, 8)), f.layoutOf(t, f.b.Str))
	_, _, ok, err := f.cx.ReadImmediateRaw(interp.OpFromMPlace(mp), true)
	if err != nil || ok {
		t.Fatalf("unsized place lifted: ok=%v err=%v", ok, err)
	}
}

func TestUninitPropagatesThroughProjection(t *testing.T) {
	f := newFixture(t)
	pairTy := f.in.Tuple(f.b.U8, f.b.U32)
	op := interp.OpFromImm(interp.ImmTyUninit(f.layoutOf(t, pairTy)))

	u32 := f.layoutOf(t, f.b.U32)
	field := op.Offset(f.cx, 4, u32)
	imm, ok := field.Immediate()
	if !ok || imm.Imm.Kind() != interp.ImmUninitKind || imm.Layout != u32 {
		t.Fatalf("expected uninit u32, got %v", imm)
	}
	_, err := imm.ToScalar()
	expectCode(t, err, interp.CodeInvalidUninitBytes)

	scalarOp := interp.OpFromImm(f.imm(t, 7, f.b.U32))
	expectBug(t, func() { scalarOp.Offset(f.cx, 0, f.layoutOf(t, f.b.U8)) })
	expectBug(t, func() {
		op.OffsetWithMeta(f.cx, 0, interp.MetaScalar(value.FromMachineUsize(1, 8)), u32)
	})
}

func TestUninitializedMemoryReadsAsUninitScalar(t *testing.T) {
	f := newFixture(t)
	id := f.alloc(t, "x", 4, 4)
	imm, err := f.cx.ReadImmediate(f.place(t, value.PtrTo(id, 0), f.b.U32))
	if err != nil {
		t.Fatal(err)
	}
	if imm.Imm.Kind() != interp.ImmScalarKind || imm.Imm.ToScalarOrUninit().IsInit() {
		t.Fatalf("expected Scalar(uninit), got %s", imm.Imm)
	}
	_, err = imm.ToScalar()
	expectCode(t, err, interp.CodeInvalidUninitBytes)
}

func TestScalarPairSecondOffset(t *testing.T) {
	f := newFixture(t)
	b := f.b
	slice := f.in.Intern(types.MakeReference(f.in.Intern(types.MakeSlice(b.U8)), false))
	tests := []struct {
		name       string
		ty         types.TypeID
		second     int
		firstSize  int
		secondSize int
	}{
		{"(u8, u32)", f.in.Tuple(b.U8, b.U32), 4, 1, 4},
		{"(u16, u64)", f.in.Tuple(b.U16, b.U64), 8, 2, 8},
		{"(u32, u8)", f.in.Tuple(b.U32, b.U8), 4, 4, 1},
		{"&[u8]", slice, 8, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := f.layoutOf(t, tt.ty)
			if l.Abi.Kind != layout.AbiScalarPair {
				t.Fatalf("expected ScalarPair, got %s", l)
			}
			got := layout.PairSecondOffset(l.Abi.A, l.Abi.B, layout.X86_64LinuxGNU())
			if got != tt.second || got <= 0 {
				t.Fatalf("second offset = %d, want %d", got, tt.second)
			}

			id := f.alloc(t, tt.name, l.Size, l.Align)
			f.writeUint(t, value.PtrTo(id, 0), 0x11, tt.firstSize)
			f.writeUint(t, value.PtrTo(id, uint64(tt.second)), 0x22, tt.secondSize)
			imm, err := f.cx.ReadImmediate(f.place(t, value.PtrTo(id, 0), tt.ty))
			if err != nil {
				t.Fatal(err)
			}
			a, bb := imm.Imm.ToScalarOrUninitPair()
			if scalarBits(t, a) != 0x11 || scalarBits(t, bb) != 0x22 {
				t.Fatalf("read pair %s", imm.Imm)
			}
		})
	}
}

func TestZeroSizedReadTouchesNoMemory(t *testing.T) {
	f := newFixture(t)
	counter := &countingMemory{Memory: f.mem}
	cx := interp.New(f.eng, counter, interp.Config{CheckAlignment: true})

	empty := f.in.RegisterStruct("Empty", nil, types.LayoutAttrs{})
	zsts := []types.TypeID{
		f.b.Unit,
		empty,
		f.in.Intern(types.MakeArray(f.b.U64, 0)),
		f.in.Tuple(f.b.Unit, empty),
	}
	for _, ty := range zsts {
		// a dangling address would fail any real access
		op := f.place(t, value.Address(0x10), ty)
		imm, _, ok, err := cx.ReadImmediateRaw(op, false)
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", types.Label(f.in, ty), ok, err)
		}
		if imm.Imm.Kind() != interp.ImmUninitKind {
			t.Fatalf("%s: expected Uninit, got %s", types.Label(f.in, ty), imm.Imm)
		}
	}
	if counter.reads != 0 {
		t.Fatalf("zero-sized reads hit memory %d times", counter.reads)
	}

	id := f.alloc(t, "byte", 1, 1)
	f.writeUint(t, value.PtrTo(id, 0), 1, 1)
	if _, err := cx.ReadImmediate(f.place(t, value.PtrTo(id, 0), f.b.U8)); err != nil {
		t.Fatal(err)
	}
	if counter.reads != 1 {
		t.Fatalf("u8 read counted %d reads, want 1", counter.reads)
	}
}

func TestPointerSizedIntegerProvenance(t *testing.T) {
	strict := newFixture(t)
	target := strict.alloc(t, "target", 4, 4)
	holder := strict.alloc(t, "holder", 8, 8)
	if err := strict.mem.WritePointer(value.PtrTo(holder, 0), value.PtrTo(target, 2)); err != nil {
		t.Fatal(err)
	}
	_, err := strict.cx.ReadImmediate(strict.place(t, value.PtrTo(holder, 0), strict.b.U64))
	expectCode(t, err, interp.CodeReadPointerAsBytes)

	permissive := interp.New(strict.eng, strict.mem, interp.Config{})
	imm, err := permissive.ReadImmediate(strict.place(t, value.PtrTo(holder, 0), strict.b.U64))
	if err != nil {
		t.Fatal(err)
	}
	s, _ := imm.Imm.ToScalarOrUninit().Scalar()
	if !s.IsPtr() || s.ToPointer() != value.PtrTo(target, 2) {
		t.Fatalf("expected a pointer, got %s", s)
	}

	ptrTy := strict.in.Intern(types.MakePointer(strict.b.U8, false))
	p, err := strict.cx.ReadPointer(strict.place(t, value.PtrTo(holder, 0), ptrTy))
	if err != nil || p != value.PtrTo(target, 2) {
		t.Fatalf("ReadPointer = %s, %v", p, err)
	}
}

func TestMisalignedReadWhenChecking(t *testing.T) {
	f := newFixtureWith(t, interp.Config{CheckAlignment: true})
	id := f.alloc(t, "buf", 8, 4)
	f.writeUint(t, value.PtrTo(id, 2), 5, 4)
	_, err := f.cx.ReadImmediate(f.place(t, value.PtrTo(id, 2), f.b.U32))
	expectCode(t, err, interp.CodeAlignmentCheckFailed)
}

func TestReadStr(t *testing.T) {
	f := newFixture(t)
	str := f.layoutOf(t, f.b.Str)
	id := f.alloc(t, "text", 8, 1)
	if err := f.mem.WriteBytes(value.PtrTo(id, 0), []byte("héllo\xff\xfe")); err != nil {
		t.Fatal(err)
	}
	meta := func(n uint64) interp.MemPlaceMeta { return interp.MetaScalar(value.FromMachineUsize(n, 8)) }

	got, err := f.cx.ReadStr(interp.NewMPlaceWithMeta(value.PtrTo(id, 0), meta(6), str))
	if err != nil || got != "héllo" {
		t.Fatalf("ReadStr = %q, %v", got, err)
	}
	_, err = f.cx.ReadStr(interp.NewMPlaceWithMeta(value.PtrTo(id, 0), meta(8), str))
	expectCode(t, err, interp.CodeInvalidStr)
	_, err = f.cx.ReadStr(interp.NewMPlaceWithMeta(value.PtrTo(id, 4), meta(8), str))
	expectCode(t, err, interp.CodePointerOutOfBounds)
}

func TestOperandFieldOfPairImmediate(t *testing.T) {
	f := newFixture(t)
	pairTy := f.in.Tuple(f.b.U16, f.b.U64)
	l := f.layoutOf(t, pairTy)
	imm := interp.ImmTyFromImmediate(interp.ImmScalarPair(
		value.Init(value.FromUint(value.U128(3), 2)),
		value.Init(value.FromUint(value.U128(9), 8)),
	), l)
	op := interp.OpFromImm(imm)

	for i, want := range []uint64{3, 9} {
		field, err := f.cx.OperandField(op, i)
		if err != nil {
			t.Fatal(err)
		}
		s, err := f.cx.ReadScalar(field)
		if err != nil || scalarBits(t, s) != want {
			t.Fatalf("field %d = %s, %v", i, s, err)
		}
	}
}

func TestOperandFieldOfPlaceRestrictsAlignment(t *testing.T) {
	f := newFixture(t)
	tupleTy := f.in.Tuple(f.b.U64, f.b.U8, f.b.U16)
	id := f.alloc(t, "t", 16, 8)
	f.writeUint(t, value.PtrTo(id, 10), 0xBEEF, 2)
	field, err := f.cx.OperandField(f.place(t, value.PtrTo(id, 0), tupleTy), 2)
	if err != nil {
		t.Fatal(err)
	}
	if align, ok := field.Align(); !ok || align != 2 {
		t.Fatalf("field alignment = %d, %v", align, ok)
	}
	s, err := f.cx.ReadScalar(field)
	if err != nil || scalarBits(t, s) != 0xBEEF {
		t.Fatalf("field = %s, %v", s, err)
	}
}

func TestLen(t *testing.T) {
	f := newFixture(t)
	arr := f.in.Intern(types.MakeArray(f.b.U16, 5))
	id := f.alloc(t, "arr", 10, 2)
	n, err := f.place(t, value.PtrTo(id, 0), arr).Len(f.cx)
	if err != nil || n != 5 {
		t.Fatalf("array Len = %d, %v", n, err)
	}

	slice := f.layoutOf(t, f.in.Intern(types.MakeSlice(f.b.U16)))
	mp := interp.NewMPlaceWithMeta(value.PtrTo(id, 0), interp.MetaScalar(value.FromMachineUsize(3, 8)), slice)
	n, err = interp.OpFromMPlace(mp).Len(f.cx)
	if err != nil || n != 3 {
		t.Fatalf("slice Len = %d, %v", n, err)
	}

	expectBug(t, func() { _, _ = f.place(t, value.PtrTo(id, 0), f.b.U32).Len(f.cx) })
}

func TestOpTyAlignmentOverride(t *testing.T) {
	f := newFixture(t)
	if _, ok := interp.OpFromImm(f.imm(t, 1, f.b.U8)).Align(); ok {
		t.Fatalf("immediates carry no alignment override")
	}
	op := f.place(t, value.Address(0x40), f.b.U64)
	if align, ok := op.Align(); !ok || align != 8 {
		t.Fatalf("place alignment = %d, %v", align, ok)
	}
}
