package interp_test

import (
	"errors"
	"testing"

	"ctfe/internal/interp"
	"ctfe/internal/layout"
	"ctfe/internal/memory"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

type fixture struct {
	in  *types.Interner
	b   types.Builtins
	eng *layout.Engine
	mem *memory.Store
	cx  *interp.InterpCx
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, interp.Config{EnforceNumberNoProvenance: true})
}

func newFixtureWith(t *testing.T, cfg interp.Config) *fixture {
	t.Helper()
	in := types.NewInterner()
	target := layout.X86_64LinuxGNU()
	eng := layout.NewEngine(target, in)
	mem := memory.NewStore(target)
	return &fixture{in: in, b: in.Builtins(), eng: eng, mem: mem, cx: interp.New(eng, mem, cfg)}
}

func (f *fixture) layoutOf(t *testing.T, id types.TypeID) *layout.TypeLayout {
	t.Helper()
	l, err := f.eng.LayoutOf(id)
	if err != nil {
		t.Fatalf("LayoutOf(%s): %v", types.Label(f.in, id), err)
	}
	return l
}

func (f *fixture) alloc(t *testing.T, name string, size, align int) value.AllocID {
	t.Helper()
	id, err := f.mem.Allocate(name, size, align)
	if err != nil {
		t.Fatalf("Allocate(%s): %v", name, err)
	}
	return id
}

func (f *fixture) writeUint(t *testing.T, ptr value.Pointer, v uint64, size int) {
	t.Helper()
	if err := f.mem.WriteUint(ptr, value.U128(v), size); err != nil {
		t.Fatalf("WriteUint(%s): %v", ptr, err)
	}
}

func (f *fixture) place(t *testing.T, ptr value.Pointer, id types.TypeID) interp.OpTy {
	t.Helper()
	return interp.OpFromMPlace(interp.NewMPlace(ptr, f.layoutOf(t, id)))
}

func (f *fixture) imm(t *testing.T, v uint64, id types.TypeID) interp.ImmTy {
	t.Helper()
	l := f.layoutOf(t, id)
	imm, ok := interp.TryImmTyFromUint(value.U128(v), l)
	if !ok {
		t.Fatalf("%d does not fit %s", v, types.Label(f.in, id))
	}
	return imm
}

func scalarBits(t *testing.T, m value.ScalarMaybeUninit) uint64 {
	t.Helper()
	s, ok := m.Scalar()
	if !ok {
		t.Fatalf("expected an initialized scalar, got %s", m)
	}
	n, ok := s.TryToInt()
	if !ok {
		t.Fatalf("expected an integer scalar, got %s", s)
	}
	v, ok := n.Data.Uint64()
	if !ok {
		t.Fatalf("scalar %s exceeds 64 bits", s)
	}
	return v
}

func expectCode(t *testing.T, err error, want interp.ErrorCode) *interp.EvalError {
	t.Helper()
	var e *interp.EvalError
	if !errors.As(err, &e) {
		t.Fatalf("expected %s, got %v", want, err)
	}
	if e.Code != want {
		t.Fatalf("expected %s, got %s", want, e)
	}
	return e
}

func expectBug(t *testing.T, f func()) *interp.Bug {
	t.Helper()
	var err error
	func() {
		defer interp.Catch(&err)
		f()
	}()
	var b *interp.Bug
	if !errors.As(err, &b) {
		t.Fatalf("expected an interpreter bug, got %v", err)
	}
	return b
}

// countingMemory records every read that reaches the backing store.
type countingMemory struct {
	interp.Memory
	reads int
}

func (c *countingMemory) ReadScalar(ptr value.Pointer, size int, readProv bool) (value.ScalarMaybeUninit, error) {
	c.reads++
	return c.Memory.ReadScalar(ptr, size, readProv)
}

func (c *countingMemory) ReadBytes(ptr value.Pointer, size int) ([]byte, error) {
	c.reads++
	return c.Memory.ReadBytes(ptr, size)
}
