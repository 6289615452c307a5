package memory_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"ctfe/internal/layout"
	"ctfe/internal/memory"
	"ctfe/internal/value"
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	return memory.NewStore(layout.X86_64LinuxGNU())
}

func allocate(t *testing.T, s *memory.Store, name string, size, align int) value.AllocID {
	t.Helper()
	id, err := s.Allocate(name, size, align)
	if err != nil {
		t.Fatalf("Allocate(%s): %v", name, err)
	}
	return id
}

func accessKind(t *testing.T, err error) memory.AccessErrorKind {
	t.Helper()
	var ae *memory.AccessError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AccessError, got %v", err)
	}
	return ae.Kind
}

func TestReadScalarLittleEndian(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "a", 8, 8)
	if err := s.WriteUint(value.PtrTo(id, 0), value.U128(0x11223344), 4); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadScalar(value.PtrTo(id, 0), 4, false)
	if err != nil {
		t.Fatal(err)
	}
	sc, ok := got.Scalar()
	if !ok || sc.AssertBits(4) != value.U128(0x11223344) {
		t.Fatalf("got %v", got)
	}
	b, err := s.ReadBytes(value.PtrTo(id, 0), 2)
	if err != nil || !bytes.Equal(b, []byte{0x44, 0x33}) {
		t.Fatalf("ReadBytes = %x, %v", b, err)
	}
}

func TestReadScalarBigEndian(t *testing.T) {
	s := memory.NewStore(layout.PowerPCLinuxGNU())
	id := allocate(t, s, "a", 4, 4)
	if err := s.WriteUint(value.PtrTo(id, 0), value.U128(0x0102), 2); err != nil {
		t.Fatal(err)
	}
	b, err := s.ReadBytes(value.PtrTo(id, 0), 2)
	if err != nil || !bytes.Equal(b, []byte{0x01, 0x02}) {
		t.Fatalf("ReadBytes = %x, %v", b, err)
	}
}

func TestPartiallyInitializedReadIsUninit(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "a", 4, 4)
	if err := s.WriteUint(value.PtrTo(id, 0), value.U128(7), 1); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadScalar(value.PtrTo(id, 0), 4, false)
	if err != nil || got.IsInit() {
		t.Fatalf("expected uninit, got %v err=%v", got, err)
	}
	if _, err := s.ReadBytes(value.PtrTo(id, 0), 4); accessKind(t, err) != memory.ErrUninitBytes {
		t.Fatalf("expected uninit bytes error")
	}
}

func TestPointerRelocations(t *testing.T) {
	s := newStore(t)
	target := allocate(t, s, "target", 16, 8)
	holder := allocate(t, s, "holder", 16, 8)
	if err := s.WritePointer(value.PtrTo(holder, 0), value.PtrTo(target, 4)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadScalar(value.PtrTo(holder, 0), 8, true)
	if err != nil {
		t.Fatal(err)
	}
	sc, _ := got.Scalar()
	if !sc.IsPtr() || sc.ToPointer() != value.PtrTo(target, 4) {
		t.Fatalf("expected pointer to target+4, got %v", got)
	}

	if _, err := s.ReadScalar(value.PtrTo(holder, 0), 8, false); accessKind(t, err) != memory.ErrReadPointerAsBytes {
		t.Fatalf("integer read of a pointer must fail")
	}
	if err := s.WriteUint(value.PtrTo(holder, 8), value.U128(0), 8); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ReadScalar(value.PtrTo(holder, 4), 8, true); accessKind(t, err) != memory.ErrReadPartialPointer {
		t.Fatalf("misaligned pointer read must fail")
	}

	if err := s.WriteUint(value.PtrTo(holder, 0), value.U128(1), 8); err != nil {
		t.Fatal(err)
	}
	got, err = s.ReadScalar(value.PtrTo(holder, 0), 8, false)
	if err != nil || !got.IsInit() {
		t.Fatalf("overwriting a pointer should drop its relocation: %v %v", got, err)
	}
}

func TestBoundsAndDanglingPointers(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "a", 4, 4)
	if _, err := s.ReadScalar(value.PtrTo(id, 2), 4, false); accessKind(t, err) != memory.ErrOutOfBounds {
		t.Fatalf("expected out of bounds")
	}
	if _, err := s.ReadScalar(value.Address(64), 4, false); accessKind(t, err) != memory.ErrDanglingInt {
		t.Fatalf("expected dangling int pointer")
	}
	if _, err := s.ReadScalar(value.PtrTo(99, 0), 1, false); accessKind(t, err) != memory.ErrUnknownAlloc {
		t.Fatalf("expected unknown allocation")
	}
	got, err := s.ReadScalar(value.Address(64), 0, false)
	if err != nil || got.IsInit() {
		t.Fatalf("zero-sized read should succeed as uninit: %v %v", got, err)
	}
}

func TestPointerMayBeNull(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "a", 4, 4)
	tests := []struct {
		ptr  value.Pointer
		want bool
	}{
		{value.PtrTo(id, 0), false},
		{value.PtrTo(id, 4), false},
		{value.PtrTo(id, 5), true},
		{value.PtrTo(42, 0), true},
		{value.Address(0), true},
		{value.Address(8), false},
	}
	for _, tt := range tests {
		if got := s.PointerMayBeNull(tt.ptr); got != tt.want {
			t.Errorf("PointerMayBeNull(%s) = %v, want %v", tt.ptr, got, tt.want)
		}
	}
}

func TestCheckAlign(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "a", 16, 4)
	if err := s.CheckAlign(value.PtrTo(id, 4), 4); err != nil {
		t.Fatalf("aligned pointer rejected: %v", err)
	}
	if err := s.CheckAlign(value.PtrTo(id, 2), 4); accessKind(t, err) != memory.ErrMisaligned {
		t.Fatalf("expected misaligned")
	}
	if err := s.CheckAlign(value.PtrTo(id, 0), 8); accessKind(t, err) != memory.ErrMisaligned {
		t.Fatalf("allocation alignment below the requirement must fail")
	}
}

func TestFrozenAllocationRejectsWrites(t *testing.T) {
	s := newStore(t)
	id := allocate(t, s, "ro", 4, 1)
	if err := s.Freeze(id); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteBytes(value.PtrTo(id, 0), []byte{1}); accessKind(t, err) != memory.ErrReadOnly {
		t.Fatalf("expected read-only error")
	}
}

func TestSnapshotRoundTripKeepsPointers(t *testing.T) {
	s := newStore(t)
	target := allocate(t, s, "target", 4, 4)
	holder := allocate(t, s, "holder", 8, 8)
	if err := s.WriteBytes(value.PtrTo(target, 0), []byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if err := s.WritePointer(value.PtrTo(holder, 0), value.PtrTo(target, 1)); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "mem.msgpack")
	if err := s.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	loaded, err := memory.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	id, ok := loaded.Lookup("holder")
	if !ok || id != holder {
		t.Fatalf("holder not restored: %v %v", id, ok)
	}
	got, err := loaded.ReadScalar(value.PtrTo(id, 0), 8, true)
	if err != nil {
		t.Fatal(err)
	}
	sc, _ := got.Scalar()
	if sc.ToPointer() != value.PtrTo(target, 1) {
		t.Fatalf("pointer not restored: %v", got)
	}
	next, err := loaded.Allocate("fresh", 1, 1)
	if err != nil || next <= holder {
		t.Fatalf("fresh allocation id %v must not collide: %v", next, err)
	}
}
