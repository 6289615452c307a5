// Package memory is the allocation store of the interpreter. Allocations
// are created and written while a scenario is set up; evaluation only reads
// them, so a populated Store may be shared by concurrent readers.
package memory

import (
	"fmt"
	"sync"

	"fortio.org/safecast"

	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// Store owns every allocation of one memory image.
type Store struct {
	mu     sync.RWMutex
	target layout.Target
	next   value.AllocID
	allocs map[value.AllocID]*Allocation
	names  map[string]value.AllocID
}

// NewStore creates an empty store for the target.
func NewStore(target layout.Target) *Store {
	return &Store{
		target: target,
		next:   1,
		allocs: make(map[value.AllocID]*Allocation, 16),
		names:  make(map[string]value.AllocID, 16),
	}
}

// Target returns the target whose pointer size and byte order the store
// uses.
func (s *Store) Target() layout.Target {
	return s.target
}

// Allocate creates a zero-filled, uninitialized allocation.
func (s *Store) Allocate(name string, size, align int) (value.AllocID, error) {
	if size < 0 {
		return value.NoAlloc, fmt.Errorf("allocation %q: negative size %d", name, size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		if _, dup := s.names[name]; dup {
			return value.NoAlloc, fmt.Errorf("allocation %q already exists", name)
		}
	}
	id := s.next
	s.next++
	s.allocs[id] = newAllocation(name, size, align)
	if name != "" {
		s.names[name] = id
	}
	return id, nil
}

// Get returns the allocation with the given ID.
func (s *Store) Get(id value.AllocID) (*Allocation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocs[id]
	return a, ok
}

// Lookup resolves an allocation by name.
func (s *Store) Lookup(name string) (value.AllocID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	return id, ok
}

// Len returns the number of allocations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.allocs)
}

// Freeze marks an allocation read-only.
func (s *Store) Freeze(id value.AllocID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocs[id]
	if !ok {
		return &AccessError{Kind: ErrUnknownAlloc, Ptr: value.PtrTo(id, 0)}
	}
	a.Mutable = false
	return nil
}

// bounds resolves ptr to an allocation and byte range. Zero-sized accesses
// need no allocation.
func (s *Store) bounds(ptr value.Pointer, size int) (*Allocation, int, error) {
	if !ptr.HasProvenance() {
		if size == 0 {
			return nil, 0, nil
		}
		return nil, 0, &AccessError{Kind: ErrDanglingInt, Ptr: ptr, Size: size}
	}
	a, ok := s.allocs[ptr.Prov]
	if !ok {
		return nil, 0, &AccessError{Kind: ErrUnknownAlloc, Ptr: ptr, Size: size}
	}
	start, err := safecast.Conv[int](ptr.Offset)
	if err != nil || start+size > a.Size() || start+size < start {
		return nil, 0, &AccessError{Kind: ErrOutOfBounds, Ptr: ptr, Size: size, AllocLen: a.Size()}
	}
	return a, start, nil
}

// ReadScalar reads size bytes at ptr. Ranges touching uninitialized bytes
// yield value.Uninit. With readProv a pointer-sized read starting exactly at
// a relocation yields a pointer with provenance; any other overlap with a
// stored pointer is an error.
func (s *Store) ReadScalar(ptr value.Pointer, size int, readProv bool) (value.ScalarMaybeUninit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, start, err := s.bounds(ptr, size)
	if err != nil {
		return value.Uninit, err
	}
	if a == nil || !a.isInit(start, size) {
		return value.Uninit, nil
	}
	ptrSize := s.target.PtrSize
	relocs := a.relocsIn(start, size, ptrSize)
	if len(relocs) > 0 {
		if !readProv {
			return value.Uninit, &AccessError{Kind: ErrReadPointerAsBytes, Ptr: ptr, Size: size}
		}
		if len(relocs) != 1 || int(relocs[0]) != start || size != ptrSize { //nolint:gosec // G115: offsets are bounded by the allocation size
			return value.Uninit, &AccessError{Kind: ErrReadPartialPointer, Ptr: ptr, Size: size}
		}
	}
	bits := readUint(s.target.Endian, a.Bytes[start:start+size])
	if len(relocs) == 1 {
		return value.Init(value.FromPointer(value.PtrTo(a.Relocs[relocs[0]], bits.Lo), ptrSize)), nil
	}
	return value.Init(value.FromUint(bits, size)), nil
}

// ReadBytes returns a copy of size initialized, pointer-free bytes at ptr.
func (s *Store) ReadBytes(ptr value.Pointer, size int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, start, err := s.bounds(ptr, size)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return []byte{}, nil
	}
	if !a.isInit(start, size) {
		return nil, &AccessError{Kind: ErrUninitBytes, Ptr: ptr, Size: size}
	}
	if len(a.relocsIn(start, size, s.target.PtrSize)) > 0 {
		return nil, &AccessError{Kind: ErrReadPointerAsBytes, Ptr: ptr, Size: size}
	}
	out := make([]byte, size)
	copy(out, a.Bytes[start:start+size])
	return out, nil
}

// PointerMayBeNull reports whether ptr could compare equal to null. A
// pointer into a live allocation is non-null unless its offset lies beyond
// the end of the allocation, where it may wrap around.
func (s *Store) PointerMayBeNull(ptr value.Pointer) bool {
	if !ptr.HasProvenance() {
		return ptr.Offset == 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocs[ptr.Prov]
	if !ok {
		return true
	}
	size, err := safecast.Conv[uint64](a.Size())
	if err != nil {
		return true
	}
	return ptr.Offset > size
}

// CheckAlign verifies that ptr satisfies align.
func (s *Store) CheckAlign(ptr value.Pointer, align int) error {
	if align <= 1 {
		return nil
	}
	a64, err := safecast.Conv[uint64](align)
	if err != nil {
		return fmt.Errorf("alignment %d: %w", align, err)
	}
	misaligned := &AccessError{Kind: ErrMisaligned, Ptr: ptr, Align: align}
	if !ptr.HasProvenance() {
		if ptr.Offset%a64 != 0 {
			return misaligned
		}
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.allocs[ptr.Prov]
	if !ok {
		return &AccessError{Kind: ErrUnknownAlloc, Ptr: ptr}
	}
	if a.Align < align || ptr.Offset%a64 != 0 {
		return misaligned
	}
	return nil
}

func (s *Store) writable(ptr value.Pointer, size int) (*Allocation, int, error) {
	a, start, err := s.bounds(ptr, size)
	if err != nil {
		return nil, 0, err
	}
	if a != nil && !a.Mutable {
		return nil, 0, &AccessError{Kind: ErrReadOnly, Ptr: ptr, Size: size}
	}
	return a, start, nil
}

// WriteUint stores v as a size-byte integer at ptr.
func (s *Store) WriteUint(ptr value.Pointer, v value.Uint128, size int) error {
	if size <= 0 || size > value.MaxScalarSize {
		return fmt.Errorf("write of %d bytes: unsupported scalar size", size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, start, err := s.writable(ptr, size)
	if err != nil {
		return err
	}
	a.clearRelocs(start, size, s.target.PtrSize)
	writeUint(s.target.Endian, a.Bytes[start:start+size], v)
	for i := start; i < start+size; i++ {
		a.Init[i] = true
	}
	return nil
}

// WriteInt stores a signed value; it is truncated to size bytes.
func (s *Store) WriteInt(ptr value.Pointer, v value.Uint128, size int) error {
	return s.WriteUint(ptr, v.Truncate(uint(size)*8), size) //nolint:gosec // G115: size checked by WriteUint
}

// WritePointer stores target at ptr, recording a relocation when target
// has provenance.
func (s *Store) WritePointer(ptr, target value.Pointer) error {
	size := s.target.PtrSize
	if err := s.WriteUint(ptr, value.U128(target.Offset), size); err != nil {
		return err
	}
	if !target.HasProvenance() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.allocs[ptr.Prov]
	a.Relocs[ptr.Offset] = target.Prov
	return nil
}

// WriteBytes copies b to ptr and marks it initialized.
func (s *Store) WriteBytes(ptr value.Pointer, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, start, err := s.writable(ptr, len(b))
	if err != nil || a == nil {
		return err
	}
	a.clearRelocs(start, len(b), s.target.PtrSize)
	copy(a.Bytes[start:], b)
	for i := start; i < start+len(b); i++ {
		a.Init[i] = true
	}
	return nil
}

// WriteUninit marks size bytes at ptr uninitialized.
func (s *Store) WriteUninit(ptr value.Pointer, size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, start, err := s.writable(ptr, size)
	if err != nil || a == nil {
		return err
	}
	a.clearRelocs(start, size, s.target.PtrSize)
	for i := start; i < start+size; i++ {
		a.Init[i] = false
		a.Bytes[i] = 0
	}
	return nil
}
