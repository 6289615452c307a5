package value

import "fmt"

// AllocID names an allocation. The zero ID means "no provenance".
type AllocID uint64

// NoAlloc marks a pointer without provenance.
const NoAlloc AllocID = 0

func (id AllocID) String() string {
	return fmt.Sprintf("alloc%d", uint64(id))
}

// Pointer is an offset that may be relative to an allocation. Pointers with
// provenance are only comparable to pointers into the same allocation;
// pointers without provenance are plain addresses.
type Pointer struct {
	Prov   AllocID
	Offset uint64
}

// PtrTo builds a pointer into an allocation.
func PtrTo(id AllocID, offset uint64) Pointer {
	return Pointer{Prov: id, Offset: offset}
}

// Address builds a pointer without provenance.
func Address(addr uint64) Pointer {
	return Pointer{Offset: addr}
}

// HasProvenance reports whether the pointer is tied to an allocation.
func (p Pointer) HasProvenance() bool {
	return p.Prov != NoAlloc
}

// WrappingOffset moves the pointer by delta bytes, wrapping at 2^(8*ptrSize).
func (p Pointer) WrappingOffset(delta uint64, ptrSize int) Pointer {
	off := U128(p.Offset).Add(U128(delta)).Truncate(uint(ptrSize) * 8)
	p.Offset = off.Lo
	return p
}

func (p Pointer) String() string {
	if !p.HasProvenance() {
		return fmt.Sprintf("0x%x[noalloc]", p.Offset)
	}
	return fmt.Sprintf("%s+0x%x", p.Prov, p.Offset)
}
