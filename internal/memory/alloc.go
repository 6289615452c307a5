package memory

import (
	"encoding/binary"
	"sort"

	"ctfe/internal/layout"
	"ctfe/internal/value"
)

// Allocation is one block of abstract memory: raw bytes, a per-byte
// initialization mask and the pointer relocations stored in it. A
// relocation at offset o means the pointer-sized integer at o is an offset
// into the allocation Relocs[o].
type Allocation struct {
	Name    string                   `msgpack:"name"`
	Bytes   []byte                   `msgpack:"bytes"`
	Init    []bool                   `msgpack:"init"`
	Relocs  map[uint64]value.AllocID `msgpack:"relocs"`
	Align   int                      `msgpack:"align"`
	Mutable bool                     `msgpack:"mutable"`
}

func newAllocation(name string, size, align int) *Allocation {
	if align <= 0 {
		align = 1
	}
	return &Allocation{
		Name:    name,
		Bytes:   make([]byte, size),
		Init:    make([]bool, size),
		Relocs:  make(map[uint64]value.AllocID),
		Align:   align,
		Mutable: true,
	}
}

// Size returns the allocation length in bytes.
func (a *Allocation) Size() int {
	return len(a.Bytes)
}

func (a *Allocation) isInit(start, size int) bool {
	for i := start; i < start+size; i++ {
		if !a.Init[i] {
			return false
		}
	}
	return true
}

// relocsIn returns the sorted relocation offsets of pointers overlapping
// [start, start+size).
func (a *Allocation) relocsIn(start, size, ptrSize int) []uint64 {
	var out []uint64
	lo := start - ptrSize + 1
	for off := range a.Relocs {
		o := int(off) //nolint:gosec // G115: offsets are bounded by the allocation size
		if o >= lo && o < start+size {
			out = append(out, off)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Allocation) clearRelocs(start, size, ptrSize int) {
	for _, off := range a.relocsIn(start, size, ptrSize) {
		delete(a.Relocs, off)
	}
}

func readUint(endian layout.Endian, b []byte) value.Uint128 {
	var buf [16]byte
	n := len(b)
	if endian == layout.BigEndian {
		copy(buf[16-n:], b)
		return value.Uint128{Hi: binary.BigEndian.Uint64(buf[:8]), Lo: binary.BigEndian.Uint64(buf[8:])}
	}
	copy(buf[:n], b)
	return value.Uint128{Lo: binary.LittleEndian.Uint64(buf[:8]), Hi: binary.LittleEndian.Uint64(buf[8:])}
}

func writeUint(endian layout.Endian, b []byte, v value.Uint128) {
	var buf [16]byte
	n := len(b)
	if endian == layout.BigEndian {
		binary.BigEndian.PutUint64(buf[:8], v.Hi)
		binary.BigEndian.PutUint64(buf[8:], v.Lo)
		copy(b, buf[16-n:])
		return
	}
	binary.LittleEndian.PutUint64(buf[:8], v.Lo)
	binary.LittleEndian.PutUint64(buf[8:], v.Hi)
	copy(b, buf[:n])
}
