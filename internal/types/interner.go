package types

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Never   TypeID
	Bool    TypeID
	Char    TypeID
	Str     TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	I128    TypeID
	Isize   TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	U128    TypeID
	Usize   TypeID
	F32     TypeID
	F64     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// All methods may be called from several goroutines.
type Interner struct {
	mu       sync.RWMutex
	types    []Type
	index    map[typeKey]TypeID
	tuples   map[string]TypeID
	builtins Builtins

	tupleInfos  []*TupleInfo
	structInfos []*StructInfo
	enumInfos   []*EnumInfo
	dynNames    []string
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:  make(map[typeKey]TypeID, 64),
		tuples: make(map[string]TypeID, 16),
	}
	// slot 0 of every side table is the invalid sentinel
	in.tupleInfos = append(in.tupleInfos, nil)
	in.structInfos = append(in.structInfos, nil)
	in.enumInfos = append(in.enumInfos, nil)
	in.dynNames = append(in.dynNames, "")

	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Str = in.Intern(Type{Kind: KindStr})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.I128 = in.Intern(MakeInt(Width128))
	in.builtins.Isize = in.Intern(MakeInt(WidthAny))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.U128 = in.Intern(MakeUint(Width128))
	in.builtins.Usize = in.Intern(MakeUint(WidthAny))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	in.mu.RLock()
	id, ok := in.index[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internLocked(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internLocked(t)
}

func (in *Interner) internLocked(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len returns the number of interned types, including the invalid slot.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

// IntType returns the integer type of the given byte size.
func (in *Interner) IntType(size int, signed bool) TypeID {
	var w Width
	switch size {
	case 1:
		w = Width8
	case 2:
		w = Width16
	case 4:
		w = Width32
	case 8:
		w = Width64
	case 16:
		w = Width128
	default:
		panic(fmt.Sprintf("types: no integer type of %d bytes", size))
	}
	if signed {
		return in.Intern(MakeInt(w))
	}
	return in.Intern(MakeUint(w))
}

// RegisterDyn returns the unsized trait object type for the named trait.
func (in *Interner) RegisterDyn(trait string) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	for slot, name := range in.dynNames {
		if slot != 0 && name == trait {
			return in.index[typeKey(Type{Kind: KindDyn, Payload: mustSlot(slot)})]
		}
	}
	in.dynNames = append(in.dynNames, trait)
	return in.internLocked(Type{Kind: KindDyn, Payload: mustSlot(len(in.dynNames) - 1)})
}

// DynName returns the trait name of a dyn type.
func (in *Interner) DynName(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindDyn {
		return ""
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.dynNames[tt.Payload]
}

func mustSlot(n int) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("side table overflow: %w", err))
	}
	return slot
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint64
	Width   Width
	Mutable bool
	Payload uint32
}
