package types

import (
	"fmt"
	"strings"

	"ctfe/internal/value"
)

// Field is one named member of a struct or enum variant.
type Field struct {
	Name string
	Type TypeID
}

// LayoutAttrs carries representation attributes that affect layout.
type LayoutAttrs struct {
	Packed        bool
	AlignOverride *int
}

// TupleInfo stores the element types of a tuple.
type TupleInfo struct {
	Elems []TypeID
}

// StructInfo stores metadata for a nominal struct type.
type StructInfo struct {
	Name    string
	Fields  []Field
	Attrs   LayoutAttrs
	defined bool
}

// Variant describes one enum variant. HasDiscr marks an explicitly assigned
// discriminant; Discr is its value as a 128-bit two's complement pattern.
type Variant struct {
	Name     string
	Fields   []Field
	Discr    value.Uint128
	HasDiscr bool
}

// EnumInfo stores metadata for an enum type. Repr is the integer type named
// by a repr attribute, or NoTypeID.
type EnumInfo struct {
	Name     string
	Repr     TypeID
	Variants []Variant
	defined  bool
}

// Tuple interns the tuple of the given element types. The empty tuple is
// the unit type.
func (in *Interner) Tuple(elems ...TypeID) TypeID {
	if len(elems) == 0 {
		return in.builtins.Unit
	}
	key := tupleKey(elems)
	in.mu.RLock()
	id, ok := in.tuples[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.tuples[key]; ok {
		return id
	}
	in.tupleInfos = append(in.tupleInfos, &TupleInfo{Elems: cloneTypeIDs(elems)})
	id = in.internLocked(Type{Kind: KindTuple, Payload: mustSlot(len(in.tupleInfos) - 1)})
	in.tuples[key] = id
	return id
}

// TupleInfo returns metadata for the provided tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.tupleInfos[tt.Payload], true
}

// DeclareStruct allocates a nominal struct slot. Fields are supplied later
// through DefineStruct so that types may refer to themselves via pointers.
func (in *Interner) DeclareStruct(name string) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.structInfos = append(in.structInfos, &StructInfo{Name: name})
	return in.internLocked(Type{Kind: KindStruct, Payload: mustSlot(len(in.structInfos) - 1)})
}

// DefineStruct sets the fields of a declared struct. A struct is defined once.
func (in *Interner) DefineStruct(id TypeID, fields []Field, attrs LayoutAttrs) error {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return fmt.Errorf("types: %d is not a struct", id)
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.structInfos[tt.Payload]
	if info.defined {
		return fmt.Errorf("types: struct %s already defined", info.Name)
	}
	info.Fields = cloneFields(fields)
	info.Attrs = attrs
	info.defined = true
	return nil
}

// RegisterStruct declares and defines a struct in one step.
func (in *Interner) RegisterStruct(name string, fields []Field, attrs LayoutAttrs) TypeID {
	id := in.DeclareStruct(name)
	if err := in.DefineStruct(id, fields, attrs); err != nil {
		panic(err)
	}
	return id
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.structInfos[tt.Payload], true
}

// DeclareEnum allocates a nominal enum slot.
func (in *Interner) DeclareEnum(name string) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.enumInfos = append(in.enumInfos, &EnumInfo{Name: name})
	return in.internLocked(Type{Kind: KindEnum, Payload: mustSlot(len(in.enumInfos) - 1)})
}

// DefineEnum sets the variants and repr of a declared enum.
func (in *Interner) DefineEnum(id TypeID, repr TypeID, variants []Variant) error {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum {
		return fmt.Errorf("types: %d is not an enum", id)
	}
	if repr != NoTypeID {
		rt, ok := in.Lookup(repr)
		if !ok || !rt.IsIntegral() {
			return fmt.Errorf("types: enum repr must be an integer type")
		}
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.enumInfos[tt.Payload]
	if info.defined {
		return fmt.Errorf("types: enum %s already defined", info.Name)
	}
	info.Repr = repr
	info.Variants = cloneVariants(variants)
	info.defined = true
	return nil
}

// RegisterEnum declares and defines an enum in one step.
func (in *Interner) RegisterEnum(name string, repr TypeID, variants []Variant) TypeID {
	id := in.DeclareEnum(name)
	if err := in.DefineEnum(id, repr, variants); err != nil {
		panic(err)
	}
	return id
}

// EnumInfo returns metadata for the provided enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum {
		return nil, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.enumInfos[tt.Payload], true
}

// DiscriminantType returns the logical type of a type's discriminant: the
// enum's repr, isize for enums without one, and u8 for everything else.
func (in *Interner) DiscriminantType(id TypeID) TypeID {
	info, ok := in.EnumInfo(id)
	if !ok {
		return in.builtins.U8
	}
	if info.Repr != NoTypeID {
		return info.Repr
	}
	return in.builtins.Isize
}

// Discriminants returns the discriminant of every variant in declaration
// order. Variants without an explicit value take the previous one plus one,
// starting from zero.
func (in *Interner) Discriminants(id TypeID) []value.Uint128 {
	info, ok := in.EnumInfo(id)
	if !ok {
		return nil
	}
	out := make([]value.Uint128, len(info.Variants))
	next := value.U128(0)
	for i, v := range info.Variants {
		if v.HasDiscr {
			next = v.Discr
		}
		out[i] = next
		next = next.Add(value.U128(1))
	}
	return out
}

// DiscriminantForVariant returns the discriminant of variant idx. ok is false
// for non-enum types and out-of-range indices.
func (in *Interner) DiscriminantForVariant(id TypeID, idx int) (value.Uint128, bool) {
	discrs := in.Discriminants(id)
	if idx < 0 || idx >= len(discrs) {
		return value.Uint128{}, false
	}
	return discrs[idx], true
}

func tupleKey(elems []TypeID) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", e)
	}
	return sb.String()
}

func cloneTypeIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}

func cloneFields(fields []Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

func cloneVariants(variants []Variant) []Variant {
	if len(variants) == 0 {
		return nil
	}
	out := make([]Variant, len(variants))
	for i, v := range variants {
		v.Fields = cloneFields(v.Fields)
		out[i] = v
	}
	return out
}
