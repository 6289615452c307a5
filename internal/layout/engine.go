package layout

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"ctfe/internal/types"
)

type cacheEntry struct {
	Layout *TypeLayout
	Err    error
}

// Engine computes memory layouts for types and memoises them. A single
// Engine is shared by all interpretation contexts; every *TypeLayout it
// returns is immutable.
type Engine struct {
	target Target
	types  *types.Interner

	mu      sync.RWMutex
	byType  map[types.TypeID]*cacheEntry
	scalars map[Scalar]*TypeLayout
	group   singleflight.Group
}

// NewEngine creates a layout engine for the specified target.
func NewEngine(target Target, typesIn *types.Interner) *Engine {
	return &Engine{
		target:  target,
		types:   typesIn,
		byType:  make(map[types.TypeID]*cacheEntry, 256),
		scalars: make(map[Scalar]*TypeLayout, 16),
	}
}

// Target returns the engine's target description.
func (e *Engine) Target() Target {
	return e.target
}

// Types returns the interner the engine resolves types with.
func (e *Engine) Types() *types.Interner {
	return e.types
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[types.TypeID]int, 32)}
}

// LayoutOf computes and caches the layout of a type. Concurrent first
// queries for the same type share one computation.
func (e *Engine) LayoutOf(t types.TypeID) (*TypeLayout, error) {
	if entry, ok := e.cached(t); ok {
		return entry.Layout, entry.Err
	}
	v, _, _ := e.group.Do(strconv.FormatUint(uint64(t), 10), func() (any, error) {
		if entry, ok := e.cached(t); ok {
			return entry, nil
		}
		l, err := e.layoutOf(t, newLayoutState())
		return &cacheEntry{Layout: l, Err: err}, nil
	})
	entry, ok := v.(*cacheEntry)
	if !ok {
		panic("layout: unexpected singleflight result")
	}
	return entry.Layout, entry.Err
}

// MustLayoutOf panics when the layout cannot be computed.
func (e *Engine) MustLayoutOf(t types.TypeID) *TypeLayout {
	l, err := e.LayoutOf(t)
	if err != nil {
		panic(err)
	}
	return l
}

func (e *Engine) cached(t types.TypeID) (*cacheEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.byType[t]
	return entry, ok
}

// store keeps the first entry recorded for a type so that every caller
// observes the same *TypeLayout.
func (e *Engine) store(t types.TypeID, entry *cacheEntry) *cacheEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.byType[t]; ok {
		return prev
	}
	e.byType[t] = entry
	return entry
}

func (e *Engine) layoutOf(t types.TypeID, state *layoutState) (*TypeLayout, error) {
	if entry, ok := e.cached(t); ok {
		return entry.Layout, entry.Err
	}
	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		return nil, &LayoutError{Kind: LayoutErrRecursiveUnsized, Type: t, Cycle: cycle}
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	l, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	// errors found inside a cycle are reported to the outermost caller only
	var lerr *LayoutError
	if errors.As(err, &lerr) && lerr.Kind == LayoutErrRecursiveUnsized && len(state.stack) > 0 {
		return nil, err
	}
	entry := e.store(t, &cacheEntry{Layout: l, Err: err})
	return entry.Layout, entry.Err
}

// ScalarLayout returns the layout of a lone scalar, as used for tag fields.
// Its type is the integer type of the primitive, or *mut () for pointers.
func (e *Engine) ScalarLayout(s Scalar) *TypeLayout {
	e.mu.RLock()
	l, ok := e.scalars[s]
	e.mu.RUnlock()
	if ok {
		return l
	}
	var ty types.TypeID
	b := e.types.Builtins()
	switch s.Value.Kind {
	case PrimInt:
		ty = e.types.IntType(s.Size(), s.Value.Signed)
	case PrimF32:
		ty = b.F32
	case PrimF64:
		ty = b.F64
	case PrimPointer:
		ty = e.types.Intern(types.MakePointer(b.Unit, true))
	}
	l = &TypeLayout{
		Type:         ty,
		Size:         s.Size(),
		Align:        s.Align(e.target),
		Abi:          ScalarAbi(s),
		Fields:       FieldsShape{Kind: FieldsPrimitive},
		LargestNiche: nicheOf(s, 0),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.scalars[s]; ok {
		return prev
	}
	e.scalars[s] = l
	return l
}

// PrimitiveIntType returns the integer type with the size and signedness of
// p. Pointers map to usize.
func (e *Engine) PrimitiveIntType(p Primitive) types.TypeID {
	switch p.Kind {
	case PrimInt:
		return e.types.IntType(p.Size, p.Signed)
	case PrimPointer:
		return e.types.Builtins().Usize
	default:
		panic(fmt.Sprintf("layout: %s has no integer type", p))
	}
}

// ForVariant returns the layout of variant idx of an enum layout.
func (e *Engine) ForVariant(l *TypeLayout, idx VariantIdx) (*TypeLayout, error) {
	switch l.Variants.Kind {
	case VariantsSingle:
		if l.Variants.Index == idx {
			return l, nil
		}
	case VariantsMultiple:
		if int(idx) < len(l.Variants.Layouts) {
			return l.Variants.Layouts[idx], nil
		}
	}
	return nil, fmt.Errorf("layout: %s has no variant %d", types.Label(e.types, l.Type), idx)
}

// FieldLayout returns the layout of field i of l. For enums with a tag the
// only field is the tag.
func (e *Engine) FieldLayout(l *TypeLayout, i int) (*TypeLayout, error) {
	if l.Variants.Kind == VariantsMultiple {
		if i != l.Variants.TagField {
			return nil, fmt.Errorf("layout: enum %s has no field %d", types.Label(e.types, l.Type), i)
		}
		return e.ScalarLayout(l.Variants.Tag), nil
	}
	fieldTy, err := e.fieldType(l, i)
	if err != nil {
		return nil, err
	}
	return e.LayoutOf(fieldTy)
}

func (e *Engine) fieldType(l *TypeLayout, i int) (types.TypeID, error) {
	tt, ok := e.types.Lookup(l.Type)
	if !ok {
		return types.NoTypeID, &LayoutError{Kind: LayoutErrUnknownType, Type: l.Type}
	}
	b := e.types.Builtins()
	noField := fmt.Errorf("layout: %s has no field %d", types.Label(e.types, l.Type), i)
	switch tt.Kind {
	case types.KindStruct:
		info, _ := e.types.StructInfo(l.Type)
		if i < 0 || i >= len(info.Fields) {
			return types.NoTypeID, noField
		}
		return info.Fields[i].Type, nil
	case types.KindTuple:
		info, _ := e.types.TupleInfo(l.Type)
		if i < 0 || i >= len(info.Elems) {
			return types.NoTypeID, noField
		}
		return info.Elems[i], nil
	case types.KindEnum:
		info, _ := e.types.EnumInfo(l.Type)
		v := int(l.Variants.Index)
		if v >= len(info.Variants) || i < 0 || i >= len(info.Variants[v].Fields) {
			return types.NoTypeID, noField
		}
		return info.Variants[v].Fields[i].Type, nil
	case types.KindArray, types.KindSlice:
		if i < 0 || (tt.Kind == types.KindArray && uint64(i) >= tt.Count) {
			return types.NoTypeID, noField
		}
		return tt.Elem, nil
	case types.KindStr:
		return b.U8, nil
	case types.KindMaybeUninit:
		if i != 0 {
			return types.NoTypeID, noField
		}
		return tt.Elem, nil
	case types.KindPointer, types.KindReference:
		meta := e.pointeeMeta(tt.Elem)
		if meta == metaNone || i < 0 || i > 1 {
			return types.NoTypeID, noField
		}
		if i == 0 {
			if tt.Kind == types.KindPointer {
				return e.types.Intern(types.MakePointer(b.Unit, true)), nil
			}
			return e.types.Intern(types.MakeReference(b.Unit, true)), nil
		}
		if meta == metaVtable {
			vtable := e.types.Intern(types.MakeArray(b.Usize, 3))
			return e.types.Intern(types.MakeReference(vtable, false)), nil
		}
		return b.Usize, nil
	default:
		return types.NoTypeID, noField
	}
}
