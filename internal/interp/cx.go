// Package interp is the operand and immediate value core of the
// compile-time evaluator. It decides from a layout alone whether a value
// held in memory can be lifted into an immediate, reads such values, and
// resolves which variant of an enum is active from its tag encoding.
//
// An InterpCx is used by one goroutine at a time. Independent contexts may
// run concurrently over a shared layout.Engine and read-only memory.
package interp

import (
	"fmt"

	"ctfe/internal/layout"
	"ctfe/internal/trace"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// Memory is the read side of an allocation store.
type Memory interface {
	// ReadScalar reads size bytes at ptr. readProv allows the bytes to carry
	// pointer provenance.
	ReadScalar(ptr value.Pointer, size int, readProv bool) (value.ScalarMaybeUninit, error)
	// ReadBytes reads size initialized bytes without provenance.
	ReadBytes(ptr value.Pointer, size int) ([]byte, error)
	// PointerMayBeNull reports whether ptr could equal the null pointer.
	PointerMayBeNull(ptr value.Pointer) bool
	// CheckAlign verifies that ptr is aligned to align bytes.
	CheckAlign(ptr value.Pointer, align int) error
}

// Config selects machine behavior.
type Config struct {
	// EnforceNumberNoProvenance makes integer reads reject provenance. When
	// false, pointer-sized integers may carry a pointer.
	EnforceNumberNoProvenance bool
	// CheckAlignment enables alignment checks on memory reads.
	CheckAlignment bool
	Tracer         trace.Tracer
}

// InterpCx is an interpretation context.
type InterpCx struct {
	layouts *layout.Engine
	types   *types.Interner
	mem     Memory
	cfg     Config
	tracer  trace.Tracer
	ptrSize int
}

// New creates a context reading from mem. The layout engine may be shared
// with other contexts.
func New(layouts *layout.Engine, mem Memory, cfg Config) *InterpCx {
	tr := cfg.Tracer
	if tr == nil {
		tr = trace.Nop
	}
	return &InterpCx{
		layouts: layouts,
		types:   layouts.Types(),
		mem:     mem,
		cfg:     cfg,
		tracer:  tr,
		ptrSize: layouts.Target().PtrSize,
	}
}

// Layouts returns the layout engine.
func (cx *InterpCx) Layouts() *layout.Engine {
	return cx.layouts
}

// Types returns the type interner.
func (cx *InterpCx) Types() *types.Interner {
	return cx.types
}

// PointerSize returns the target pointer width in bytes.
func (cx *InterpCx) PointerSize() int {
	return cx.ptrSize
}

// LayoutOf returns the layout of t.
func (cx *InterpCx) LayoutOf(t types.TypeID) (*layout.TypeLayout, error) {
	l, err := cx.layouts.LayoutOf(t)
	if err != nil {
		return nil, fmt.Errorf("layout of %s: %w", types.Label(cx.types, t), err)
	}
	return l, nil
}

// mustLayoutOf is LayoutOf for types whose layout the caller knows exists,
// such as the integer type of a tag.
func (cx *InterpCx) mustLayoutOf(t types.TypeID) *layout.TypeLayout {
	l, err := cx.layouts.LayoutOf(t)
	if err != nil {
		bug("layout of %s: %v", types.Label(cx.types, t), err)
	}
	return l
}

func (cx *InterpCx) label(l *layout.TypeLayout) string {
	return types.Label(cx.types, l.Type)
}
