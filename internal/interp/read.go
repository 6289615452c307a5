package interp

import (
	"fortio.org/safecast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"ctfe/internal/layout"
	"ctfe/internal/trace"
	"ctfe/internal/value"
)

// ReadImmediateRaw tries to lift op into an immediate. Immediate operands
// are returned as they are. For a place, ok is false when its layout is
// never liftable, and the place is returned instead. With force, scalars
// that may be uninitialized are read as well; such reads lose
// initialization detail and must not be written back.
func (cx *InterpCx) ReadImmediateRaw(op OpTy, force bool) (ImmTy, MPlaceTy, bool, error) {
	if imm, ok := op.Immediate(); ok {
		return imm, MPlaceTy{}, true, nil
	}
	m, _ := op.MPlace()
	imm, ok, err := cx.readImmediateFromMPlace(m, force)
	if err != nil || !ok {
		return ImmTy{}, m, false, err
	}
	return imm, MPlaceTy{}, true, nil
}

func (cx *InterpCx) readImmediateFromMPlace(m MPlaceTy, force bool) (ImmTy, bool, error) {
	l := m.Layout
	if l.IsUnsized() {
		return ImmTy{}, false, nil
	}
	if l.IsZST() {
		return ImmTyUninit(l), true, nil
	}

	var read Immediate
	switch l.Abi.Kind {
	case layout.AbiScalar:
		s := l.Abi.A
		if !s.Initialized && !force {
			return ImmTy{}, false, nil
		}
		if err := cx.checkAlign(m); err != nil {
			return ImmTy{}, false, err
		}
		v, err := cx.mem.ReadScalar(m.MPlace.Ptr, s.Size(), cx.readProvenance(s.Value))
		if err != nil {
			return ImmTy{}, false, cx.memErr(err)
		}
		read = ImmScalar(v)
	case layout.AbiScalarPair:
		a, b := l.Abi.A, l.Abi.B
		if !(a.Initialized && b.Initialized) && !force {
			return ImmTy{}, false, nil
		}
		bOffset := layout.PairSecondOffset(a, b, cx.layouts.Target())
		if bOffset <= 0 {
			cx.bug(l, "scalar pair second offset %d", bOffset)
		}
		if err := cx.checkAlign(m); err != nil {
			return ImmTy{}, false, err
		}
		av, err := cx.mem.ReadScalar(m.MPlace.Ptr, a.Size(), cx.readProvenance(a.Value))
		if err != nil {
			return ImmTy{}, false, cx.memErr(err)
		}
		bPtr := m.MPlace.offset(bOffset, MetaNone, cx.ptrSize).Ptr
		bv, err := cx.mem.ReadScalar(bPtr, b.Size(), cx.readProvenance(b.Value))
		if err != nil {
			return ImmTy{}, false, cx.memErr(err)
		}
		read = ImmScalarPair(av, bv)
	case layout.AbiAggregate:
		return ImmTy{}, false, nil
	default:
		cx.bug(l, "unknown abi kind %d", l.Abi.Kind)
	}
	if cx.tracer.Enabled() {
		trace.Point(cx.tracer, trace.ScopeNode, "lift", cx.label(l)+" = "+read.String(), 0)
	}
	return ImmTyFromImmediate(read, l), true, nil
}

// readProvenance reports whether a read of p may carry a pointer.
func (cx *InterpCx) readProvenance(p layout.Primitive) bool {
	if p.IsPtr() {
		return true
	}
	return !cx.cfg.EnforceNumberNoProvenance && p.Size == cx.ptrSize
}

func (cx *InterpCx) checkAlign(m MPlaceTy) error {
	if !cx.cfg.CheckAlignment {
		return nil
	}
	if err := cx.mem.CheckAlign(m.MPlace.Ptr, m.Align); err != nil {
		return cx.memErr(err)
	}
	return nil
}

// ReadImmediate reads a value whose layout is always liftable. Being asked
// for anything else is an interpreter bug.
func (cx *InterpCx) ReadImmediate(op OpTy) (ImmTy, error) {
	switch op.Layout.Abi.Kind {
	case layout.AbiScalar, layout.AbiScalarPair:
	default:
		if !op.Layout.IsZST() {
			cx.bug(op.Layout, "primitive read of non-primitive type %s", cx.label(op.Layout))
		}
	}
	imm, _, ok, err := cx.ReadImmediateRaw(op, false)
	if err != nil {
		return ImmTy{}, err
	}
	if !ok {
		cx.bug(op.Layout, "primitive read failed for type %s", cx.label(op.Layout))
	}
	return imm, nil
}

// ReadScalar reads a scalar value, which may be uninitialized.
func (cx *InterpCx) ReadScalar(op OpTy) (value.ScalarMaybeUninit, error) {
	imm, err := cx.ReadImmediate(op)
	if err != nil {
		return value.Uninit, err
	}
	return imm.Imm.ToScalarOrUninit(), nil
}

// ReadPointer reads an initialized pointer-sized scalar as a pointer.
func (cx *InterpCx) ReadPointer(op OpTy) (value.Pointer, error) {
	s, err := cx.ReadScalar(op)
	if err != nil {
		return value.Pointer{}, err
	}
	sc, err := checkInit(s)
	if err != nil {
		return value.Pointer{}, err
	}
	return sc.ToPointer(), nil
}

// ReadStr reads the bytes of a str place and checks they are UTF-8.
func (cx *InterpCx) ReadStr(m MPlaceTy) (string, error) {
	n, err := m.Len(cx)
	if err != nil {
		return "", err
	}
	size, err := safecast.Conv[int](n)
	if err != nil {
		return "", ubf(CodePointerOutOfBounds, "str of %d bytes does not fit the address space", n)
	}
	b, err := cx.mem.ReadBytes(m.MPlace.Ptr, size)
	if err != nil {
		return "", cx.memErr(err)
	}
	if _, _, err := transform.Bytes(encoding.UTF8Validator, b); err != nil {
		e := ubf(CodeInvalidStr, "this string is not valid UTF-8: %v", err)
		e.Err = err
		return "", e
	}
	return string(b), nil
}
