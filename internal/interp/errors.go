package interp

import (
	"errors"
	"fmt"

	"ctfe/internal/layout"
	"ctfe/internal/memory"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// ErrorCode identifies an evaluation error.
type ErrorCode int

// Stable error codes - do not change values.
const (
	CodeInvalidUninitBytes   ErrorCode = 2001 // CE2001: read of uninitialized bytes
	CodeInvalidTag           ErrorCode = 2002 // CE2002: tag matches no variant
	CodeInvalidStr           ErrorCode = 2003 // CE2003: str is not valid UTF-8
	CodePointerOutOfBounds   ErrorCode = 2004 // CE2004: access outside an allocation
	CodeDanglingIntPointer   ErrorCode = 2005 // CE2005: dereference of an address without provenance
	CodeAlignmentCheckFailed ErrorCode = 2006 // CE2006: misaligned access
	CodeUninhabitedEnum      ErrorCode = 2007 // CE2007: discriminant of an enum without variants
	CodeReadPointerAsBytes   ErrorCode = 3001 // CE3001: pointer read as plain bytes
	CodeReadPartialPointer   ErrorCode = 3002 // CE3002: read covering part of a pointer
	CodePointerArithmetic    ErrorCode = 3003 // CE3003: arithmetic on a pointer with provenance
)

// String returns the code as "CE2001" format.
func (c ErrorCode) String() string {
	return fmt.Sprintf("CE%d", int(c))
}

// ErrorKind separates undefined behavior from operations the interpreter
// cannot perform.
type ErrorKind uint8

const (
	KindUB ErrorKind = iota + 1
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindUB:
		return "undefined behavior"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// EvalError is a failure attributable to the evaluated program. Scalar
// holds the offending raw value for CodeInvalidTag.
type EvalError struct {
	Code   ErrorCode
	Kind   ErrorKind
	Msg    string
	Scalar *value.ScalarMaybeUninit
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Code, e.Kind, e.Msg)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsUB reports whether the error is undefined behavior.
func (e *EvalError) IsUB() bool {
	return e.Kind == KindUB
}

// CodeOf returns the code of an *EvalError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var e *EvalError
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}

func ubf(code ErrorCode, format string, args ...any) *EvalError {
	return &EvalError{Code: code, Kind: KindUB, Msg: fmt.Sprintf(format, args...)}
}

func unsupportedf(code ErrorCode, format string, args ...any) *EvalError {
	return &EvalError{Code: code, Kind: KindUnsupported, Msg: fmt.Sprintf(format, args...)}
}

func invalidTag(raw value.ScalarMaybeUninit) *EvalError {
	e := ubf(CodeInvalidTag, "enum value has invalid tag: %s", raw)
	e.Scalar = &raw
	return e
}

// Bug is an internal invariant violation: a layout and a value that cannot
// belong together. It is raised with panic and never returned by the
// exported API.
type Bug struct {
	Msg    string
	Type   string
	Layout string
}

func (b *Bug) Error() string {
	if b.Type == "" {
		return "interpreter bug: " + b.Msg
	}
	return fmt.Sprintf("interpreter bug: %s (type %s, layout %s)", b.Msg, b.Type, b.Layout)
}

func bug(format string, args ...any) {
	panic(&Bug{Msg: fmt.Sprintf(format, args...)})
}

func (cx *InterpCx) bug(l *layout.TypeLayout, format string, args ...any) {
	b := &Bug{Msg: fmt.Sprintf(format, args...)}
	if l != nil {
		b.Type = types.Label(cx.types, l.Type)
		b.Layout = l.String()
	}
	panic(b)
}

// Catch turns a *Bug panic into an error. It must be deferred directly:
//
//	defer interp.Catch(&err)
func Catch(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if b, ok := r.(*Bug); ok {
		*errp = b
		return
	}
	panic(r)
}

// memErr maps allocation-store failures to evaluation errors.
func (cx *InterpCx) memErr(err error) error {
	var ae *memory.AccessError
	if !errors.As(err, &ae) {
		return err
	}
	wrap := func(e *EvalError) *EvalError {
		e.Err = err
		return e
	}
	switch ae.Kind {
	case memory.ErrOutOfBounds, memory.ErrUnknownAlloc:
		return wrap(ubf(CodePointerOutOfBounds, "%v", ae))
	case memory.ErrDanglingInt:
		return wrap(ubf(CodeDanglingIntPointer, "%v", ae))
	case memory.ErrUninitBytes:
		return wrap(ubf(CodeInvalidUninitBytes, "using uninitialized data at %s", ae.Ptr))
	case memory.ErrMisaligned:
		return wrap(ubf(CodeAlignmentCheckFailed, "%v", ae))
	case memory.ErrReadPointerAsBytes:
		return wrap(unsupportedf(CodeReadPointerAsBytes, "unable to turn pointer into raw bytes at %s", ae.Ptr))
	case memory.ErrReadPartialPointer:
		return wrap(unsupportedf(CodeReadPartialPointer, "unable to read parts of a pointer at %s", ae.Ptr))
	default:
		bug("unexpected memory error during a read: %v", ae)
		return nil
	}
}
