package memory

import (
	"fmt"

	"ctfe/internal/value"
)

// AccessErrorKind classifies failed memory accesses.
type AccessErrorKind uint8

const (
	ErrOutOfBounds AccessErrorKind = iota + 1
	ErrDanglingInt
	ErrUnknownAlloc
	ErrUninitBytes
	ErrReadPointerAsBytes
	ErrReadPartialPointer
	ErrMisaligned
	ErrReadOnly
)

func (k AccessErrorKind) String() string {
	switch k {
	case ErrOutOfBounds:
		return "out of bounds"
	case ErrDanglingInt:
		return "dangling integer pointer"
	case ErrUnknownAlloc:
		return "unknown allocation"
	case ErrUninitBytes:
		return "uninitialized bytes"
	case ErrReadPointerAsBytes:
		return "read pointer as bytes"
	case ErrReadPartialPointer:
		return "read part of a pointer"
	case ErrMisaligned:
		return "misaligned"
	case ErrReadOnly:
		return "write to read-only allocation"
	default:
		return fmt.Sprintf("AccessErrorKind(%d)", k)
	}
}

// AccessError reports why a read or write of Size bytes at Ptr failed.
type AccessError struct {
	Kind     AccessErrorKind
	Ptr      value.Pointer
	Size     int
	AllocLen int // for ErrOutOfBounds
	Align    int // for ErrMisaligned
}

func (e *AccessError) Error() string {
	switch e.Kind {
	case ErrOutOfBounds:
		return fmt.Sprintf("%s: access of %d bytes at %s, allocation has size %d", e.Kind, e.Size, e.Ptr, e.AllocLen)
	case ErrMisaligned:
		return fmt.Sprintf("%s: %s is not aligned to %d", e.Kind, e.Ptr, e.Align)
	default:
		return fmt.Sprintf("%s: access of %d bytes at %s", e.Kind, e.Size, e.Ptr)
	}
}
