package layout

import (
	"fmt"
	"strings"

	"ctfe/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	LayoutErrLengthConversion
	LayoutErrUnknownType
	LayoutErrUnsizedField
	LayoutErrDiscriminantRange
	LayoutErrConflictingAttrs
	LayoutErrTooLarge
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  types.TypeID
	Cycle []types.TypeID // for LayoutErrRecursiveUnsized
	Field int            // for LayoutErrUnsizedField
	Err   error          // for LayoutErrLengthConversion
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrLengthConversion:
		if e.Err != nil {
			return fmt.Sprintf("array length conversion error (type#%d): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("array length conversion error (type#%d)", e.Type)
	case LayoutErrUnknownType:
		return fmt.Sprintf("no layout for unknown type#%d", e.Type)
	case LayoutErrUnsizedField:
		return fmt.Sprintf("field %d of type#%d is unsized but not last", e.Field, e.Type)
	case LayoutErrDiscriminantRange:
		return fmt.Sprintf("discriminants of type#%d do not fit the repr type", e.Type)
	case LayoutErrConflictingAttrs:
		return fmt.Sprintf("packed conflicts with align override (type#%d)", e.Type)
	case LayoutErrTooLarge:
		return fmt.Sprintf("type#%d is too large for the target", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
