package types

import (
	"fmt"
	"strings"
)

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID || typesIn == nil {
		return "?"
	}
	if depth > 6 {
		return "..."
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindUnit:
		return "()"
	case KindNever:
		return "!"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindInt:
		return formatIntType(tt.Width, true)
	case KindUint:
		return formatIntType(tt.Width, false)
	case KindFloat:
		return fmt.Sprintf("f%d", tt.Width)
	case KindPointer:
		if tt.Mutable {
			return "*mut " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "*const " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindReference:
		if tt.Mutable {
			return "&mut " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "&" + labelDepth(typesIn, tt.Elem, depth+1)
	case KindSlice:
		return "[" + labelDepth(typesIn, tt.Elem, depth+1) + "]"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", labelDepth(typesIn, tt.Elem, depth+1), tt.Count)
	case KindDyn:
		return "dyn " + typesIn.DynName(id)
	case KindMaybeUninit:
		return "MaybeUninit<" + labelDepth(typesIn, tt.Elem, depth+1) + ">"
	case KindTuple:
		info, ok := typesIn.TupleInfo(id)
		if !ok {
			return "(?)"
		}
		parts := make([]string, len(info.Elems))
		for i, elem := range info.Elems {
			parts[i] = labelDepth(typesIn, elem, depth+1)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		if info, ok := typesIn.StructInfo(id); ok {
			return info.Name
		}
	case KindEnum:
		if info, ok := typesIn.EnumInfo(id); ok {
			return info.Name
		}
	}
	return tt.Kind.String()
}

func formatIntType(w Width, signed bool) string {
	prefix := "u"
	if signed {
		prefix = "i"
	}
	if w == WidthAny {
		return prefix + "size"
	}
	return fmt.Sprintf("%s%d", prefix, w)
}
