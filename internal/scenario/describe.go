package scenario

import (
	"fmt"
	"strconv"

	"ctfe/internal/layout"
	"ctfe/internal/types"
)

// LayoutInfo is a printable summary of a computed layout.
type LayoutInfo struct {
	Type     string        `json:"type"`
	Size     int           `json:"size"`
	Align    int           `json:"align"`
	Abi      string        `json:"abi"`
	Fields   []FieldInfo   `json:"fields,omitempty"`
	Array    string        `json:"array,omitempty"`
	Variants *VariantsInfo `json:"variants,omitempty"`
	Niche    string        `json:"niche,omitempty"`
}

// FieldInfo locates one field.
type FieldInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Type   string `json:"type"`
}

// VariantsInfo describes the tag of a multi-variant layout.
type VariantsInfo struct {
	Tag       string `json:"tag"`
	TagOffset int    `json:"tag_offset"`
	Encoding  string `json:"encoding"`
	Count     int    `json:"count"`
}

// Describe summarizes the layout of ty.
func Describe(eng *layout.Engine, ty types.TypeID) (*LayoutInfo, error) {
	in := eng.Types()
	l, err := eng.LayoutOf(ty)
	if err != nil {
		return nil, fmt.Errorf("layout of %s: %w", types.Label(in, ty), err)
	}
	info := &LayoutInfo{
		Type:  types.Label(in, ty),
		Size:  l.Size,
		Align: l.Align,
		Abi:   l.Abi.String(),
	}
	if l.LargestNiche != nil {
		info.Niche = fmt.Sprintf("%s at offset %d, %s free", l.LargestNiche.Scalar, l.LargestNiche.Offset, l.LargestNiche.Available())
	}

	switch l.Fields.Kind {
	case layout.FieldsArray:
		if l.IsUnsized() {
			info.Array = fmt.Sprintf("unsized, stride %d", l.Fields.Stride)
		} else {
			info.Array = fmt.Sprintf("%d x stride %d", l.Fields.Count, l.Fields.Stride)
		}
	case layout.FieldsArbitrary:
		if l.Variants.Kind == layout.VariantsMultiple {
			break
		}
		var names []types.Field
		if si, ok := in.StructInfo(ty); ok {
			names = si.Fields
		}
		for i := range l.Fields.Len() {
			fl, err := eng.FieldLayout(l, i)
			if err != nil {
				return nil, err
			}
			name := strconv.Itoa(i)
			if i < len(names) {
				name = names[i].Name
			}
			info.Fields = append(info.Fields, FieldInfo{Name: name, Offset: l.Fields.Offset(i), Type: types.Label(in, fl.Type)})
		}
	}

	if v := l.Variants; v.Kind == layout.VariantsMultiple {
		vi := &VariantsInfo{
			Tag:       v.Tag.String(),
			TagOffset: l.Fields.Offset(v.TagField),
			Count:     len(v.Layouts),
		}
		switch v.Encoding.Kind {
		case layout.TagDirect:
			vi.Encoding = "direct"
		case layout.TagNiche:
			vi.Encoding = fmt.Sprintf("niche: dataful %d, variants %d..=%d from %s",
				v.Encoding.DatafulVariant, v.Encoding.NicheVariants.Start, v.Encoding.NicheVariants.End, v.Encoding.NicheStart)
		}
		info.Variants = vi
	}
	return info, nil
}

// Lines renders the summary for a terminal.
func (li *LayoutInfo) Lines() []string {
	out := []string{fmt.Sprintf("%s: size=%d align=%d abi=%s", li.Type, li.Size, li.Align, li.Abi)}
	for _, f := range li.Fields {
		out = append(out, fmt.Sprintf("  .%s @%d: %s", f.Name, f.Offset, f.Type))
	}
	if li.Array != "" {
		out = append(out, "  array: "+li.Array)
	}
	if v := li.Variants; v != nil {
		out = append(out, fmt.Sprintf("  tag %s @%d, %d variants, %s", v.Tag, v.TagOffset, v.Count, v.Encoding))
	}
	if li.Niche != "" {
		out = append(out, "  niche: "+li.Niche)
	}
	return out
}
