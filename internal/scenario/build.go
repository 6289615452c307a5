package scenario

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"ctfe/internal/layout"
	"ctfe/internal/memory"
	"ctfe/internal/types"
	"ctfe/internal/value"
)

// Scenario is a File whose types are interned and whose memory is built.
type Scenario struct {
	Name    string
	Path    string
	Types   map[string]types.TypeID
	Order   []string // type names in declaration order
	Mem     *memory.Store
	Queries []Query

	eng *layout.Engine
}

// Build interns the file's types into eng's interner and fills a fresh
// allocation store, or the store read from the file's image.
func Build(f *File, eng *layout.Engine) (*Scenario, error) {
	s := &Scenario{
		Name:  f.Name,
		Path:  f.Path,
		Types: make(map[string]types.TypeID, len(f.Types)),
		eng:   eng,
	}
	if err := s.declareTypes(f.Types); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	if err := s.buildMemory(f); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	for i := range f.Queries {
		q, err := s.buildQuery(i, &f.Queries[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		s.Queries = append(s.Queries, q)
	}
	return s, nil
}

// ParseType reads a type expression, resolving the scenario's own types
// by name.
func (s *Scenario) ParseType(src string) (types.TypeID, error) {
	return types.Parse(s.eng.Types(), strings.TrimSpace(src), s.resolve)
}

func (s *Scenario) resolve(name string) (types.TypeID, bool) {
	id, ok := s.Types[name]
	return id, ok
}

// Layouts returns the engine the scenario was built with.
func (s *Scenario) Layouts() *layout.Engine {
	return s.eng
}

// declareTypes registers every name first so that fields may refer to
// types declared later, then defines them.
func (s *Scenario) declareTypes(specs []TypeSpec) error {
	in := s.eng.Types()
	for i := range specs {
		ts := &specs[i]
		name := strings.TrimSpace(ts.Name)
		if name == "" {
			return fmt.Errorf("types[%d]: missing name", i)
		}
		if _, dup := s.Types[name]; dup {
			return fmt.Errorf("type %s declared twice", name)
		}
		switch ts.Kind {
		case "struct":
			s.Types[name] = in.DeclareStruct(name)
		case "enum":
			s.Types[name] = in.DeclareEnum(name)
		default:
			return fmt.Errorf("type %s: unknown kind %q (expected: struct|enum)", name, ts.Kind)
		}
		s.Order = append(s.Order, name)
	}
	for i := range specs {
		if err := s.defineType(&specs[i]); err != nil {
			return fmt.Errorf("type %s: %w", specs[i].Name, err)
		}
	}
	return nil
}

func (s *Scenario) defineType(ts *TypeSpec) error {
	in := s.eng.Types()
	id := s.Types[strings.TrimSpace(ts.Name)]
	switch ts.Kind {
	case "struct":
		if len(ts.Variants) > 0 || ts.Repr != "" {
			return errors.New("structs take fields, not variants or repr")
		}
		fields, err := s.fields(ts.Fields)
		if err != nil {
			return err
		}
		attrs := types.LayoutAttrs{Packed: ts.Packed}
		if ts.Align != 0 {
			if ts.Align < 0 || ts.Align&(ts.Align-1) != 0 {
				return fmt.Errorf("align %d is not a power of two", ts.Align)
			}
			align := ts.Align
			attrs.AlignOverride = &align
		}
		return in.DefineStruct(id, fields, attrs)
	default:
		if len(ts.Fields) > 0 || ts.Packed || ts.Align != 0 {
			return errors.New("enums take variants, not fields, packed or align")
		}
		repr := types.NoTypeID
		if ts.Repr != "" {
			r, err := s.ParseType(ts.Repr)
			if err != nil {
				return fmt.Errorf("repr: %w", err)
			}
			repr = r
		}
		variants := make([]types.Variant, 0, len(ts.Variants))
		for _, vs := range ts.Variants {
			if vs.Name == "" {
				return errors.New("variant without a name")
			}
			fields, err := s.fields(vs.Fields)
			if err != nil {
				return fmt.Errorf("variant %s: %w", vs.Name, err)
			}
			v := types.Variant{Name: vs.Name, Fields: fields}
			if vs.Discr != nil {
				v.Discr = value.I128(*vs.Discr)
				v.HasDiscr = true
			}
			variants = append(variants, v)
		}
		return in.DefineEnum(id, repr, variants)
	}
}

func (s *Scenario) fields(specs []FieldSpec) ([]types.Field, error) {
	out := make([]types.Field, 0, len(specs))
	for i, fs := range specs {
		ty, err := s.ParseType(fs.Type)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		name := fs.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		out = append(out, types.Field{Name: name, Type: ty})
	}
	return out, nil
}

func (s *Scenario) buildMemory(f *File) error {
	target := s.eng.Target()
	if path := f.imagePath(); path != "" {
		mem, err := memory.LoadFile(path)
		if err != nil {
			return fmt.Errorf("image: %w", err)
		}
		if mem.Target() != target {
			return fmt.Errorf("image %s was written for %s, not %s", path, mem.Target().Triple, target.Triple)
		}
		s.Mem = mem
	} else {
		s.Mem = memory.NewStore(target)
	}

	ids := make([]value.AllocID, len(f.Allocs))
	for i := range f.Allocs {
		as := &f.Allocs[i]
		if as.Name == "" {
			return fmt.Errorf("allocs[%d]: missing name", i)
		}
		if _, dup := s.Mem.Lookup(as.Name); dup {
			return fmt.Errorf("allocation %s declared twice", as.Name)
		}
		align := as.Align
		if align == 0 {
			align = 1
		}
		id, err := s.Mem.Allocate(as.Name, as.Size, align)
		if err != nil {
			return fmt.Errorf("allocation %s: %w", as.Name, err)
		}
		ids[i] = id
	}
	for i := range f.Allocs {
		as := &f.Allocs[i]
		for j := range as.Writes {
			if err := s.write(ids[i], &as.Writes[j]); err != nil {
				return fmt.Errorf("allocation %s: write %d: %w", as.Name, j, err)
			}
		}
		if as.Frozen {
			if err := s.Mem.Freeze(ids[i]); err != nil {
				return fmt.Errorf("allocation %s: %w", as.Name, err)
			}
		}
	}
	return nil
}

func (s *Scenario) write(id value.AllocID, ws *WriteSpec) error {
	offset, err := safecast.Conv[uint64](ws.Offset)
	if err != nil {
		return fmt.Errorf("offset %d: %w", ws.Offset, err)
	}
	at := value.PtrTo(id, offset)
	switch ws.Kind {
	case "uint", "int":
		if ws.Size <= 0 || ws.Size > value.MaxScalarSize {
			return fmt.Errorf("size %d is not a scalar size", ws.Size)
		}
		n, err := parseNumber(ws.Value)
		if err != nil {
			return err
		}
		bits := uint(ws.Size) * 8 //nolint:gosec // G115: size checked above
		v := value.FromBig(n)
		if ws.Kind == "uint" {
			if n.Sign() < 0 || n.BitLen() > 128 || !v.FitsUnsigned(bits) {
				return fmt.Errorf("%s does not fit in %d unsigned bytes", ws.Value, ws.Size)
			}
			return s.Mem.WriteUint(at, v, ws.Size)
		}
		if n.BitLen() >= 128 || !v.FitsSigned(bits) {
			return fmt.Errorf("%s does not fit in %d signed bytes", ws.Value, ws.Size)
		}
		return s.Mem.WriteInt(at, v, ws.Size)
	case "ptr":
		var off uint64
		if ws.Value != "" {
			n, err := parseNumber(ws.Value)
			if err != nil {
				return err
			}
			if !n.IsUint64() {
				return fmt.Errorf("pointer offset %s does not fit 64 bits", ws.Value)
			}
			off = n.Uint64()
		}
		if ws.Target == "" {
			return s.Mem.WritePointer(at, value.Address(off))
		}
		target, ok := s.Mem.Lookup(ws.Target)
		if !ok {
			return fmt.Errorf("unknown allocation %q", ws.Target)
		}
		return s.Mem.WritePointer(at, value.PtrTo(target, off))
	case "bytes":
		b := []byte(ws.Text)
		if len(ws.Bytes) > 0 {
			if ws.Text != "" {
				return errors.New("bytes takes text or bytes, not both")
			}
			b = make([]byte, len(ws.Bytes))
			for i, v := range ws.Bytes {
				c, err := safecast.Conv[byte](v)
				if err != nil {
					return fmt.Errorf("byte %d: %w", i, err)
				}
				b[i] = c
			}
		}
		return s.Mem.WriteBytes(at, b)
	case "uninit":
		return s.Mem.WriteUninit(at, ws.Size)
	default:
		return fmt.Errorf("unknown write kind %q (expected: uint|int|ptr|bytes|uninit)", ws.Kind)
	}
}

// parseNumber accepts decimal, 0x, 0o and 0b literals with underscores.
func parseNumber(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return nil, fmt.Errorf("bad number %q", s)
	}
	return n, nil
}
