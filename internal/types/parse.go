package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Resolver maps a nominal type name to its TypeID.
type Resolver func(name string) (TypeID, bool)

// Parse reads a type expression in the notation Label produces:
// primitives, "()", "!", "&T", "&mut T", "*const T", "*mut T", "[T]",
// "[T; N]", tuples, "MaybeUninit<T>" and "dyn Name". Other identifiers
// are looked up with named, which may be nil.
func Parse(in *Interner, src string, named Resolver) (TypeID, error) {
	p := &typeParser{in: in, src: src, named: named}
	id, err := p.parseType()
	if err != nil {
		return NoTypeID, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return NoTypeID, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return id, nil
}

type typeParser struct {
	in    *Interner
	src   string
	pos   int
	named Resolver
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) eat(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *typeParser) expect(tok string) error {
	if !p.eat(tok) {
		return p.errorf("expected %q", tok)
	}
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if r != '_' && r != ':' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parseType() (TypeID, error) {
	switch {
	case p.eat("&"):
		mutable := p.eatKeyword("mut")
		elem, err := p.parseType()
		if err != nil {
			return NoTypeID, err
		}
		return p.in.Intern(MakeReference(elem, mutable)), nil
	case p.eat("*"):
		var mutable bool
		switch {
		case p.eatKeyword("mut"):
			mutable = true
		case p.eatKeyword("const"):
		default:
			return NoTypeID, p.errorf("raw pointer needs const or mut")
		}
		elem, err := p.parseType()
		if err != nil {
			return NoTypeID, err
		}
		return p.in.Intern(MakePointer(elem, mutable)), nil
	case p.eat("["):
		return p.parseArray()
	case p.eat("("):
		return p.parseTuple()
	case p.eat("!"):
		return p.in.builtins.Never, nil
	}

	name := p.ident()
	if name == "" {
		return NoTypeID, p.errorf("expected a type")
	}
	if id, ok := p.builtin(name); ok {
		return id, nil
	}
	switch name {
	case "MaybeUninit":
		if err := p.expect("<"); err != nil {
			return NoTypeID, err
		}
		elem, err := p.parseType()
		if err != nil {
			return NoTypeID, err
		}
		if err := p.expect(">"); err != nil {
			return NoTypeID, err
		}
		return p.in.Intern(MakeMaybeUninit(elem)), nil
	case "dyn":
		trait := p.ident()
		if trait == "" {
			return NoTypeID, p.errorf("dyn needs a trait name")
		}
		return p.in.RegisterDyn(trait), nil
	}
	if p.named != nil {
		if id, ok := p.named(name); ok {
			return id, nil
		}
	}
	return NoTypeID, p.errorf("unknown type %s", name)
}

// eatKeyword consumes kw only when it is followed by a space.
func (p *typeParser) eatKeyword(kw string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], kw+" ") {
		p.pos += len(kw) + 1
		return true
	}
	return false
}

func (p *typeParser) parseArray() (TypeID, error) {
	elem, err := p.parseType()
	if err != nil {
		return NoTypeID, err
	}
	if p.eat("]") {
		return p.in.Intern(MakeSlice(elem)), nil
	}
	if err := p.expect(";"); err != nil {
		return NoTypeID, err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	count, err := strconv.ParseUint(p.src[start:p.pos], 10, 64)
	if err != nil {
		return NoTypeID, p.errorf("bad array length: %v", err)
	}
	if err := p.expect("]"); err != nil {
		return NoTypeID, err
	}
	return p.in.Intern(MakeArray(elem, count)), nil
}

func (p *typeParser) parseTuple() (TypeID, error) {
	var elems []TypeID
	for !p.eat(")") {
		elem, err := p.parseType()
		if err != nil {
			return NoTypeID, err
		}
		elems = append(elems, elem)
		if p.eat(")") {
			break
		}
		if err := p.expect(","); err != nil {
			return NoTypeID, err
		}
	}
	return p.in.Tuple(elems...), nil
}

func (p *typeParser) builtin(name string) (TypeID, bool) {
	b := p.in.builtins
	switch name {
	case "bool":
		return b.Bool, true
	case "char":
		return b.Char, true
	case "str":
		return b.Str, true
	case "i8":
		return b.I8, true
	case "i16":
		return b.I16, true
	case "i32":
		return b.I32, true
	case "i64":
		return b.I64, true
	case "i128":
		return b.I128, true
	case "isize":
		return b.Isize, true
	case "u8":
		return b.U8, true
	case "u16":
		return b.U16, true
	case "u32":
		return b.U32, true
	case "u64":
		return b.U64, true
	case "u128":
		return b.U128, true
	case "usize":
		return b.Usize, true
	case "f32":
		return b.F32, true
	case "f64":
		return b.F64, true
	}
	return NoTypeID, false
}
