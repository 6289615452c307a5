// Package scenario loads TOML scenario files and evaluates their queries
// against the interpreter core.
//
// A scenario declares nominal types, builds an allocation store and then
// asks questions about the values stored in it:
//
//	[[types]]
//	name = "Shape"
//	kind = "enum"
//	repr = "u8"
//	variants = [{ name = "Circle", fields = [{ type = "u32" }], discr = 10 }, { name = "Empty" }]
//
//	[[allocs]]
//	name = "a"
//	size = 8
//	align = 4
//	writes = [{ offset = 0, kind = "uint", size = 1, value = "10" }]
//
//	[[queries]]
//	op = "read_discriminant"
//	type = "Shape"
//	alloc = "a"
//	expect = "Circle (variant 0, discr 10)"
package scenario

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrEmpty is returned for a scenario without queries.
var ErrEmpty = errors.New("no [[queries]]")

// File is a parsed scenario file before any type or allocation is built.
type File struct {
	Path    string `toml:"-"`
	Name    string `toml:"name"`
	Image   string `toml:"image"`
	Types   []TypeSpec
	Allocs  []AllocSpec
	Queries []QuerySpec
}

// TypeSpec declares a struct or an enum.
type TypeSpec struct {
	Name     string        `toml:"name"`
	Kind     string        `toml:"kind"`
	Fields   []FieldSpec   `toml:"fields"`
	Variants []VariantSpec `toml:"variants"`
	Repr     string        `toml:"repr"`
	Packed   bool          `toml:"packed"`
	Align    int           `toml:"align"`
}

// FieldSpec is one struct or variant field. Unnamed fields are numbered.
type FieldSpec struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// VariantSpec is one enum variant. Discr is optional.
type VariantSpec struct {
	Name   string      `toml:"name"`
	Fields []FieldSpec `toml:"fields"`
	Discr  *int64      `toml:"discr"`
}

// AllocSpec describes one allocation and the writes that fill it.
type AllocSpec struct {
	Name   string      `toml:"name"`
	Size   int         `toml:"size"`
	Align  int         `toml:"align"`
	Frozen bool        `toml:"frozen"`
	Writes []WriteSpec `toml:"writes"`
}

// WriteSpec is a single store into an allocation.
//
//	uint, int  Size bytes holding Value
//	ptr        a pointer to Target+Value, or the bare address Value
//	bytes      Text as UTF-8, or Bytes
//	uninit     Size bytes marked uninitialized
type WriteSpec struct {
	Offset int    `toml:"offset"`
	Kind   string `toml:"kind"`
	Size   int    `toml:"size"`
	Value  string `toml:"value"`
	Target string `toml:"target"`
	Text   string `toml:"text"`
	Bytes  []int  `toml:"bytes"`
}

// QuerySpec asks one question about a place.
type QuerySpec struct {
	Name        string `toml:"name"`
	Op          string `toml:"op"`
	Type        string `toml:"type"`
	Alloc       string `toml:"alloc"`
	Offset      int    `toml:"offset"`
	Meta        *int64 `toml:"meta"`
	Fields      []int  `toml:"fields"`
	Expect      string `toml:"expect"`
	ExpectError string `toml:"expect-error"`
}

type fileSpec struct {
	Name    string      `toml:"name"`
	Image   string      `toml:"image"`
	Types   []TypeSpec  `toml:"types"`
	Allocs  []AllocSpec `toml:"allocs"`
	Queries []QuerySpec `toml:"queries"`
}

// LoadFile parses a scenario file. The scenario is named after the file
// unless it sets name itself.
func LoadFile(path string) (*File, error) {
	var spec fileSpec
	meta, err := toml.DecodeFile(path, &spec)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	f, err := fromSpec(meta, &spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Decode parses a scenario from memory. Relative image paths are resolved
// against the working directory.
func Decode(name, data string) (*File, error) {
	var spec fileSpec
	meta, err := toml.Decode(data, &spec)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", name, err)
	}
	f, err := fromSpec(meta, &spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Name == "" {
		f.Name = name
	}
	return f, nil
}

func fromSpec(meta toml.MetaData, spec *fileSpec) (*File, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	return &File{
		Name:    strings.TrimSpace(spec.Name),
		Image:   strings.TrimSpace(spec.Image),
		Types:   spec.Types,
		Allocs:  spec.Allocs,
		Queries: spec.Queries,
	}, nil
}

// imagePath resolves the image path against the scenario's directory.
func (f *File) imagePath() string {
	if f.Image == "" || filepath.IsAbs(f.Image) || f.Path == "" {
		return f.Image
	}
	return filepath.Join(filepath.Dir(f.Path), f.Image)
}
