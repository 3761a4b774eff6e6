package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ArtifactKind distinguishes module code from constructor holder classes.
type ArtifactKind int

const (
	KindModule ArtifactKind = iota
	KindHolder
)

func (k ArtifactKind) String() string {
	if k == KindHolder {
		return "holder"
	}
	return "module"
}

// Artifact is one unit of generated code.
//
// A module artifact carries the methods, fields and constant pool of a
// compiled module. A holder artifact describes one sum-type constructor:
// Sum names the marker it implements and Tag its position in the sum.
type Artifact struct {
	Name      string
	Kind      ArtifactKind
	Sum       string
	Tag       int
	Payload   bool
	Constants []Constant
	Methods   []*Method
	Fields    []*Field
}

// Method returns the method called name, or nil.
func (a *Artifact) Method(name string) *Method {
	for _, m := range a.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (a *Artifact) Field(name string) *Field {
	for _, f := range a.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Method is a static method of a module artifact.
type Method struct {
	Name       string
	Descriptor string
	MaxLocals  int
	Code       []byte
	Lines      []int
	// Function names the top-level function this method implements, and
	// Signature renders the type it was emitted at. Both are empty for
	// lambdas, constructor factories and the initializer.
	Function  string
	Signature string
}

type Field struct {
	Name       string
	Descriptor string
}

// ConstKind tags constant pool entries.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstDouble
	ConstString
	ConstMethod // Owner, Name, Descriptor
	ConstField  // Owner, Name, Descriptor
	ConstHolder // Owner (empty for the built-in Ok/Error), Name
	ConstHost   // Owner, Name (member), Descriptor, Int (host.MemberKind)
	ConstExport // Owner (module), Name
)

func (k ConstKind) String() string {
	switch k {
	case ConstInt:
		return "int"
	case ConstDouble:
		return "double"
	case ConstString:
		return "string"
	case ConstMethod:
		return "method"
	case ConstField:
		return "field"
	case ConstHolder:
		return "holder"
	case ConstHost:
		return "host"
	}
	return "export"
}

// Constant is a constant pool entry. Which fields are meaningful depends on
// Kind.
type Constant struct {
	Kind       ConstKind
	Int        int64
	Double     float64
	Str        string
	Owner      string
	Name       string
	Descriptor string
}

func (c Constant) key() string {
	switch c.Kind {
	case ConstInt:
		return "i:" + strconv.FormatInt(c.Int, 10)
	case ConstDouble:
		return "d:" + strconv.FormatUint(math.Float64bits(c.Double), 16)
	case ConstString:
		return "s:" + c.Str
	case ConstHost:
		return fmt.Sprintf("h:%d:%s.%s%s", c.Int, c.Owner, c.Name, c.Descriptor)
	}
	return fmt.Sprintf("%d:%s.%s%s", c.Kind, c.Owner, c.Name, c.Descriptor)
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstDouble:
		return formatDouble(c.Double)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstHolder:
		if c.Owner == "" {
			return c.Name
		}
	}
	s := c.Owner + "." + c.Name
	if c.Kind == ConstHost && c.Name == "" {
		s = "new " + c.Owner
	}
	return s + c.Descriptor
}

// constantPool deduplicates the constants of one artifact.
type constantPool struct {
	entries []Constant
	index   map[string]int
}

func newConstantPool() *constantPool {
	return &constantPool{index: make(map[string]int)}
}

func (p *constantPool) add(c Constant) (int, error) {
	k := c.key()
	if i, ok := p.index[k]; ok {
		return i, nil
	}
	if len(p.entries) > 0xffff {
		return 0, fmt.Errorf("constant pool overflow")
	}
	p.entries = append(p.entries, c)
	p.index[k] = len(p.entries) - 1
	return len(p.entries) - 1, nil
}
