package vm

import (
	"fmt"
	"strings"

	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Repr is the machine representation of a value.
type Repr int

const (
	ReprInt    Repr = iota // one word
	ReprBool               // one word holding 0 or 1
	ReprDouble             // two words
	ReprRef                // one word holding a reference
	ReprVoid               // no value; method results only
)

// Width is the number of stack or local words a value occupies.
func (r Repr) Width() int {
	switch r {
	case ReprDouble:
		return 2
	case ReprVoid:
		return 0
	}
	return 1
}

func (r Repr) String() string {
	switch r {
	case ReprInt:
		return "int"
	case ReprBool:
		return "bool"
	case ReprDouble:
		return "double"
	case ReprRef:
		return "ref"
	}
	return "void"
}

// ReprOf maps a resolved type to its representation. Type variables are
// boxed generic references; a numeric variable must have been resolved
// before code generation.
func ReprOf(t typesystem.Type) (Repr, error) {
	switch t.(type) {
	case typesystem.TInt:
		return ReprInt, nil
	case typesystem.TBool:
		return ReprBool, nil
	case typesystem.TDouble:
		return ReprDouble, nil
	case typesystem.TNumeric:
		return ReprRef, diagnostics.Internalf("numeric type %s reached code generation", t)
	case nil:
		return ReprRef, diagnostics.Internalf("missing type")
	}
	return ReprRef, nil
}

// resultRepr is ReprOf for method results, where Unit has no value.
func resultRepr(t typesystem.Type) (Repr, error) {
	if _, ok := t.(typesystem.TUnit); ok {
		return ReprVoid, nil
	}
	return ReprOf(t)
}

func refName(t typesystem.Type) string {
	switch t := t.(type) {
	case typesystem.TString:
		return "string"
	case typesystem.TUnit:
		return "unit"
	case typesystem.TList:
		return "list"
	case typesystem.TResult:
		return "result"
	case typesystem.TFunc:
		return "fn"
	case typesystem.TNamed:
		return t.Name
	case typesystem.TApp:
		return t.Name
	case typesystem.THost:
		return "host." + t.Name
	}
	return "object"
}

func typeDescriptor(t typesystem.Type, result bool) (string, error) {
	r, err := ReprOf(t)
	if result {
		r, err = resultRepr(t)
	}
	if err != nil {
		return "", err
	}
	switch r {
	case ReprInt:
		return "I", nil
	case ReprBool:
		return "Z", nil
	case ReprDouble:
		return "D", nil
	case ReprVoid:
		return "V", nil
	}
	return "L" + refName(t) + ";", nil
}

// MethodDescriptor renders parameter and result types as "(II)D".
func MethodDescriptor(params []typesystem.Type, result typesystem.Type) (string, error) {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		d, err := typeDescriptor(p, false)
		if err != nil {
			return "", err
		}
		sb.WriteString(d)
	}
	sb.WriteByte(')')
	d, err := typeDescriptor(result, true)
	if err != nil {
		return "", err
	}
	sb.WriteString(d)
	return sb.String(), nil
}

// ParseDescriptor returns the representations named by a method descriptor.
func ParseDescriptor(desc string) (params []Repr, result Repr, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, 0, fmt.Errorf("descriptor %q: missing '('", desc)
	}
	i := 1
	next := func() (Repr, error) {
		if i >= len(desc) {
			return 0, fmt.Errorf("descriptor %q: truncated", desc)
		}
		c := desc[i]
		i++
		switch c {
		case 'I':
			return ReprInt, nil
		case 'Z':
			return ReprBool, nil
		case 'D':
			return ReprDouble, nil
		case 'V':
			return ReprVoid, nil
		case 'L':
			end := strings.IndexByte(desc[i:], ';')
			if end < 0 {
				return 0, fmt.Errorf("descriptor %q: unterminated reference", desc)
			}
			i += end + 1
			return ReprRef, nil
		}
		return 0, fmt.Errorf("descriptor %q: unexpected %q", desc, c)
	}
	for i < len(desc) && desc[i] != ')' {
		r, err := next()
		if err != nil {
			return nil, 0, err
		}
		if r == ReprVoid {
			return nil, 0, fmt.Errorf("descriptor %q: void parameter", desc)
		}
		params = append(params, r)
	}
	if i >= len(desc) {
		return nil, 0, fmt.Errorf("descriptor %q: missing ')'", desc)
	}
	i++
	result, err = next()
	if err != nil {
		return nil, 0, err
	}
	if i != len(desc) {
		return nil, 0, fmt.Errorf("descriptor %q: trailing characters", desc)
	}
	return params, result, nil
}
