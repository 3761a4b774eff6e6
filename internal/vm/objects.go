package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// UnitValue is the type of the single unit reference.
type UnitValue struct{}

var Unit = UnitValue{}

// List is an immutable cons list of boxed elements. The empty list is a nil
// *List.
type List struct {
	Head any
	Tail *List
}

func (l *List) Len() int {
	n := 0
	for ; l != nil; l = l.Tail {
		n++
	}
	return n
}

// Slice returns the elements in order.
func (l *List) Slice() []any {
	var out []any
	for ; l != nil; l = l.Tail {
		out = append(out, l.Head)
	}
	return out
}

// NewList builds a list from boxed elements.
func NewList(elems ...any) *List {
	var l *List
	for i := len(elems) - 1; i >= 0; i-- {
		l = &List{Head: elems[i], Tail: l}
	}
	return l
}

// Holder is an instance of a sum-type constructor. Class is the holder
// artifact name; Owner is the defining module and is empty for Ok and Error.
type Holder struct {
	Owner   string
	Class   string
	Sum     string
	Tag     int
	Payload any
	HasArg  bool
}

// Closure is a method partially applied to boxed leading arguments; captured
// variables come first.
type Closure struct {
	module *moduleInstance
	method *Method
	params []Repr
	result Repr
	args   []any
}

func (c *Closure) Name() string { return c.module.art.Name + "." + c.method.Name }

// FormatValue renders a boxed value the way print shows it.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil, UnitValue:
		return "()"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatDouble(v)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case *List:
		parts := make([]string, 0, v.Len())
		for l := v; l != nil; l = l.Tail {
			parts = append(parts, FormatValue(l.Head))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Holder:
		if !v.HasArg {
			return v.Class
		}
		return v.Class + "(" + FormatValue(v.Payload) + ")"
	case *Closure:
		return "<fn " + v.Name() + ">"
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", v)
}

// formatDouble always shows a fractional part for finite values: 5.0, not 5.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// valuesEqual is structural equality over boxed values.
func valuesEqual(a, b any) bool {
	switch a := a.(type) {
	case nil, UnitValue:
		switch b.(type) {
		case nil, UnitValue:
			return true
		}
		return false
	case *List:
		bl, ok := b.(*List)
		if !ok {
			return false
		}
		for a != nil && bl != nil {
			if !valuesEqual(a.Head, bl.Head) {
				return false
			}
			a, bl = a.Tail, bl.Tail
		}
		return a == nil && bl == nil
	case *Holder:
		bh, ok := b.(*Holder)
		if !ok {
			return false
		}
		return a.Owner == bh.Owner && a.Class == bh.Class && valuesEqual(a.Payload, bh.Payload)
	case *Closure:
		return a == b
	case int64, float64, bool, string:
		return a == b
	}
	return a == b
}
