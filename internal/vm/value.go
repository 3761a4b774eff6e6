package vm

import (
	"math"
)

// Value is one machine word of the operand stack or of a frame's locals.
// Int and Bool use Data; a Double spans two words with its bits in the
// first; references live in Obj.
type Value struct {
	Data uint64
	Obj  any
}

func IntVal(v int64) Value {
	return Value{Data: uint64(v)}
}

func BoolVal(v bool) Value {
	if v {
		return Value{Data: 1}
	}
	return Value{}
}

// DoubleWords returns the two words of a Double.
func DoubleWords(v float64) (Value, Value) {
	return Value{Data: math.Float64bits(v)}, Value{}
}

func ObjVal(o any) Value {
	return Value{Obj: o}
}

func (v Value) AsInt() int64 {
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data != 0
}

// box converts the words of a value of representation r to its boxed form:
// int64, float64, bool or the reference itself.
func box(r Repr, words []Value) any {
	switch r {
	case ReprInt:
		return words[0].AsInt()
	case ReprBool:
		return words[0].AsBool()
	case ReprDouble:
		return words[0].AsFloat()
	case ReprVoid:
		return Unit
	}
	return words[0].Obj
}

// unbox appends the words of a boxed value as representation r.
func unbox(r Repr, v any, dst []Value) ([]Value, error) {
	switch r {
	case ReprInt:
		n, ok := v.(int64)
		if !ok {
			return dst, badUnbox(r, v)
		}
		return append(dst, IntVal(n)), nil
	case ReprBool:
		b, ok := v.(bool)
		if !ok {
			return dst, badUnbox(r, v)
		}
		return append(dst, BoolVal(b)), nil
	case ReprDouble:
		f, ok := v.(float64)
		if !ok {
			return dst, badUnbox(r, v)
		}
		hi, lo := DoubleWords(f)
		return append(dst, hi, lo), nil
	}
	return append(dst, ObjVal(v)), nil
}
