package typesystem

import (
	"strconv"
	"strings"
)

// Type is the closed union of miniml types.
// Only the variants declared in this file implement it.
type Type interface {
	String() string
	isType()
}

// TInt is the single-width integer type.
type TInt struct{}

// TDouble is the double-width floating point type.
type TDouble struct{}

type TString struct{}

// TBool is represented as an integer 0/1 at runtime.
type TBool struct{}

// TUnit has exactly one value.
type TUnit struct{}

// TList is a homogeneous list.
type TList struct {
	Elem Type
}

// TResult is the built-in two-constructor sum type (Ok / Error).
type TResult struct {
	Ok  Type
	Err Type
}

// TVar is an unbound inference variable.
type TVar struct {
	ID int
}

// TNumeric is an inference variable restricted to Int or Double.
type TNumeric struct {
	ID int
}

// TFunc is a curried one-argument function.
type TFunc struct {
	Param  Type
	Result Type
}

// TScheme quantifies the variables listed in Vars over Body.
// Vars may name both TVar and TNumeric ids.
type TScheme struct {
	Vars []int
	Body Type
}

// TNamed is a user-defined sum type without parameters.
type TNamed struct {
	Name string
}

// TApp is a user-defined sum type applied to arguments.
type TApp struct {
	Name string
	Args []Type
}

// THost refers to a type of the host platform by qualified name.
type THost struct {
	Name string
}

func (TInt) isType()     {}
func (TDouble) isType()  {}
func (TString) isType()  {}
func (TBool) isType()    {}
func (TUnit) isType()    {}
func (TList) isType()    {}
func (TResult) isType()  {}
func (TVar) isType()     {}
func (TNumeric) isType() {}
func (TFunc) isType()    {}
func (TScheme) isType()  {}
func (TNamed) isType()   {}
func (TApp) isType()     {}
func (THost) isType()    {}

// Shared primitive instances.
var (
	Int    Type = TInt{}
	Double Type = TDouble{}
	String Type = TString{}
	Bool   Type = TBool{}
	Unit   Type = TUnit{}
)

func (TInt) String() string    { return "Int" }
func (TDouble) String() string { return "Double" }
func (TString) String() string { return "String" }
func (TBool) String() string   { return "Bool" }
func (TUnit) String() string   { return "Unit" }

func (t TList) String() string {
	return wrapArrow(t.Elem) + " list"
}

func (t TResult) String() string {
	return "result<" + t.Ok.String() + ", " + t.Err.String() + ">"
}

func (t TVar) String() string     { return "'t" + strconv.Itoa(t.ID) }
func (t TNumeric) String() string { return "'n" + strconv.Itoa(t.ID) }

func (t TFunc) String() string {
	return wrapArrow(t.Param) + " -> " + t.Result.String()
}

func (t TScheme) String() string {
	if len(t.Vars) == 0 {
		return t.Body.String()
	}
	kinds := varKinds(t.Body)
	var sb strings.Builder
	sb.WriteString("forall")
	for _, id := range t.Vars {
		sb.WriteByte(' ')
		if kinds[id] {
			sb.WriteString(TNumeric{ID: id}.String())
		} else {
			sb.WriteString(TVar{ID: id}.String())
		}
	}
	sb.WriteString(". ")
	sb.WriteString(t.Body.String())
	return sb.String()
}

func (t TNamed) String() string { return t.Name }

func (t TApp) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return t.Name + "<" + strings.Join(args, ", ") + ">"
}

func (t THost) String() string { return "@" + t.Name }

func wrapArrow(t Type) string {
	switch t.(type) {
	case TFunc, TScheme:
		return "(" + t.String() + ")"
	}
	return t.String()
}

// NewFunc builds the curried function type params[0] -> ... -> result.
func NewFunc(result Type, params ...Type) Type {
	t := result
	for i := len(params) - 1; i >= 0; i-- {
		t = TFunc{Param: params[i], Result: t}
	}
	return t
}

// SplitFunc peels off up to n parameters of a curried function type.
// It stops early if t is not a function.
func SplitFunc(t Type, n int) (params []Type, result Type) {
	result = t
	for i := 0; i < n; i++ {
		f, ok := result.(TFunc)
		if !ok {
			break
		}
		params = append(params, f.Param)
		result = f.Result
	}
	return params, result
}

// Equal compares two types structurally.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case TInt, TDouble, TString, TBool, TUnit:
		return a == b
	case TList:
		b, ok := b.(TList)
		return ok && Equal(a.Elem, b.Elem)
	case TResult:
		b, ok := b.(TResult)
		return ok && Equal(a.Ok, b.Ok) && Equal(a.Err, b.Err)
	case TVar:
		b, ok := b.(TVar)
		return ok && a.ID == b.ID
	case TNumeric:
		b, ok := b.(TNumeric)
		return ok && a.ID == b.ID
	case TFunc:
		b, ok := b.(TFunc)
		return ok && Equal(a.Param, b.Param) && Equal(a.Result, b.Result)
	case TScheme:
		b, ok := b.(TScheme)
		if !ok || len(a.Vars) != len(b.Vars) {
			return false
		}
		for i := range a.Vars {
			if a.Vars[i] != b.Vars[i] {
				return false
			}
		}
		return Equal(a.Body, b.Body)
	case TNamed:
		b, ok := b.(TNamed)
		return ok && a.Name == b.Name
	case TApp:
		b, ok := b.(TApp)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case THost:
		b, ok := b.(THost)
		return ok && a.Name == b.Name
	}
	return false
}

// FreeVars returns the ids of the TVar and TNumeric nodes in t, in order of
// first appearance. Variables quantified by a nested scheme are excluded.
func FreeVars(t Type) []int {
	var ids []int
	seen := map[int]bool{}
	walkVars(t, nil, func(id int, _ bool) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	})
	return ids
}

// HasVars reports whether any inference variable occurs in t.
func HasVars(t Type) bool {
	found := false
	walkVars(t, nil, func(int, bool) { found = true })
	return found
}

// varKinds maps each variable id in t to true if it is numeric.
func varKinds(t Type) map[int]bool {
	kinds := map[int]bool{}
	walkAll(t, func(id int, numeric bool) { kinds[id] = numeric })
	return kinds
}

func walkVars(t Type, bound map[int]bool, fn func(id int, numeric bool)) {
	switch t := t.(type) {
	case TVar:
		if !bound[t.ID] {
			fn(t.ID, false)
		}
	case TNumeric:
		if !bound[t.ID] {
			fn(t.ID, true)
		}
	case TList:
		walkVars(t.Elem, bound, fn)
	case TResult:
		walkVars(t.Ok, bound, fn)
		walkVars(t.Err, bound, fn)
	case TFunc:
		walkVars(t.Param, bound, fn)
		walkVars(t.Result, bound, fn)
	case TApp:
		for _, a := range t.Args {
			walkVars(a, bound, fn)
		}
	case TScheme:
		inner := make(map[int]bool, len(bound)+len(t.Vars))
		for id := range bound {
			inner[id] = true
		}
		for _, id := range t.Vars {
			inner[id] = true
		}
		walkVars(t.Body, inner, fn)
	}
}

func walkAll(t Type, fn func(id int, numeric bool)) {
	switch t := t.(type) {
	case TScheme:
		walkAll(t.Body, fn)
	default:
		walkVars(t, nil, fn)
	}
}
