package ast

// Shorthand constructors for building trees in code. Every call returns a
// fresh node.

func Int(v int64) *IntLit       { return &IntLit{Value: v} }
func Float(v float64) *FloatLit { return &FloatLit{Value: v} }
func Bool(v bool) *BoolLit      { return &BoolLit{Value: v} }
func Str(v string) *StringLit   { return &StringLit{Value: v} }
func Unit() *UnitLit            { return &UnitLit{} }
func Ref(name string) *Var      { return &Var{Name: name} }
func List(elems ...Expression) *ListLit {
	return &ListLit{Elems: elems}
}

func Bin(op BinaryOp, l, r Expression) *Binary {
	return &Binary{Op: op, Left: l, Right: r}
}

func Call(callee Expression, args ...Expression) *App {
	return &App{Callee: callee, Args: args}
}

func CallName(name string, args ...Expression) *App {
	return &App{Callee: Ref(name), Args: args}
}

func Fn(params []string, body Expression) *Lambda {
	return &Lambda{Params: params, Body: body}
}

func LetIn(name string, value, body Expression) *Let {
	return &Let{Name: name, Value: value, Body: body}
}

func LetRecIn(name string, params []string, fnBody, body Expression) *LetRec {
	return &LetRec{Name: name, Fn: Fn(params, fnBody), Body: body}
}

func IfThen(cond, then, els Expression) *If {
	return &If{Cond: cond, Then: then, Else: els}
}

func MatchOn(scrutinee Expression, cases ...MatchCase) *Match {
	return &Match{Scrutinee: scrutinee, Cases: cases}
}

func Case(p Pattern, body Expression) MatchCase {
	return MatchCase{Pattern: p, Body: body}
}

func PWild() *WildcardPattern      { return &WildcardPattern{} }
func PVar(name string) *VarPattern { return &VarPattern{Name: name} }
func PInt(v int64) *IntPattern     { return &IntPattern{Value: v} }
func PNil() *NilPattern            { return &NilPattern{} }
func PCons(h, t Pattern) *ConsPattern {
	return &ConsPattern{Head: h, Tail: t}
}
func PCtor(name string, arg Pattern) *ConstructorPattern {
	return &ConstructorPattern{Name: name, Arg: arg}
}

// Func declares a top-level function with unannotated parameters.
func Func(name string, params []string, body Expression) *FnDecl {
	ps := make([]Param, len(params))
	for i, p := range params {
		ps[i] = Param{Name: p}
	}
	return &FnDecl{Name: name, Params: ps, Body: body}
}
