package ast

import "github.com/funvibe/miniml/internal/token"

type IntLit struct {
	Pos   token.Position
	Value int64
}

func (e *IntLit) GetPos() token.Position { return e.Pos }
func (e *IntLit) expressionNode()        {}

type FloatLit struct {
	Pos   token.Position
	Value float64
}

func (e *FloatLit) GetPos() token.Position { return e.Pos }
func (e *FloatLit) expressionNode()        {}

type BoolLit struct {
	Pos   token.Position
	Value bool
}

func (e *BoolLit) GetPos() token.Position { return e.Pos }
func (e *BoolLit) expressionNode()        {}

type StringLit struct {
	Pos   token.Position
	Value string
}

func (e *StringLit) GetPos() token.Position { return e.Pos }
func (e *StringLit) expressionNode()        {}

// UnitLit is ().
type UnitLit struct {
	Pos token.Position
}

func (e *UnitLit) GetPos() token.Position { return e.Pos }
func (e *UnitLit) expressionNode()        {}

// InterpPart is either literal text or an embedded expression.
type InterpPart struct {
	Text string
	Expr Expression
}

// StringInterp is "text ${expr} text".
type StringInterp struct {
	Pos   token.Position
	Parts []InterpPart
}

func (e *StringInterp) GetPos() token.Position { return e.Pos }
func (e *StringInterp) expressionNode()        {}

type Var struct {
	Pos  token.Position
	Name string
}

func (e *Var) GetPos() token.Position { return e.Pos }
func (e *Var) expressionNode()        {}

// QualifiedVar refers to an export of an imported module: Module.Name.
type QualifiedVar struct {
	Pos    token.Position
	Module string
	Name   string
}

func (e *QualifiedVar) GetPos() token.Position { return e.Pos }
func (e *QualifiedVar) expressionNode()        {}

type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "not"
}

type Unary struct {
	Pos     token.Position
	Op      UnaryOp
	Operand Expression
}

func (e *Unary) GetPos() token.Position { return e.Pos }
func (e *Unary) expressionNode()        {}

type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
)

var binaryOpText = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
	OpAnd: "&&", OpOr: "||",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

func (op BinaryOp) IsArithmetic() bool { return op <= OpMod }
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpGe }
func (op BinaryOp) IsLogical() bool    { return op == OpAnd || op == OpOr }

type Binary struct {
	Pos   token.Position
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (e *Binary) GetPos() token.Position { return e.Pos }
func (e *Binary) expressionNode()        {}

type If struct {
	Pos  token.Position
	Cond Expression
	Then Expression
	Else Expression
}

func (e *If) GetPos() token.Position { return e.Pos }
func (e *If) expressionNode()        {}

// Let is let name = value in body.
type Let struct {
	Pos   token.Position
	Name  string
	Value Expression
	Body  Expression
}

func (e *Let) GetPos() token.Position { return e.Pos }
func (e *Let) expressionNode()        {}

// LetRec is let rec name params = fnBody in body. The function itself is
// held as a Lambda so it has its own node in the type map.
type LetRec struct {
	Pos  token.Position
	Name string
	Fn   *Lambda
	Body Expression
}

func (e *LetRec) GetPos() token.Position { return e.Pos }
func (e *LetRec) expressionNode()        {}

// Lambda is fn p1 p2 ... = body.
type Lambda struct {
	Pos    token.Position
	Params []string
	Body   Expression
}

func (e *Lambda) GetPos() token.Position { return e.Pos }
func (e *Lambda) expressionNode()        {}

// App applies Callee to Args, one curried argument at a time.
type App struct {
	Pos    token.Position
	Callee Expression
	Args   []Expression
}

func (e *App) GetPos() token.Position { return e.Pos }
func (e *App) expressionNode()        {}

// Sequence evaluates Exprs in order and yields the last value.
type Sequence struct {
	Pos   token.Position
	Exprs []Expression
}

func (e *Sequence) GetPos() token.Position { return e.Pos }
func (e *Sequence) expressionNode()        {}

type Print struct {
	Pos   token.Position
	Value Expression
}

func (e *Print) GetPos() token.Position { return e.Pos }
func (e *Print) expressionNode()        {}

type ListLit struct {
	Pos   token.Position
	Elems []Expression
}

func (e *ListLit) GetPos() token.Position { return e.Pos }
func (e *ListLit) expressionNode()        {}

// Cons is head :: tail.
type Cons struct {
	Pos  token.Position
	Head Expression
	Tail Expression
}

func (e *Cons) GetPos() token.Position { return e.Pos }
func (e *Cons) expressionNode()        {}

type MatchCase struct {
	Pattern Pattern
	Body    Expression
}

type Match struct {
	Pos       token.Position
	Scrutinee Expression
	Cases     []MatchCase
}

func (e *Match) GetPos() token.Position { return e.Pos }
func (e *Match) expressionNode()        {}

// Constructor applies a sum-type constructor to its optional argument.
type Constructor struct {
	Pos  token.Position
	Name string
	Arg  Expression
}

func (e *Constructor) GetPos() token.Position { return e.Pos }
func (e *Constructor) expressionNode()        {}

// HostCall calls a package-level function of the host: Owner.Member(args).
type HostCall struct {
	Pos    token.Position
	Owner  string
	Member string
	Args   []Expression
}

func (e *HostCall) GetPos() token.Position { return e.Pos }
func (e *HostCall) expressionNode()        {}

// HostInstanceCall calls a method on a host value: receiver.Member(args).
type HostInstanceCall struct {
	Pos      token.Position
	Receiver Expression
	Member   string
	Args     []Expression
}

func (e *HostInstanceCall) GetPos() token.Position { return e.Pos }
func (e *HostInstanceCall) expressionNode()        {}

// HostField reads a package-level value of the host: Owner.Name.
type HostField struct {
	Pos   token.Position
	Owner string
	Name  string
}

func (e *HostField) GetPos() token.Position { return e.Pos }
func (e *HostField) expressionNode()        {}

// HostNew allocates a zero host value: new Owner.
type HostNew struct {
	Pos   token.Position
	Owner string
}

func (e *HostNew) GetPos() token.Position { return e.Pos }
func (e *HostNew) expressionNode()        {}
