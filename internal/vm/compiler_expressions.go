package vm

import (
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// compileExpr leaves the value of expr on the stack in the representation of
// its type. Unit values are the unit reference.
func (m *methodCompiler) compileExpr(expr ast.Expression) error {
	if pos := expr.GetPos(); pos.Line > 0 {
		m.line = pos.Line
	}
	switch n := expr.(type) {
	case *ast.IntLit:
		return m.emitConst(OP_ICONST, Constant{Kind: ConstInt, Int: n.Value})
	case *ast.FloatLit:
		return m.emitConst(OP_DCONST, Constant{Kind: ConstDouble, Double: n.Value})
	case *ast.BoolLit:
		if n.Value {
			m.emitU8(OP_ZCONST, 1)
		} else {
			m.emitU8(OP_ZCONST, 0)
		}
		return nil
	case *ast.StringLit:
		return m.emitConst(OP_SCONST, Constant{Kind: ConstString, Str: n.Value})
	case *ast.UnitLit:
		m.emit(OP_UNIT)
		return nil
	case *ast.StringInterp:
		return m.compileInterpolation(n)
	case *ast.Var:
		return m.compileVar(n, n.Name)
	case *ast.QualifiedVar:
		return m.compileQualified(n)
	case *ast.Unary:
		return m.compileUnary(n)
	case *ast.Binary:
		return m.compileBinary(n)
	case *ast.If:
		return m.compileIf(n)
	case *ast.Let:
		return m.compileLet(n)
	case *ast.LetRec:
		return m.compileLetRec(n)
	case *ast.Lambda:
		return m.compileLambda(n)
	case *ast.App:
		return m.compileApp(n)
	case *ast.Sequence:
		return m.compileSequence(n)
	case *ast.Print:
		if err := m.compilePrint(n.Value); err != nil {
			return err
		}
		m.emit(OP_UNIT)
		return nil
	case *ast.ListLit:
		return m.compileList(n)
	case *ast.Cons:
		if err := m.compileBoxed(n.Head); err != nil {
			return err
		}
		if err := m.compileExpr(n.Tail); err != nil {
			return err
		}
		m.emit(OP_LIST_CONS)
		return nil
	case *ast.Match:
		return m.compileMatch(n)
	case *ast.Constructor:
		return m.compileConstructor(n.Name, n.Arg)
	case *ast.HostCall:
		return m.compileHost(n, nil, n.Args)
	case *ast.HostInstanceCall:
		return m.compileHost(n, n.Receiver, n.Args)
	case *ast.HostField:
		return m.compileHost(n, nil, nil)
	case *ast.HostNew:
		return m.compileHost(n, nil, nil)
	}
	return diagnostics.Internalf("cannot compile %T", expr)
}

// compileAs compiles expr and converts it to r.
func (m *methodCompiler) compileAs(expr ast.Expression, r Repr) error {
	from, err := m.reprOf(expr)
	if err != nil {
		return err
	}
	if err := m.compileExpr(expr); err != nil {
		return err
	}
	return m.coerce(from, r)
}

func (m *methodCompiler) compileBoxed(expr ast.Expression) error {
	return m.compileAs(expr, ReprRef)
}

func (m *methodCompiler) compileInterpolation(n *ast.StringInterp) error {
	pending := 0
	flush := func() {
		if pending > 1 {
			m.emitU8(OP_STRCAT, pending)
			pending = 1
		}
	}
	for _, part := range n.Parts {
		if part.Expr == nil {
			if part.Text == "" {
				continue
			}
			if err := m.emitConst(OP_SCONST, Constant{Kind: ConstString, Str: part.Text}); err != nil {
				return err
			}
		} else {
			if err := m.compileToString(part.Expr); err != nil {
				return err
			}
		}
		pending++
		if pending == 0xff {
			flush()
		}
	}
	if pending == 0 {
		return m.emitConst(OP_SCONST, Constant{Kind: ConstString, Str: ""})
	}
	flush()
	return nil
}

func (m *methodCompiler) compileToString(expr ast.Expression) error {
	r, err := m.reprOf(expr)
	if err != nil {
		return err
	}
	if err := m.compileExpr(expr); err != nil {
		return err
	}
	switch r {
	case ReprInt:
		m.emit(OP_TOSTR_I)
	case ReprBool:
		m.emit(OP_TOSTR_Z)
	case ReprDouble:
		m.emit(OP_TOSTR_D)
	default:
		if t, _ := m.typeOf(expr); t != typesystem.String {
			m.emit(OP_TOSTR_A)
		}
	}
	return nil
}

func (m *methodCompiler) compilePrint(expr ast.Expression) error {
	r, err := m.reprOf(expr)
	if err != nil {
		return err
	}
	if err := m.compileExpr(expr); err != nil {
		return err
	}
	switch r {
	case ReprInt:
		m.emit(OP_PRINT_I)
	case ReprBool:
		m.emit(OP_PRINT_Z)
	case ReprDouble:
		m.emit(OP_PRINT_D)
	default:
		m.emit(OP_PRINT_A)
	}
	return nil
}

func (m *methodCompiler) compileUnary(n *ast.Unary) error {
	r, err := m.reprOf(n)
	if err != nil {
		return err
	}
	if err := m.compileExpr(n.Operand); err != nil {
		return err
	}
	if n.Op == ast.OpNot {
		m.emitBoolFromJump(OP_IFEQ)
		return nil
	}
	if r == ReprDouble {
		m.emit(OP_DNEG)
	} else {
		m.emit(OP_INEG)
	}
	return nil
}

var intArith = map[ast.BinaryOp]Opcode{
	ast.OpAdd: OP_IADD, ast.OpSub: OP_ISUB, ast.OpMul: OP_IMUL, ast.OpDiv: OP_IDIV, ast.OpMod: OP_IREM,
}

var doubleArith = map[ast.BinaryOp]Opcode{
	ast.OpAdd: OP_DADD, ast.OpSub: OP_DSUB, ast.OpMul: OP_DMUL, ast.OpDiv: OP_DDIV, ast.OpMod: OP_DREM,
}

// Jumps taken when a comparison holds, for two Ints and for a DCMP or
// strings.Compare result against zero.
var intCompare = map[ast.BinaryOp]Opcode{
	ast.OpEq: OP_IF_ICMPEQ, ast.OpNe: OP_IF_ICMPNE, ast.OpLt: OP_IF_ICMPLT,
	ast.OpGt: OP_IF_ICMPGT, ast.OpLe: OP_IF_ICMPLE, ast.OpGe: OP_IF_ICMPGE,
}

var zeroCompare = map[ast.BinaryOp]Opcode{
	ast.OpEq: OP_IFEQ, ast.OpNe: OP_IFNE, ast.OpLt: OP_IFLT,
	ast.OpGt: OP_IFGT, ast.OpLe: OP_IFLE, ast.OpGe: OP_IFGE,
}

func (m *methodCompiler) compileBinary(n *ast.Binary) error {
	switch {
	case n.Op.IsArithmetic():
		return m.compileArithmetic(n)
	case n.Op.IsComparison():
		return m.compileComparison(n)
	}
	return m.compileLogical(n)
}

// compileArithmetic widens an Int operand with I2D when the result is Double.
func (m *methodCompiler) compileArithmetic(n *ast.Binary) error {
	r, err := m.reprOf(n)
	if err != nil {
		return err
	}
	for _, operand := range []ast.Expression{n.Left, n.Right} {
		or, err := m.reprOf(operand)
		if err != nil {
			return err
		}
		if err := m.compileExpr(operand); err != nil {
			return err
		}
		if r == ReprDouble && or == ReprInt {
			m.emit(OP_I2D)
		}
	}
	if r == ReprDouble {
		m.emit(doubleArith[n.Op])
	} else {
		m.emit(intArith[n.Op])
	}
	return nil
}

func (m *methodCompiler) compileComparison(n *ast.Binary) error {
	t, err := m.typeOf(n.Left)
	if err != nil {
		return err
	}
	if err := m.compileExpr(n.Left); err != nil {
		return err
	}
	if err := m.compileExpr(n.Right); err != nil {
		return err
	}
	switch t.(type) {
	case typesystem.TInt, typesystem.TBool:
		m.emitBoolFromJump(intCompare[n.Op])
		return nil
	case typesystem.TDouble:
		m.emit(OP_DCMP)
		m.emitBoolFromJump(zeroCompare[n.Op])
		return nil
	case typesystem.TString:
		if err := m.emitConst(OP_INVOKEHOST, stringCompare); err != nil {
			return err
		}
		m.emitBoolFromJump(zeroCompare[n.Op])
		return nil
	}
	switch n.Op {
	case ast.OpEq:
		m.emit(OP_OBJ_EQ)
		return nil
	case ast.OpNe:
		m.emit(OP_OBJ_EQ)
		m.emitBoolFromJump(OP_IFEQ)
		return nil
	}
	return diagnostics.NewError(diagnostics.ErrC001, n.Pos, "%s is not defined on %s", n.Op, t)
}

var stringCompare = Constant{Kind: ConstHost, Owner: "strings", Name: "Compare", Descriptor: "(Lstring;Lstring;)I", Int: hostFunc}

// emitBoolFromJump pushes 1 if the conditional jump op is taken, else 0.
func (m *methodCompiler) emitBoolFromJump(op Opcode) {
	taken := m.emitJump(op)
	m.emitU8(OP_ZCONST, 0)
	end := m.emitJump(OP_GOTO)
	m.patchJump(taken)
	m.emitU8(OP_ZCONST, 1)
	m.patchJump(end)
}

// compileLogical short-circuits: the right operand runs only when the left
// one does not decide the result.
func (m *methodCompiler) compileLogical(n *ast.Binary) error {
	if err := m.compileExpr(n.Left); err != nil {
		return err
	}
	skip, decided := OP_IFEQ, 0
	if n.Op == ast.OpOr {
		skip, decided = OP_IFNE, 1
	}
	short := m.emitJump(skip)
	if err := m.compileExpr(n.Right); err != nil {
		return err
	}
	end := m.emitJump(OP_GOTO)
	m.patchJump(short)
	m.emitU8(OP_ZCONST, decided)
	m.patchJump(end)
	return nil
}

func (m *methodCompiler) compileIf(n *ast.If) error {
	r, err := m.reprOf(n)
	if err != nil {
		return err
	}
	if err := m.compileExpr(n.Cond); err != nil {
		return err
	}
	elseJump := m.emitJump(OP_IFEQ)
	if err := m.compileAs(n.Then, r); err != nil {
		return err
	}
	end := m.emitJump(OP_GOTO)
	m.patchJump(elseJump)
	if err := m.compileAs(n.Else, r); err != nil {
		return err
	}
	m.patchJump(end)
	return nil
}

func (m *methodCompiler) compileLet(n *ast.Let) error {
	r, err := m.reprOf(n.Value)
	if err != nil {
		return err
	}
	if err := m.compileExpr(n.Value); err != nil {
		return err
	}
	cp := m.locals.Checkpoint()
	m.store(m.locals.Define(n.Name, r))
	if err := m.compileExpr(n.Body); err != nil {
		return err
	}
	m.locals.Rollback(cp)
	return nil
}

func (m *methodCompiler) compileSequence(n *ast.Sequence) error {
	if len(n.Exprs) == 0 {
		m.emit(OP_UNIT)
		return nil
	}
	for i, e := range n.Exprs {
		if err := m.compileExpr(e); err != nil {
			return err
		}
		if i < len(n.Exprs)-1 {
			r, err := m.reprOf(e)
			if err != nil {
				return err
			}
			m.pop(r)
		}
	}
	return nil
}

func (m *methodCompiler) compileList(n *ast.ListLit) error {
	if len(n.Elems) > 0xffff {
		return diagnostics.Internalf("list literal with %d elements", len(n.Elems))
	}
	for _, e := range n.Elems {
		if err := m.compileBoxed(e); err != nil {
			return err
		}
	}
	m.emitU16(OP_NEWLIST, len(n.Elems))
	return nil
}
