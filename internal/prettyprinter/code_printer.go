// Package prettyprinter renders syntax trees back to source text.
package prettyprinter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[ast.BinaryOp]int{
	ast.OpOr:  1,
	ast.OpAnd: 2,
	ast.OpEq:  3,
	ast.OpNe:  3,
	ast.OpLt:  4,
	ast.OpGt:  4,
	ast.OpLe:  4,
	ast.OpGe:  4,
	ast.OpAdd: 7,
	ast.OpSub: 7,
	ast.OpMul: 8,
	ast.OpDiv: 8,
	ast.OpMod: 8,
}

const (
	precLowest = 0 // if, let, fn, match, sequences
	precCons   = 6 // right-associative
	precUnary  = 9
	precApp    = 10
	precAtom   = 11
)

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// Expression renders e on as few lines as its match arms allow.
func Expression(e ast.Expression) string {
	p := NewCodePrinter()
	p.printExpr(e, precLowest, false)
	return p.String()
}

// Pattern renders a match pattern.
func Pattern(pat ast.Pattern) string {
	p := NewCodePrinter()
	p.printPattern(pat, false)
	return p.String()
}

// Module renders the imports, declarations and main expression of m.
func Module(m *ast.Module) string {
	p := NewCodePrinter()
	p.PrintModule(m)
	return p.String()
}

func (p *CodePrinter) String() string {
	return p.buf.String()
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
}

func (p *CodePrinter) writeln() {
	p.buf.WriteByte('\n')
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

func (p *CodePrinter) PrintModule(m *ast.Module) {
	if m.Name != "" {
		p.write("module " + m.Name)
		p.writeln()
	}
	for _, imp := range m.Imports {
		p.write("import " + imp)
		p.writeln()
	}
	for _, d := range m.Decls {
		p.printDecl(d)
		p.writeln()
	}
	if m.Main != nil {
		p.printExpr(m.Main, precLowest, false)
		p.writeln()
	}
}

func (p *CodePrinter) printDecl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.FnDecl:
		p.write("fn " + d.Name)
		for _, param := range d.Params {
			if param.Annot != nil {
				p.write(" (" + param.Name + " : " + typesystem.RenderSignature(param.Annot) + ")")
			} else {
				p.write(" " + param.Name)
			}
		}
		if d.Return != nil {
			p.write(" : " + typesystem.RenderSignature(d.Return))
		}
		p.write(" = ")
		p.printExpr(d.Body, precLowest, false)
	case *ast.LetDecl:
		p.write("let " + d.Name + " = ")
		p.printExpr(d.Value, precLowest, false)
	case *ast.TypeDecl:
		p.write("type ")
		for _, param := range d.Params {
			p.write("'" + param + " ")
		}
		p.write(d.Name + " =")
		for i, c := range d.Ctors {
			if i > 0 {
				p.write(" |")
			}
			p.write(" " + c.Name)
			if c.Arg != nil {
				p.write(" of " + typesystem.RenderSignature(c.Arg))
			}
		}
	}
}

// printExpr prints an expression, adding parentheses only if needed
func (p *CodePrinter) printExpr(expr ast.Expression, parentPrec int, isRight bool) {
	if expr == nil {
		p.write("<???>")
		return
	}
	prec := precedenceOf(expr)
	needParens := prec < parentPrec
	if prec == parentPrec && prec != precAtom {
		// Binary operators associate left, cons associates right.
		needParens = isRight != (prec == precCons)
	}
	if needParens {
		p.write("(")
	}
	p.printBare(expr, prec)
	if needParens {
		p.write(")")
	}
}

func precedenceOf(expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.Binary:
		return operatorPrecedence[e.Op]
	case *ast.Cons:
		return precCons
	case *ast.Unary:
		return precUnary
	case *ast.App, *ast.Print, *ast.HostNew:
		return precApp
	case *ast.Constructor:
		if e.Arg != nil {
			return precApp
		}
	case *ast.If, *ast.Let, *ast.LetRec, *ast.Lambda, *ast.Match, *ast.Sequence:
		return precLowest
	}
	return precAtom
}

func (p *CodePrinter) printBare(expr ast.Expression, prec int) {
	switch e := expr.(type) {
	case *ast.IntLit:
		p.write(strconv.FormatInt(e.Value, 10))
	case *ast.FloatLit:
		p.write(formatFloat(e.Value))
	case *ast.BoolLit:
		p.write(strconv.FormatBool(e.Value))
	case *ast.StringLit:
		p.write(strconv.Quote(e.Value))
	case *ast.UnitLit:
		p.write("()")
	case *ast.StringInterp:
		p.printInterp(e)
	case *ast.Var:
		p.write(e.Name)
	case *ast.QualifiedVar:
		p.write(e.Module + "." + e.Name)
	case *ast.Unary:
		p.write(e.Op.String())
		if e.Op == ast.OpNot {
			p.write(" ")
		}
		p.printExpr(e.Operand, precUnary+1, false)
	case *ast.Binary:
		p.printExpr(e.Left, prec, false)
		p.write(" " + e.Op.String() + " ")
		p.printExpr(e.Right, prec, true)
	case *ast.Cons:
		p.printExpr(e.Head, prec, false)
		p.write(" :: ")
		p.printExpr(e.Tail, prec, true)
	case *ast.If:
		p.write("if ")
		p.printExpr(e.Cond, precLowest, false)
		p.write(" then ")
		p.printExpr(e.Then, precLowest, false)
		p.write(" else ")
		p.printExpr(e.Else, precLowest, false)
	case *ast.Let:
		p.write("let " + e.Name + " = ")
		p.printExpr(e.Value, precLowest, false)
		p.write(" in ")
		p.printExpr(e.Body, precLowest, false)
	case *ast.LetRec:
		p.write("let rec " + e.Name)
		p.printParams(e.Fn.Params)
		p.write(" = ")
		p.printExpr(e.Fn.Body, precLowest, false)
		p.write(" in ")
		p.printExpr(e.Body, precLowest, false)
	case *ast.Lambda:
		p.write("fn")
		p.printParams(e.Params)
		p.write(" = ")
		p.printExpr(e.Body, precLowest, false)
	case *ast.App:
		p.printExpr(e.Callee, precApp, false)
		for _, a := range e.Args {
			p.write(" ")
			p.printExpr(a, precAtom, true)
		}
	case *ast.Sequence:
		for i, x := range e.Exprs {
			if i > 0 {
				p.write("; ")
			}
			p.printExpr(x, precLowest+1, false)
		}
	case *ast.Print:
		p.write("print ")
		p.printExpr(e.Value, precAtom, true)
	case *ast.ListLit:
		p.write("[")
		for i, x := range e.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(x, precLowest, false)
		}
		p.write("]")
	case *ast.Match:
		p.printMatch(e)
	case *ast.Constructor:
		p.write(e.Name)
		if e.Arg != nil {
			p.write(" ")
			p.printExpr(e.Arg, precAtom, true)
		}
	case *ast.HostCall:
		p.write(e.Owner + "." + e.Member)
		p.printArgs(e.Args)
	case *ast.HostInstanceCall:
		p.printExpr(e.Receiver, precAtom, false)
		p.write("." + e.Member)
		p.printArgs(e.Args)
	case *ast.HostField:
		p.write(e.Owner + "." + e.Name)
	case *ast.HostNew:
		p.write("new " + e.Owner)
	default:
		p.write("<???>")
	}
}

func (p *CodePrinter) printParams(params []string) {
	if len(params) == 0 {
		p.write(" ()")
	}
	for _, name := range params {
		p.write(" " + name)
	}
}

func (p *CodePrinter) printArgs(args []ast.Expression) {
	p.write("(")
	for i, a := range args {
		if i > 0 {
			p.write(", ")
		}
		p.printExpr(a, precLowest, false)
	}
	p.write(")")
}

func (p *CodePrinter) printInterp(e *ast.StringInterp) {
	p.write("\"")
	for _, part := range e.Parts {
		if part.Expr != nil {
			p.write("${")
			p.printExpr(part.Expr, precLowest, false)
			p.write("}")
			continue
		}
		quoted := strconv.Quote(part.Text)
		quoted = strings.ReplaceAll(quoted[1:len(quoted)-1], "${", "\\${")
		p.write(quoted)
	}
	p.write("\"")
}

// printMatch puts each arm on its own line, one level deeper than the
// match keyword.
func (p *CodePrinter) printMatch(e *ast.Match) {
	p.write("match ")
	p.printExpr(e.Scrutinee, precLowest, false)
	p.write(" with")
	p.indent++
	for _, c := range e.Cases {
		p.writeln()
		p.write("| ")
		p.printPattern(c.Pattern, false)
		p.write(" -> ")
		p.printExpr(c.Body, precLowest+1, false)
	}
	p.indent--
}

func (p *CodePrinter) printPattern(pat ast.Pattern, nested bool) {
	switch pt := pat.(type) {
	case *ast.WildcardPattern:
		p.write("_")
	case *ast.VarPattern:
		p.write(pt.Name)
	case *ast.IntPattern:
		p.write(strconv.FormatInt(pt.Value, 10))
	case *ast.BoolPattern:
		p.write(strconv.FormatBool(pt.Value))
	case *ast.StringPattern:
		p.write(strconv.Quote(pt.Value))
	case *ast.NilPattern:
		p.write("[]")
	case *ast.ConsPattern:
		if nested {
			p.write("(")
		}
		p.printPattern(pt.Head, true)
		p.write(" :: ")
		p.printPattern(pt.Tail, false)
		if nested {
			p.write(")")
		}
	case *ast.ConstructorPattern:
		if pt.Arg == nil {
			p.write(pt.Name)
			return
		}
		if nested {
			p.write("(")
		}
		p.write(pt.Name + " ")
		p.printPattern(pt.Arg, true)
		if nested {
			p.write(")")
		}
	default:
		p.write("<???>")
	}
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}
