package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/typesystem"
)

func runModule(t *testing.T, mod *ast.Module, opts ...VMOption) (string, any, error) {
	t.Helper()
	arts := mustCompile(t, mod)
	var out bytes.Buffer
	machine := New(opts...)
	machine.SetOutput(&out)
	if err := machine.Load(arts); err != nil {
		t.Fatalf("load error: %v", err)
	}
	v, err := machine.Run(context.Background(), mod.Name)
	return out.String(), v, err
}

func mustRun(t *testing.T, mod *ast.Module) (string, any) {
	t.Helper()
	out, v, err := runModule(t, mod)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out, v
}

func requireFault(t *testing.T, err error, kind FaultKind) *Fault {
	t.Helper()
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected %s fault, got %v", kind, err)
	}
	if f.Kind != kind {
		t.Fatalf("expected %s fault, got %s", kind, f)
	}
	return f
}

func seq(exprs ...ast.Expression) *ast.Sequence {
	return &ast.Sequence{Exprs: exprs}
}

func printOf(e ast.Expression) *ast.Print {
	return &ast.Print{Value: e}
}

func TestPrintFormatting(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expression
		want string
	}{
		{"int", ast.Int(42), "42\n"},
		{"double", ast.Float(5), "5.0\n"},
		{"fraction", ast.Float(2.5), "2.5\n"},
		{"mixed arithmetic", ast.Bin(ast.OpAdd, ast.Int(2), ast.Float(3)), "5.0\n"},
		{"int division", ast.Bin(ast.OpDiv, ast.Int(7), ast.Int(2)), "3\n"},
		{"bool", ast.Bin(ast.OpLt, ast.Int(1), ast.Int(2)), "true\n"},
		{"string", ast.Str("hi"), "hi\n"},
		{"string compare", ast.Bin(ast.OpLt, ast.Str("a"), ast.Str("b")), "true\n"},
		{"unit", ast.Unit(), "()\n"},
		{"list", ast.List(ast.Int(1), ast.Int(2), ast.Int(3)), "[1, 2, 3]\n"},
		{"empty list", ast.List(), "[]\n"},
		{"cons", &ast.Cons{Head: ast.Float(1), Tail: ast.List(ast.Float(2))}, "[1.0, 2.0]\n"},
		{"not", &ast.Unary{Op: ast.OpNot, Operand: ast.Bool(false)}, "true\n"},
		{"negate double", &ast.Unary{Op: ast.OpNeg, Operand: ast.Float(1.5)}, "-1.5\n"},
		{"short circuit", ast.Bin(ast.OpOr, ast.Bool(true), ast.Bin(ast.OpEq, ast.Bin(ast.OpDiv, ast.Int(1), ast.Int(0)), ast.Int(0))), "true\n"},
		{"if", ast.IfThen(ast.Bool(false), ast.Int(1), ast.Int(2)), "2\n"},
		{"list equality", ast.Bin(ast.OpEq, ast.List(ast.Int(1)), ast.List(ast.Int(1))), "true\n"},
		{"interpolation", &ast.StringInterp{Parts: []ast.InterpPart{
			{Text: "n="}, {Expr: ast.Int(3)}, {Text: " d="}, {Expr: ast.Float(0.5)}, {Text: " l="}, {Expr: ast.List(ast.Bool(true))},
		}}, "n=3 d=0.5 l=[true]\n"},
		{"print builtin", ast.CallName("print", ast.Str("x")), "x\n()\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := mustRun(t, &ast.Module{Main: printOf(tt.expr)})
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}
}

func TestSpecializationsRun(t *testing.T) {
	main := seq(
		printOf(ast.CallName("add", ast.Int(2), ast.Int(3))),
		printOf(ast.CallName("add", ast.Float(2), ast.Float(3))),
	)
	out, _ := mustRun(t, &ast.Module{Decls: []ast.Decl{addDecl()}, Main: main})
	if out != "5\n5.0\n" {
		t.Errorf("got %q", out)
	}
}

func TestMainResultIsBoxed(t *testing.T) {
	_, v := mustRun(t, &ast.Module{Main: ast.Bin(ast.OpMul, ast.Int(6), ast.Int(7))})
	if v != int64(42) {
		t.Errorf("got %#v, want 42", v)
	}
	_, v = mustRun(t, &ast.Module{Main: ast.Float(1.25)})
	if v != 1.25 {
		t.Errorf("got %#v, want 1.25", v)
	}
	_, v = mustRun(t, &ast.Module{Main: printOf(ast.Int(1))})
	if v != Unit {
		t.Errorf("got %#v, want unit", v)
	}
}

func sumDecl() *ast.FnDecl {
	// fn sum l = match l with [] -> 0 | h :: t -> h + sum t
	return ast.Func("sum", []string{"l"}, ast.MatchOn(ast.Ref("l"),
		ast.Case(ast.PNil(), ast.Int(0)),
		ast.Case(ast.PCons(ast.PVar("h"), ast.PVar("t")), ast.Bin(ast.OpAdd, ast.Ref("h"), ast.CallName("sum", ast.Ref("t")))),
	))
}

func TestRecursiveFunctionOverList(t *testing.T) {
	out, _ := mustRun(t, &ast.Module{
		Decls: []ast.Decl{sumDecl()},
		Main:  printOf(ast.CallName("sum", ast.List(ast.Int(1), ast.Int(2), ast.Int(3)))),
	})
	if out != "6\n" {
		t.Errorf("got %q", out)
	}
}

func TestFirstMatchingCaseWins(t *testing.T) {
	classify := ast.Func("classify", []string{"n"}, ast.MatchOn(ast.Ref("n"),
		ast.Case(ast.PInt(0), ast.Str("zero")),
		ast.Case(ast.PVar("x"), ast.Str("other")),
		ast.Case(ast.PInt(1), ast.Str("one")),
	))
	out, _ := mustRun(t, &ast.Module{
		Decls: []ast.Decl{classify},
		Main: seq(
			printOf(ast.CallName("classify", ast.Int(0))),
			printOf(ast.CallName("classify", ast.Int(1))),
		),
	})
	if out != "zero\nother\n" {
		t.Errorf("got %q", out)
	}
}

func TestNestedPatterns(t *testing.T) {
	// match [[1, 2], [3]] with (a :: _) :: (b :: []) :: [] -> a + b | _ -> 0
	scrutinee := ast.List(ast.List(ast.Int(1), ast.Int(2)), ast.List(ast.Int(3)))
	p := ast.PCons(ast.PCons(ast.PVar("a"), ast.PWild()), ast.PCons(ast.PCons(ast.PVar("b"), ast.PNil()), ast.PNil()))
	main := printOf(ast.MatchOn(scrutinee,
		ast.Case(p, ast.Bin(ast.OpAdd, ast.Ref("a"), ast.Ref("b"))),
		ast.Case(ast.PWild(), ast.Int(0)),
	))
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "4\n" {
		t.Errorf("got %q", out)
	}
}

func TestStringAndBoolPatterns(t *testing.T) {
	main := seq(
		printOf(ast.MatchOn(ast.Str("b"),
			ast.Case(&ast.StringPattern{Value: "a"}, ast.Int(1)),
			ast.Case(&ast.StringPattern{Value: "b"}, ast.Int(2)),
			ast.Case(ast.PWild(), ast.Int(3)),
		)),
		printOf(ast.MatchOn(ast.Bool(false),
			ast.Case(&ast.BoolPattern{Value: true}, ast.Str("yes")),
			ast.Case(&ast.BoolPattern{Value: false}, ast.Str("no")),
		)),
	)
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "2\nno\n" {
		t.Errorf("got %q", out)
	}
}

func TestNonExhaustiveMatchFaults(t *testing.T) {
	main := ast.MatchOn(ast.Int(3), ast.Case(ast.PInt(1), ast.Str("one")))
	_, _, err := runModule(t, &ast.Module{Main: main})
	f := requireFault(t, err, FaultNonExhaustive)
	if f.Method != "Main.main" {
		t.Errorf("fault located in %q", f.Method)
	}
}

func TestDivisionByZeroFaults(t *testing.T) {
	_, _, err := runModule(t, &ast.Module{Main: ast.Bin(ast.OpMod, ast.Int(1), ast.Int(0))})
	requireFault(t, err, FaultDivideByZero)
}

func TestRunawayRecursionFaults(t *testing.T) {
	loop := ast.Func("loop", []string{"x"}, ast.CallName("loop", ast.Ref("x")))
	mod := &ast.Module{Decls: []ast.Decl{loop}, Main: ast.CallName("loop", ast.Int(1))}
	_, _, err := runModule(t, mod, WithMaxFrames(64))
	requireFault(t, err, FaultStackDepth)
}

func TestClosuresAndPartialApplication(t *testing.T) {
	add3 := ast.Fn([]string{"x", "y", "z"}, ast.Bin(ast.OpAdd, ast.Bin(ast.OpAdd, ast.Ref("x"), ast.Ref("y")), ast.Ref("z")))
	main := seq(
		// let k = 10 in (fn x = x + k) 5
		printOf(ast.LetIn("k", ast.Int(10),
			ast.Call(ast.Fn([]string{"x"}, ast.Bin(ast.OpAdd, ast.Ref("x"), ast.Ref("k"))), ast.Int(5)))),
		// let f = add3 1 in f 2 3
		printOf(ast.LetIn("add3", add3,
			ast.LetIn("f", ast.CallName("add3", ast.Int(1)), ast.CallName("f", ast.Int(2), ast.Int(3))))),
		// partial application of a top-level function
		printOf(ast.LetIn("inc", ast.CallName("add", ast.Float(1)), ast.CallName("inc", ast.Float(2)))),
		// a zero-parameter lambda takes unit
		printOf(ast.Call(ast.Fn(nil, ast.Str("thunk")), ast.Unit())),
	)
	out, _ := mustRun(t, &ast.Module{Decls: []ast.Decl{addDecl()}, Main: main})
	if out != "15\n6\n3.0\nthunk\n" {
		t.Errorf("got %q", out)
	}
}

func TestLetRec(t *testing.T) {
	// let rec fact = fn n = if n == 0 then 1 else n * fact (n - 1) in fact 10
	body := ast.IfThen(ast.Bin(ast.OpEq, ast.Ref("n"), ast.Int(0)),
		ast.Int(1),
		ast.Bin(ast.OpMul, ast.Ref("n"), ast.CallName("fact", ast.Bin(ast.OpSub, ast.Ref("n"), ast.Int(1)))))
	main := printOf(ast.LetRecIn("fact", []string{"n"}, body, ast.CallName("fact", ast.Int(10))))
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "3628800\n" {
		t.Errorf("got %q", out)
	}
}

func TestLetRecWithCaptureAndEscapingSelf(t *testing.T) {
	// let step = 2 in let rec count = fn n = if n <= 0 then [] else n :: count (n - step) in count 7
	body := ast.IfThen(ast.Bin(ast.OpLe, ast.Ref("n"), ast.Int(0)),
		ast.List(),
		&ast.Cons{Head: ast.Ref("n"), Tail: ast.CallName("count", ast.Bin(ast.OpSub, ast.Ref("n"), ast.Ref("step")))})
	main := printOf(ast.LetIn("step", ast.Int(2),
		ast.LetRecIn("count", []string{"n"}, body, ast.CallName("count", ast.Int(7)))))
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "[7, 5, 3, 1]\n" {
		t.Errorf("got %q", out)
	}
}

func TestConstructorsAndResult(t *testing.T) {
	area := ast.Func("area", []string{"s"}, ast.MatchOn(ast.Ref("s"),
		ast.Case(ast.PCtor("Circle", ast.PVar("r")), ast.Bin(ast.OpMul, ast.Ref("r"), ast.Ref("r"))),
		ast.Case(ast.PCtor("Square", ast.PVar("w")), ast.Bin(ast.OpMul, ast.Ref("w"), ast.Ref("w"))),
		ast.Case(ast.PCtor("Dot", nil), ast.Float(0)),
	))
	main := seq(
		printOf(ast.CallName("area", &ast.Constructor{Name: "Circle", Arg: ast.Float(2)})),
		printOf(ast.CallName("area", ast.Ref("Dot"))),
		printOf(&ast.Constructor{Name: "Square", Arg: ast.Float(1.5)}),
		printOf(&ast.Constructor{Name: "Ok", Arg: ast.Int(1)}),
		printOf(ast.MatchOn(&ast.Constructor{Name: "Error", Arg: ast.Str("bad")},
			ast.Case(ast.PCtor("Ok", ast.PVar("v")), ast.Ref("v")),
			ast.Case(ast.PCtor("Error", ast.PVar("e")), ast.Str("failed")),
		)),
		// a constructor used as a function value
		printOf(ast.LetIn("mk", ast.Ref("Circle"), ast.CallName("area", ast.CallName("mk", ast.Float(3))))),
	)
	out, _ := mustRun(t, &ast.Module{Decls: []ast.Decl{shapeDecl(), area}, Main: main})
	want := "4.0\n0.0\nSquare(1.5)\nOk(1)\nfailed\n9.0\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestTopLevelValues(t *testing.T) {
	answer := &ast.LetDecl{Name: "answer", Value: ast.Bin(ast.OpAdd, ast.Int(40), ast.Int(2))}
	ratio := &ast.LetDecl{Name: "ratio", Value: ast.Bin(ast.OpDiv, ast.Ref("answer"), ast.Float(4))}
	mod := &ast.Module{Decls: []ast.Decl{answer, ratio}, Main: printOf(ast.Ref("ratio"))}
	out, _ := mustRun(t, mod)
	if out != "10.5\n" {
		t.Errorf("got %q", out)
	}

	arts := mustCompile(t, &ast.Module{Decls: []ast.Decl{
		&ast.LetDecl{Name: "answer", Value: ast.Int(42)},
	}})
	machine := New()
	if err := machine.Load(arts); err != nil {
		t.Fatal(err)
	}
	v, err := machine.Field("Main", "answer")
	if err != nil || v != int64(42) {
		t.Errorf("Field = %v, %v", v, err)
	}
}

func TestHostCalls(t *testing.T) {
	main := seq(
		printOf(&ast.HostCall{Owner: "strings", Member: "ToUpper", Args: []ast.Expression{ast.Str("abc")}}),
		printOf(&ast.HostCall{Owner: "strings", Member: "Repeat", Args: []ast.Expression{ast.Str("ab"), ast.Int(3)}}),
		printOf(&ast.HostCall{Owner: "math", Member: "Sqrt", Args: []ast.Expression{ast.Float(16)}}),
		printOf(&ast.HostField{Owner: "math", Name: "MaxInt32"}),
		printOf(&ast.HostInstanceCall{Receiver: ast.Str("hello"), Member: "Len"}),
	)
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "ABC\nababab\n4.0\n2147483647\n5\n" {
		t.Errorf("got %q", out)
	}
}

func TestHostBuilder(t *testing.T) {
	// let b = new strings.Builder in b.WriteString("x"); b.WriteString("yz"); b.String()
	b := ast.Ref("b")
	main := printOf(ast.LetIn("b", &ast.HostNew{Owner: "strings.Builder"}, seq(
		&ast.HostInstanceCall{Receiver: b, Member: "WriteString", Args: []ast.Expression{ast.Str("x")}},
		&ast.HostInstanceCall{Receiver: ast.Ref("b"), Member: "WriteString", Args: []ast.Expression{ast.Str("yz")}},
		&ast.HostInstanceCall{Receiver: ast.Ref("b"), Member: "String"},
	)))
	out, _ := mustRun(t, &ast.Module{Main: main})
	if out != "xyz\n" {
		t.Errorf("got %q", out)
	}
}

// moduleImporter serves descriptors of modules compiled earlier in a test.
type moduleImporter map[string]*iface.Interface

func (m moduleImporter) ImportInterface(name string) (*iface.Interface, error) {
	in, ok := m[name]
	if !ok {
		return nil, errors.New("no module " + name)
	}
	return in, nil
}

func TestCrossModuleCalls(t *testing.T) {
	lib := &ast.Module{Name: "Lib", Decls: []ast.Decl{
		addDecl(),
		ast.Func("double", []string{"x"}, ast.Bin(ast.OpMul, ast.Ref("x"), ast.Int(2))),
		&ast.LetDecl{Name: "base", Value: ast.Int(100)},
	}, Main: ast.CallName("add", ast.Float(0), ast.Float(0))}
	libRes, libArts, err := compile(t, lib)
	if err != nil {
		t.Fatal(err)
	}
	desc, err := Describe(libRes, libArts[0])
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := desc.Lookup("add$Double_Double"); !ok {
		t.Fatalf("descriptor lacks the specialization:\n%s", desc.Render())
	}

	q := func(name string) *ast.QualifiedVar { return &ast.QualifiedVar{Module: "Lib", Name: name} }
	main := &ast.Module{Name: "App", Imports: []string{"Lib"}, Main: seq(
		printOf(ast.Call(q("double"), ast.Int(21))),
		printOf(ast.Call(q("add"), ast.Float(1), ast.Float(2))),
		printOf(q("base")),
	)}
	engine := analyzerWithImporter(moduleImporter{"Lib": desc})
	res, err := engine.InferModule(main)
	if err != nil {
		t.Fatal(err)
	}
	arts, err := Compile(main, res)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	for _, a := range [][]*Artifact{libArts, arts} {
		if err := machine.Load(a); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := machine.Run(context.Background(), "App"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "42\n3.0\n100\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestCrossModuleConstructors(t *testing.T) {
	area := ast.Func("area", []string{"s"}, ast.MatchOn(ast.Ref("s"),
		ast.Case(ast.PCtor("Circle", ast.PVar("r")), ast.Bin(ast.OpMul, ast.Ref("r"), ast.Ref("r"))),
		ast.Case(ast.PCtor("Square", ast.PVar("w")), ast.Bin(ast.OpMul, ast.Ref("w"), ast.Ref("w"))),
		ast.Case(ast.PCtor("Dot", nil), ast.Float(0)),
	))
	lib := &ast.Module{Name: "Lib", Decls: []ast.Decl{shapeDecl(), area}, Main: ast.Int(0)}
	libRes, libArts, err := compile(t, lib)
	if err != nil {
		t.Fatal(err)
	}
	built, err := Describe(libRes, libArts[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(built.Render(), "make$Circle : double -> Shape\nmake$Square : double -> Shape\nmake$Dot : Shape\n") {
		t.Fatalf("descriptor lacks the constructors:\n%s", built.Render())
	}
	desc, err := iface.Parse(built.Render())
	if err != nil {
		t.Fatal(err)
	}

	main := &ast.Module{Name: "App", Imports: []string{"Lib"}, Main: seq(
		printOf(ast.Call(&ast.QualifiedVar{Module: "Lib", Name: "area"}, &ast.Constructor{Name: "Lib.Circle", Arg: ast.Float(2)})),
		printOf(ast.MatchOn(&ast.Constructor{Name: "Lib.Dot"},
			ast.Case(ast.PCtor("Lib.Circle", ast.PVar("r")), ast.Ref("r")),
			ast.Case(ast.PCtor("Lib.Dot", nil), ast.Float(7)),
		)),
		printOf(&ast.Constructor{Name: "Lib.Square", Arg: ast.Float(1.5)}),
	)}
	res, err := analyzerWithImporter(moduleImporter{"Lib": desc}).InferModule(main)
	if err != nil {
		t.Fatal(err)
	}
	if ctor := res.Constructors["Lib.Square"]; ctor == nil || ctor.Index != 1 || ctor.Module != "Lib" {
		t.Fatalf("imported constructor = %+v", ctor)
	}
	arts, err := Compile(main, res)
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 1 {
		t.Errorf("imported constructors should not emit holders, got %d artifacts", len(arts))
	}

	var out bytes.Buffer
	machine := New()
	machine.SetOutput(&out)
	for _, a := range [][]*Artifact{libArts, arts} {
		if err := machine.Load(a); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := machine.Run(context.Background(), "App"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "4.0\n7.0\nSquare(1.5)\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestMissingSpecializationIsC002(t *testing.T) {
	desc := &iface.Interface{Module: "Lib"}
	scheme, err := typesystem.ParseSignature("forall 'n1. 'n1 -> 'n1")
	if err != nil {
		t.Fatal(err)
	}
	desc.Add("neg", scheme)
	main := &ast.Module{Name: "App", Imports: []string{"Lib"},
		Main: ast.Call(&ast.QualifiedVar{Module: "Lib", Name: "neg"}, ast.Int(1))}
	res, err := analyzerWithImporter(moduleImporter{"Lib": desc}).InferModule(main)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Compile(main, res)
	if d, ok := diagnostics.AsDiagnostic(err); !ok || d.Code != diagnostics.ErrC002 {
		t.Fatalf("expected C002, got %v", err)
	}
}
