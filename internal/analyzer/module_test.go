package analyzer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/typesystem"
)

func addDecl() *ast.FnDecl {
	return ast.Func("add", []string{"x", "y"}, ast.Bin(ast.OpAdd, ast.Ref("x"), ast.Ref("y")))
}

func renderAll(ts []typesystem.Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func TestInstantiationSets(t *testing.T) {
	main := &ast.Sequence{Exprs: []ast.Expression{
		ast.CallName("add", ast.Int(2), ast.Int(3)),
		ast.CallName("add", ast.Float(2), ast.Float(3)),
		ast.CallName("add", ast.Int(4), ast.Int(5)),
	}}
	res := mustInferMain(t, main, addDecl())

	fn := res.Functions["add"]
	if !fn.Polymorphic() {
		t.Fatalf("add should be polymorphic, got %s", fn.Type)
	}
	if ids := typesystem.NumericIDs(fn.Type.(typesystem.TScheme).Body); len(ids) != 1 {
		t.Errorf("expected one numeric variable in %s", fn.Type)
	}
	want := []string{"Double -> Double -> Double", "Int -> Int -> Int"}
	if diff := cmp.Diff(want, renderAll(res.Instantiations.Of("add"))); diff != "" {
		t.Errorf("instantiations mismatch (-want +got):\n%s", diff)
	}
}

func TestConcreteFunctionHasNoInstantiationEntry(t *testing.T) {
	inc := ast.Func("inc", []string{"x"}, ast.Bin(ast.OpAdd, ast.Ref("x"), ast.Int(1)))
	res := mustInferMain(t, ast.CallName("inc", ast.Int(1)), inc)
	if res.Instantiations.Tracks("inc") {
		t.Errorf("inc is concrete and must not be tracked")
	}
	if got := res.Functions["inc"].Type.String(); got != "Int -> Int" {
		t.Errorf("expected Int -> Int, got %s", got)
	}
}

func TestNonConcreteCallsAreNotRecorded(t *testing.T) {
	// fn twice x = add x x: the call to add inside twice is generic.
	twice := ast.Func("twice", []string{"x"}, ast.CallName("add", ast.Ref("x"), ast.Ref("x")))
	res := mustInferMain(t, ast.CallName("twice", ast.Float(1)), addDecl(), twice)
	if got := res.Instantiations.Of("add"); len(got) != 0 {
		t.Errorf("expected no instantiation of add, got %v", renderAll(got))
	}
	if diff := cmp.Diff([]string{"Double -> Double"}, renderAll(res.Instantiations.Of("twice"))); diff != "" {
		t.Errorf("twice instantiations (-want +got):\n%s", diff)
	}
}

func TestNumericDefaulting(t *testing.T) {
	sq := &ast.LetDecl{Name: "sq", Value: ast.Fn([]string{"x"}, ast.Bin(ast.OpMul, ast.Ref("x"), ast.Ref("x")))}
	res := mustInferMain(t, nil, sq, addDecl())
	if got := res.Values["sq"].String(); got != "Int -> Int" {
		t.Errorf("expected sq : Int -> Int, got %s", got)
	}
	// quantified numerics of polymorphic functions survive
	if !typesystem.HasVars(res.Functions["add"].Type.(typesystem.TScheme).Body) {
		t.Errorf("add lost its numeric variable")
	}
	for node, ty := range res.Types {
		if _, ok := node.(*ast.LetDecl); ok && typesystem.HasVars(ty) {
			t.Errorf("unresolved value type %s", ty)
		}
	}
}

func TestAnnotatedFunction(t *testing.T) {
	fn := &ast.FnDecl{
		Name:   "half",
		Params: []ast.Param{{Name: "x", Annot: typesystem.Double}},
		Return: typesystem.Double,
		Body:   ast.Bin(ast.OpDiv, ast.Ref("x"), ast.Int(2)),
	}
	res := mustInferMain(t, nil, fn)
	if got := res.Functions["half"].Type.String(); got != "Double -> Double" {
		t.Errorf("expected Double -> Double, got %s", got)
	}

	bad := &ast.FnDecl{Name: "bad", Params: []ast.Param{{Name: "x", Annot: typesystem.String}}, Return: typesystem.Int, Body: ast.Ref("x")}
	_, err := inferMain(t, nil, bad)
	requireCode(t, err, diagnostics.ErrT001)
}

func TestRecursiveFunction(t *testing.T) {
	// fn len xs = match xs with [] -> 0 | _ :: t -> 1 + len t
	length := ast.Func("len", []string{"xs"}, ast.MatchOn(ast.Ref("xs"),
		ast.Case(ast.PNil(), ast.Int(0)),
		ast.Case(ast.PCons(ast.PWild(), ast.PVar("t")), ast.Bin(ast.OpAdd, ast.Int(1), ast.CallName("len", ast.Ref("t"))))))
	res := mustInferMain(t, ast.CallName("len", ast.List(ast.Str("a"))), length)
	fn := res.Functions["len"]
	if !fn.Polymorphic() {
		t.Fatalf("len should be polymorphic in the element, got %s", fn.Type)
	}
	if diff := cmp.Diff([]string{"String list -> Int"}, renderAll(res.Instantiations.Of("len"))); diff != "" {
		t.Errorf("len instantiations (-want +got):\n%s", diff)
	}
}

func shapeDecl() *ast.TypeDecl {
	return &ast.TypeDecl{Name: "Shape", Ctors: []ast.CtorDecl{
		{Name: "Circle", Arg: typesystem.Double},
		{Name: "Square", Arg: typesystem.Double},
		{Name: "Dot"},
	}}
}

func TestSumTypes(t *testing.T) {
	area := ast.Func("area", []string{"s"}, ast.MatchOn(ast.Ref("s"),
		ast.Case(ast.PCtor("Circle", ast.PVar("r")), ast.Bin(ast.OpMul, ast.Ref("r"), ast.Ref("r"))),
		ast.Case(ast.PCtor("Square", ast.PVar("w")), ast.Bin(ast.OpMul, ast.Ref("w"), ast.Ref("w"))),
		ast.Case(ast.PCtor("Dot", nil), ast.Float(0))))
	res := mustInferMain(t, ast.CallName("area", ast.CallName("Circle", ast.Float(1))), shapeDecl(), area)
	if got := res.Functions["area"].Type.String(); got != "Shape -> Double" {
		t.Errorf("expected Shape -> Double, got %s", got)
	}
	if diff := cmp.Diff([]string{"Circle", "Square", "Dot"}, res.SumTypes["Shape"].Ctors); diff != "" {
		t.Errorf("constructors (-want +got):\n%s", diff)
	}
	if c := res.Constructors["Dot"]; c.HasArg || c.Index != 2 {
		t.Errorf("unexpected Dot constructor %+v", c)
	}
}

func TestParametricSumType(t *testing.T) {
	opt := &ast.TypeDecl{Name: "Option", Params: []string{"a"}, Ctors: []ast.CtorDecl{
		{Name: "Some", Arg: typesystem.TNamed{Name: "a"}},
		{Name: "None"},
	}}
	res := mustInferMain(t, &ast.Constructor{Name: "Some", Arg: ast.Int(1)}, opt)
	want := typesystem.TApp{Name: "Option", Args: []typesystem.Type{typesystem.Int}}
	if !typesystem.Equal(res.Main, want) {
		t.Errorf("expected %s, got %s", want, res.Main)
	}
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name  string
		decls []ast.Decl
		code  diagnostics.ErrorCode
	}{
		{"duplicate function", []ast.Decl{addDecl(), addDecl()}, diagnostics.ErrT008},
		{"value shadows function", []ast.Decl{addDecl(), &ast.LetDecl{Name: "add", Value: ast.Int(1)}}, diagnostics.ErrT008},
		{"duplicate constructor", []ast.Decl{shapeDecl(), &ast.TypeDecl{Name: "Other", Ctors: []ast.CtorDecl{{Name: "Dot"}}}}, diagnostics.ErrT008},
		{"builtin constructor", []ast.Decl{&ast.TypeDecl{Name: "Mine", Ctors: []ast.CtorDecl{{Name: "Ok"}}}}, diagnostics.ErrT008},
		{"reserved type name", []ast.Decl{&ast.TypeDecl{Name: "list", Ctors: []ast.CtorDecl{{Name: "L"}}}}, diagnostics.ErrT006},
		{"nullary with payload", []ast.Decl{shapeDecl(), &ast.LetDecl{Name: "d", Value: &ast.Constructor{Name: "Dot", Arg: ast.Int(1)}}}, diagnostics.ErrT006},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inferMain(t, nil, tt.decls...)
			requireCode(t, err, tt.code)
		})
	}
}

type mapImporter map[string]*iface.Interface

func (m mapImporter) ImportInterface(module string) (*iface.Interface, error) {
	in, ok := m[module]
	if !ok {
		return nil, errors.Errorf("module %s not found", module)
	}
	return in, nil
}

func TestImports(t *testing.T) {
	lib, err := iface.Parse("# module Lib\n" +
		"twice : forall 't1 . ('t1 -> 't1) -> 't1 -> 't1\n" +
		"add : forall 'n2 . 'n2 -> 'n2 -> 'n2\n" +
		"add$Int_Int : int -> int -> int\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	importer := mapImporter{"Lib": lib}

	mod := &ast.Module{
		Name:    "Main",
		Imports: []string{"Lib"},
		Main: &ast.Sequence{Exprs: []ast.Expression{
			ast.Call(&ast.QualifiedVar{Module: "Lib", Name: "twice"},
				ast.Fn([]string{"s"}, ast.Bin(ast.OpAdd, ast.Ref("s"), ast.Int(1))), ast.Int(1)),
			ast.Call(&ast.QualifiedVar{Module: "Lib", Name: "add"}, ast.Int(1), ast.Int(2)),
		}},
	}
	res, err := NewEngine(WithImporter(importer)).InferModule(mod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Main != typesystem.Int {
		t.Errorf("expected Int, got %s", res.Main)
	}
	if res.Imports["Lib"] != lib {
		t.Errorf("imported interface not kept")
	}

	missing := &ast.Module{Name: "Main", Imports: []string{"Nope"}}
	_, err = NewEngine(WithImporter(importer)).InferModule(missing)
	requireCode(t, err, diagnostics.ErrT009)

	hidden := &ast.Module{Name: "Main", Imports: []string{"Lib"},
		Main: &ast.QualifiedVar{Module: "Lib", Name: "add$Int_Int"}}
	_, err = NewEngine(WithImporter(importer)).InferModule(hidden)
	requireCode(t, err, diagnostics.ErrT002)
}
