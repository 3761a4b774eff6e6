package ast

import (
	"github.com/funvibe/miniml/internal/token"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Node is the base interface for all syntax nodes.
// Node identity (the pointer) keys the type map, so a node must not be
// shared between two places in a tree.
type Node interface {
	GetPos() token.Position
}

// Expression is a closed union; the inference engine and the code generator
// switch over every variant.
type Expression interface {
	Node
	expressionNode()
}

// Pattern is the closed union of match patterns.
type Pattern interface {
	Node
	patternNode()
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	declNode()
	DeclName() string
}

// Module is the root node handed to the compiler by the parser.
type Module struct {
	Pos     token.Position
	Name    string
	Imports []string
	Decls   []Decl
	Main    Expression // optional top-level expression
}

func (m *Module) GetPos() token.Position { return m.Pos }

// Param is a function parameter with an optional type annotation.
type Param struct {
	Name  string
	Annot typesystem.Type
}

// FnDecl declares a top-level function:
// fn name p1 p2 ... = body
type FnDecl struct {
	Pos    token.Position
	Name   string
	Params []Param
	Return typesystem.Type // optional
	Body   Expression
}

func (d *FnDecl) GetPos() token.Position { return d.Pos }
func (d *FnDecl) declNode()              {}
func (d *FnDecl) DeclName() string       { return d.Name }

// LetDecl declares a top-level value:
// let name = value
type LetDecl struct {
	Pos   token.Position
	Name  string
	Value Expression
}

func (d *LetDecl) GetPos() token.Position { return d.Pos }
func (d *LetDecl) declNode()              {}
func (d *LetDecl) DeclName() string       { return d.Name }

// TypeDecl declares a sum type:
// type name 'a = Ctor1 | Ctor2 of 'a
// Type parameters appear in constructor argument types as TNamed{Name: param}.
type TypeDecl struct {
	Pos    token.Position
	Name   string
	Params []string
	Ctors  []CtorDecl
}

func (d *TypeDecl) GetPos() token.Position { return d.Pos }
func (d *TypeDecl) declNode()              {}
func (d *TypeDecl) DeclName() string       { return d.Name }

// CtorDecl is one constructor of a sum type. Arg is nil for nullary ones.
type CtorDecl struct {
	Name string
	Arg  typesystem.Type
}
