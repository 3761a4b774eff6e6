package miniml

import (
	"context"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/prettyprinter"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Session checks and runs one entry at a time. Every entry is compiled as a
// fresh module holding the declarations accepted so far, so each gets its
// own inference engine and top-level values are re-evaluated on every run.
type Session struct {
	c       *Compiler
	module  string
	imports []string
	decls   []ast.Decl
}

// Value is the outcome of evaluating one session entry.
type Value struct {
	Value any
	Type  string
}

// NewSession starts an empty session whose entries import imports.
func (c *Compiler) NewSession(imports ...string) *Session {
	return &Session{c: c, module: c.cfg.Module, imports: imports}
}

// Declarations returns the declarations accepted so far.
func (s *Session) Declarations() []ast.Decl {
	return append([]ast.Decl(nil), s.decls...)
}

// Declare type-checks decl against the earlier declarations and keeps it
// when it is well typed. It returns the declared type. Redeclaring a name
// is a T008 error.
func (s *Session) Declare(ctx context.Context, decl ast.Decl) (string, error) {
	u, _, err := s.c.build(ctx, s.entry(decl, nil), nil)
	if err != nil {
		return "", err
	}
	s.decls = append(s.decls, decl)
	s.c.logger.Debug("declared", "name", decl.DeclName(), "unit", u.ID.String())
	return s.declaredType(u, decl), nil
}

// Eval compiles expr against the session's declarations and runs it.
func (s *Session) Eval(ctx context.Context, expr ast.Expression) (*Value, error) {
	s.c.logger.Debug("eval", "expr", prettyprinter.Expression(expr))
	u, pctx, err := s.c.build(ctx, s.entry(nil, expr), nil, s.c.executor())
	if err != nil {
		return nil, err
	}
	return &Value{Value: pctx.Value, Type: u.MainType()}, nil
}

func (s *Session) entry(decl ast.Decl, main ast.Expression) *ast.Module {
	decls := s.Declarations()
	if decl != nil {
		decls = append(decls, decl)
	}
	return &ast.Module{Name: s.module, Imports: s.imports, Decls: decls, Main: main}
}

func (s *Session) declaredType(u *Unit, decl ast.Decl) string {
	if _, ok := decl.(*ast.TypeDecl); ok {
		return decl.DeclName()
	}
	t, ok := u.iface.Lookup(decl.DeclName())
	if !ok {
		return ""
	}
	return typesystem.RenderSignature(t)
}
