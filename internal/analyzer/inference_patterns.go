package analyzer

import (
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// checkPattern unifies the pattern with the scrutinee type t and returns env
// extended with the variables the pattern binds. Pattern variables are
// monomorphic.
func (e *Engine) checkPattern(env TypeEnv, p ast.Pattern, t typesystem.Type) (TypeEnv, error) {
	e.types[p] = t
	switch p := p.(type) {
	case *ast.WildcardPattern:
		return env, nil
	case *ast.VarPattern:
		return env.Extend(p.Name, t), nil
	case *ast.IntPattern:
		return env, e.unify(p, t, typesystem.Int)
	case *ast.BoolPattern:
		return env, e.unify(p, t, typesystem.Bool)
	case *ast.StringPattern:
		return env, e.unify(p, t, typesystem.String)
	case *ast.NilPattern:
		return env, e.unify(p, t, typesystem.TList{Elem: e.freshVar()})
	case *ast.ConsPattern:
		elem := e.freshVar()
		if err := e.unify(p, t, typesystem.TList{Elem: elem}); err != nil {
			return env, err
		}
		env, err := e.checkPattern(env, p.Head, elem)
		if err != nil {
			return env, err
		}
		return e.checkPattern(env, p.Tail, t)
	case *ast.ConstructorPattern:
		ctor, ok := e.ctors[p.Name]
		if !ok {
			return env, typeErrorf(diagnostics.ErrT006, p.Pos, "unknown constructor %s", p.Name)
		}
		ct := e.instantiate(ctor.Type)
		if !ctor.HasArg {
			if p.Arg != nil {
				return env, typeErrorf(diagnostics.ErrT006, p.Pos, "constructor %s takes no argument", p.Name)
			}
			return env, e.unify(p, t, ct)
		}
		payload := e.freshVar()
		if err := e.unify(p, ct, typesystem.TFunc{Param: payload, Result: t}); err != nil {
			return env, err
		}
		if p.Arg == nil {
			return env, nil
		}
		return e.checkPattern(env, p.Arg, payload)
	}
	return env, diagnostics.Internalf("unhandled pattern %T", p)
}
