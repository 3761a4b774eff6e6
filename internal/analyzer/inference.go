package analyzer

import (
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Infer computes the type of expr in env and records it, and the types of all
// subexpressions, in the type map. The first error aborts inference.
func (e *Engine) Infer(env TypeEnv, expr ast.Expression) (typesystem.Type, error) {
	t, err := e.inferExpr(env, expr)
	if err != nil {
		return nil, err
	}
	e.types[expr] = t
	return t, nil
}

func (e *Engine) inferExpr(env TypeEnv, expr ast.Expression) (typesystem.Type, error) {
	switch n := expr.(type) {
	case *ast.IntLit:
		return typesystem.Int, nil
	case *ast.FloatLit:
		return typesystem.Double, nil
	case *ast.BoolLit:
		return typesystem.Bool, nil
	case *ast.StringLit:
		return typesystem.String, nil
	case *ast.UnitLit:
		return typesystem.Unit, nil
	case *ast.StringInterp:
		for _, part := range n.Parts {
			if part.Expr == nil {
				continue
			}
			if _, err := e.Infer(env, part.Expr); err != nil {
				return nil, err
			}
		}
		return typesystem.String, nil
	case *ast.Var:
		b, ok := env.Lookup(n.Name)
		if !ok {
			return nil, typeErrorf(diagnostics.ErrT002, n.Pos, "undefined name %s", n.Name)
		}
		return e.instantiate(b.Type), nil
	case *ast.QualifiedVar:
		name := n.Module + "." + n.Name
		b, ok := env.Lookup(name)
		if !ok {
			return nil, typeErrorf(diagnostics.ErrT002, n.Pos, "undefined name %s", name)
		}
		return e.instantiate(b.Type), nil
	case *ast.Unary:
		return e.inferUnary(env, n)
	case *ast.Binary:
		return e.inferBinary(env, n)
	case *ast.If:
		return e.inferIf(env, n)
	case *ast.Let:
		vt, err := e.Infer(env, n.Value)
		if err != nil {
			return nil, err
		}
		return e.Infer(env.Extend(n.Name, e.generalizeLocal(env, vt)), n.Body)
	case *ast.LetRec:
		placeholder := e.freshVar()
		ft, err := e.Infer(env.Extend(n.Name, placeholder), n.Fn)
		if err != nil {
			return nil, err
		}
		if err := e.unify(n, placeholder, ft); err != nil {
			return nil, err
		}
		return e.Infer(env.Extend(n.Name, e.generalizeLocal(env, ft)), n.Body)
	case *ast.Lambda:
		return e.inferLambda(env, n)
	case *ast.App:
		return e.inferApp(env, n)
	case *ast.Sequence:
		var last typesystem.Type = typesystem.Unit
		for _, x := range n.Exprs {
			t, err := e.Infer(env, x)
			if err != nil {
				return nil, err
			}
			last = t
		}
		return last, nil
	case *ast.Print:
		if _, err := e.Infer(env, n.Value); err != nil {
			return nil, err
		}
		return typesystem.Unit, nil
	case *ast.ListLit:
		elem := typesystem.Type(e.freshVar())
		for _, x := range n.Elems {
			t, err := e.Infer(env, x)
			if err != nil {
				return nil, err
			}
			if err := e.unify(x, elem, t); err != nil {
				return nil, err
			}
		}
		return typesystem.TList{Elem: elem}, nil
	case *ast.Cons:
		ht, err := e.Infer(env, n.Head)
		if err != nil {
			return nil, err
		}
		tt, err := e.Infer(env, n.Tail)
		if err != nil {
			return nil, err
		}
		if err := e.unify(n, tt, typesystem.TList{Elem: ht}); err != nil {
			return nil, err
		}
		return tt, nil
	case *ast.Match:
		return e.inferMatch(env, n)
	case *ast.Constructor:
		return e.inferConstructor(env, n)
	case *ast.HostCall:
		return e.inferHostCall(env, n, n.Owner, n.Member, host.KindFunc, n.Args)
	case *ast.HostInstanceCall:
		rt, err := e.Infer(env, n.Receiver)
		if err != nil {
			return nil, err
		}
		owner, ok := host.OwnerOf(e.subst.Resolve(rt))
		if !ok {
			return nil, typeErrorf(diagnostics.ErrT007, n.Pos, "cannot call host method %s on a value of type %s",
				n.Member, e.subst.Resolve(rt))
		}
		return e.inferHostCall(env, n, owner, n.Member, host.KindMethod, n.Args)
	case *ast.HostField:
		return e.inferHostCall(env, n, n.Owner, n.Name, host.KindField, nil)
	case *ast.HostNew:
		return e.inferHostCall(env, n, n.Owner, "", host.KindNew, nil)
	}
	return nil, diagnostics.Internalf("unhandled expression %T", expr)
}

func (e *Engine) inferUnary(env TypeEnv, n *ast.Unary) (typesystem.Type, error) {
	t, err := e.Infer(env, n.Operand)
	if err != nil {
		return nil, err
	}
	if n.Op == ast.OpNot {
		if err := e.unify(n.Operand, t, typesystem.Bool); err != nil {
			return nil, err
		}
		return typesystem.Bool, nil
	}
	if err := e.unify(n.Operand, t, e.freshNumeric()); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) inferBinary(env TypeEnv, n *ast.Binary) (typesystem.Type, error) {
	lt, err := e.Infer(env, n.Left)
	if err != nil {
		return nil, err
	}
	rt, err := e.Infer(env, n.Right)
	if err != nil {
		return nil, err
	}
	switch {
	case n.Op.IsArithmetic():
		// Each operand must be numeric on its own. Mixing Int and Double
		// yields Double; the generator widens the Int side.
		if err := e.unify(n.Left, lt, e.freshNumeric()); err != nil {
			return nil, err
		}
		if err := e.unify(n.Right, rt, e.freshNumeric()); err != nil {
			return nil, err
		}
		l, r := e.subst.Prune(lt), e.subst.Prune(rt)
		_, ld := l.(typesystem.TDouble)
		_, rd := r.(typesystem.TDouble)
		if ld || rd {
			return typesystem.Double, nil
		}
		if err := e.unify(n, lt, rt); err != nil {
			return nil, err
		}
		return lt, nil
	case n.Op.IsComparison():
		if err := e.unify(n, lt, rt); err != nil {
			return nil, err
		}
		return typesystem.Bool, nil
	default:
		if err := e.unify(n.Left, lt, typesystem.Bool); err != nil {
			return nil, err
		}
		if err := e.unify(n.Right, rt, typesystem.Bool); err != nil {
			return nil, err
		}
		return typesystem.Bool, nil
	}
}

func (e *Engine) inferIf(env TypeEnv, n *ast.If) (typesystem.Type, error) {
	ct, err := e.Infer(env, n.Cond)
	if err != nil {
		return nil, err
	}
	if err := e.unify(n.Cond, ct, typesystem.Bool); err != nil {
		return nil, err
	}
	tt, err := e.Infer(env, n.Then)
	if err != nil {
		return nil, err
	}
	et, err := e.Infer(env, n.Else)
	if err != nil {
		return nil, err
	}
	if err := e.unify(n.Else, tt, et); err != nil {
		return nil, err
	}
	return tt, nil
}

func (e *Engine) inferLambda(env TypeEnv, n *ast.Lambda) (typesystem.Type, error) {
	if len(n.Params) == 0 {
		bt, err := e.Infer(env, n.Body)
		if err != nil {
			return nil, err
		}
		return typesystem.TFunc{Param: typesystem.Unit, Result: bt}, nil
	}
	params := make([]typesystem.Type, len(n.Params))
	inner := env
	for i, p := range n.Params {
		v := e.freshVar()
		params[i] = v
		inner = inner.Extend(p, v)
	}
	bt, err := e.Infer(inner, n.Body)
	if err != nil {
		return nil, err
	}
	return typesystem.NewFunc(bt, params...), nil
}

func (e *Engine) inferApp(env TypeEnv, n *ast.App) (typesystem.Type, error) {
	ft, err := e.Infer(env, n.Callee)
	if err != nil {
		return nil, err
	}
	calleeType := ft
	for _, arg := range n.Args {
		at, err := e.Infer(env, arg)
		if err != nil {
			return nil, err
		}
		res := e.freshVar()
		if err := e.unify(arg, ft, typesystem.TFunc{Param: at, Result: res}); err != nil {
			return nil, err
		}
		ft = res
	}
	if v, ok := n.Callee.(*ast.Var); ok && e.insts.Tracks(v.Name) {
		if b, ok := env.Lookup(v.Name); ok && b.Global {
			if full := e.subst.Resolve(calleeType); !typesystem.HasVars(full) {
				e.insts.record(v.Name, full)
			}
		}
	}
	return ft, nil
}

func (e *Engine) inferMatch(env TypeEnv, n *ast.Match) (typesystem.Type, error) {
	st, err := e.Infer(env, n.Scrutinee)
	if err != nil {
		return nil, err
	}
	if len(n.Cases) == 0 {
		return nil, typeErrorf(diagnostics.ErrT004, n.Pos, "match has no cases")
	}
	var result typesystem.Type = e.freshVar()
	for _, c := range n.Cases {
		armEnv, err := e.checkPattern(env, c.Pattern, st)
		if err != nil {
			return nil, err
		}
		bt, err := e.Infer(armEnv, c.Body)
		if err != nil {
			return nil, err
		}
		if err := e.unify(c.Body, result, bt); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Engine) inferConstructor(env TypeEnv, n *ast.Constructor) (typesystem.Type, error) {
	ctor, ok := e.ctors[n.Name]
	if !ok {
		return nil, typeErrorf(diagnostics.ErrT006, n.Pos, "unknown constructor %s", n.Name)
	}
	ct := e.instantiate(ctor.Type)
	switch {
	case n.Arg == nil && ctor.HasArg:
		return nil, typeErrorf(diagnostics.ErrT006, n.Pos, "constructor %s requires an argument", n.Name)
	case n.Arg == nil:
		return ct, nil
	case !ctor.HasArg:
		return nil, typeErrorf(diagnostics.ErrT006, n.Pos, "constructor %s takes no argument", n.Name)
	}
	at, err := e.Infer(env, n.Arg)
	if err != nil {
		return nil, err
	}
	res := e.freshVar()
	if err := e.unify(n.Arg, ct, typesystem.TFunc{Param: at, Result: res}); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) inferHostCall(env TypeEnv, n ast.Expression, owner, member string, kind host.MemberKind, args []ast.Expression) (typesystem.Type, error) {
	argTypes := make([]typesystem.Type, len(args))
	for i, a := range args {
		t, err := e.Infer(env, a)
		if err != nil {
			return nil, err
		}
		argTypes[i] = e.subst.Resolve(t)
	}
	sig, err := e.resolver.Resolve(owner, member, kind, argTypes)
	if err != nil {
		return nil, typeErrorf(diagnostics.ErrT007, n.GetPos(), "%v", err)
	}
	if len(sig.Params) != len(args) {
		return nil, typeErrorf(diagnostics.ErrT001, n.GetPos(), "host %s expects %d arguments, got %d",
			sig.Key(), len(sig.Params), len(args))
	}
	for i, a := range args {
		if err := e.unify(a, argTypes[i], sig.Params[i]); err != nil {
			return nil, err
		}
	}
	e.hostSigs[n] = sig
	return sig.Result, nil
}
