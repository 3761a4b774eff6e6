package vm

import (
	"fmt"
	"strings"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// compileLambda emits the lambda body as its own method and leaves a closure
// over the captured locals on the stack.
func (m *methodCompiler) compileLambda(n *ast.Lambda) error {
	k, captures, err := m.compileLambdaMethod(n, "")
	if err != nil {
		return err
	}
	if err := m.loadCaptures(captures); err != nil {
		return err
	}
	return m.emitClosure(k, len(captures))
}

// compileLetRec binds name to a closure whose body may call itself directly.
func (m *methodCompiler) compileLetRec(n *ast.LetRec) error {
	k, captures, err := m.compileLambdaMethod(n.Fn, n.Name)
	if err != nil {
		return err
	}
	if err := m.loadCaptures(captures); err != nil {
		return err
	}
	if err := m.emitClosure(k, len(captures)); err != nil {
		return err
	}
	cp := m.locals.Checkpoint()
	m.store(m.locals.Define(n.Name, ReprRef))
	if err := m.compileExpr(n.Body); err != nil {
		return err
	}
	m.locals.Rollback(cp)
	return nil
}

// compileLambdaMethod emits the method behind a lambda. Captures come first
// in the descriptor, boxed; self names the lambda inside its own body.
func (m *methodCompiler) compileLambdaMethod(n *ast.Lambda, self string) (Constant, []string, error) {
	t, err := m.typeOf(n)
	if err != nil {
		return Constant{}, nil, err
	}
	names := n.Params
	if len(names) == 0 {
		names = []string{"_"}
	}
	params, result := typesystem.SplitFunc(t, len(names))
	if len(params) != len(names) {
		return Constant{}, nil, diagnostics.Internalf("lambda : %s has fewer than %d parameters", t, len(names))
	}

	bound := map[string]bool{self: true}
	for _, p := range n.Params {
		bound[p] = true
	}
	var captures []string
	for _, name := range freeVars(n.Body, bound) {
		if _, ok := m.locals.Resolve(name); ok {
			captures = append(captures, name)
		}
	}

	m.c.lambdas++
	name := fmt.Sprintf("%s%d", config.LambdaPrefix, m.c.lambdas)
	reprs := make([]Repr, 0, len(captures)+len(params))
	for range captures {
		reprs = append(reprs, ReprRef)
	}
	for _, p := range params {
		r, err := ReprOf(p)
		if err != nil {
			return Constant{}, nil, err
		}
		reprs = append(reprs, r)
	}
	ret, err := resultRepr(result)
	if err != nil {
		return Constant{}, nil, err
	}
	desc := reprDescriptor(reprs, ret)

	inner := newMethodCompiler(m.c, m.locals, m.subst)
	inner.line = n.Pos.Line
	if inner.line == 0 {
		inner.line = m.line
	}
	for _, c := range captures {
		inner.locals.Define(c, ReprRef)
	}
	for i, p := range names {
		inner.locals.Define(p, reprs[len(captures)+i])
	}
	if self != "" {
		inner.locals.DefineSelf(self, &selfRef{method: name, desc: desc, captures: captures, params: reprs, result: ret})
	}
	if err := inner.compileBody(n.Body, ret); err != nil {
		return Constant{}, nil, err
	}
	inner.finish(name, desc)
	return Constant{Kind: ConstMethod, Owner: m.c.module, Name: name, Descriptor: desc}, captures, nil
}

// loadCaptures pushes the captured locals boxed, in capture order.
func (m *methodCompiler) loadCaptures(names []string) error {
	for _, name := range names {
		l, ok := m.locals.Resolve(name)
		if !ok {
			return diagnostics.Internalf("captured %s is not in scope", name)
		}
		if l.Self != nil {
			if err := m.emitSelfClosure(l.Self); err != nil {
				return err
			}
			continue
		}
		m.load(l)
		if err := m.coerce(l.Repr, ReprRef); err != nil {
			return err
		}
	}
	return nil
}

// emitSelfClosure rebuilds the closure of the recursive lambda being
// compiled from its own captures.
func (m *methodCompiler) emitSelfClosure(self *selfRef) error {
	if err := m.loadCaptures(self.captures); err != nil {
		return err
	}
	return m.emitClosure(Constant{Kind: ConstMethod, Owner: m.c.module, Name: self.method, Descriptor: self.desc}, len(self.captures))
}

func reprDescriptor(params []Repr, result Repr) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(reprCode(p))
	}
	sb.WriteByte(')')
	sb.WriteString(reprCode(result))
	return sb.String()
}

func reprCode(r Repr) string {
	switch r {
	case ReprInt:
		return "I"
	case ReprBool:
		return "Z"
	case ReprDouble:
		return "D"
	case ReprVoid:
		return "V"
	}
	return "Lobject;"
}

// freeVars lists the unqualified names expr reads that bound does not
// cover, in order of first use.
func freeVars(expr ast.Expression, bound map[string]bool) []string {
	w := &freeVarWalker{seen: make(map[string]bool)}
	w.expr(expr, bound)
	return w.names
}

type freeVarWalker struct {
	seen  map[string]bool
	names []string
}

func withNames(bound map[string]bool, names ...string) map[string]bool {
	out := make(map[string]bool, len(bound)+len(names))
	for k := range bound {
		out[k] = true
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

func (w *freeVarWalker) expr(e ast.Expression, bound map[string]bool) {
	switch n := e.(type) {
	case *ast.Var:
		if !bound[n.Name] && !w.seen[n.Name] {
			w.seen[n.Name] = true
			w.names = append(w.names, n.Name)
		}
	case *ast.StringInterp:
		for _, p := range n.Parts {
			if p.Expr != nil {
				w.expr(p.Expr, bound)
			}
		}
	case *ast.Unary:
		w.expr(n.Operand, bound)
	case *ast.Binary:
		w.expr(n.Left, bound)
		w.expr(n.Right, bound)
	case *ast.If:
		w.expr(n.Cond, bound)
		w.expr(n.Then, bound)
		w.expr(n.Else, bound)
	case *ast.Let:
		w.expr(n.Value, bound)
		w.expr(n.Body, withNames(bound, n.Name))
	case *ast.LetRec:
		inner := withNames(bound, n.Name)
		w.expr(n.Fn, inner)
		w.expr(n.Body, inner)
	case *ast.Lambda:
		w.expr(n.Body, withNames(bound, n.Params...))
	case *ast.App:
		w.expr(n.Callee, bound)
		for _, a := range n.Args {
			w.expr(a, bound)
		}
	case *ast.Sequence:
		for _, x := range n.Exprs {
			w.expr(x, bound)
		}
	case *ast.Print:
		w.expr(n.Value, bound)
	case *ast.ListLit:
		for _, x := range n.Elems {
			w.expr(x, bound)
		}
	case *ast.Cons:
		w.expr(n.Head, bound)
		w.expr(n.Tail, bound)
	case *ast.Match:
		w.expr(n.Scrutinee, bound)
		for _, c := range n.Cases {
			w.expr(c.Body, withNames(bound, patternVars(c.Pattern, nil)...))
		}
	case *ast.Constructor:
		if n.Arg != nil {
			w.expr(n.Arg, bound)
		}
	case *ast.HostCall:
		for _, a := range n.Args {
			w.expr(a, bound)
		}
	case *ast.HostInstanceCall:
		w.expr(n.Receiver, bound)
		for _, a := range n.Args {
			w.expr(a, bound)
		}
	}
}

// patternVars appends the names p binds.
func patternVars(p ast.Pattern, out []string) []string {
	switch p := p.(type) {
	case *ast.VarPattern:
		return append(out, p.Name)
	case *ast.ConsPattern:
		return patternVars(p.Tail, patternVars(p.Head, out))
	case *ast.ConstructorPattern:
		if p.Arg != nil {
			return patternVars(p.Arg, out)
		}
	}
	return out
}
