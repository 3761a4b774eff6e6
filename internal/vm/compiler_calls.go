package vm

import (
	"github.com/funvibe/miniml/internal/analyzer"
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/typesystem"
)

const hostFunc = int64(host.KindFunc)

// compileVar loads a name used as a value.
func (m *methodCompiler) compileVar(node ast.Expression, name string) error {
	use, err := m.reprOf(node)
	if err != nil {
		return err
	}
	if l, ok := m.locals.Resolve(name); ok {
		if l.Self != nil {
			return m.emitSelfClosure(l.Self)
		}
		m.load(l)
		return m.coerce(l.Repr, use)
	}
	if m.locals.ResolveOuter(name) {
		return diagnostics.Internalf("%s is a local of an enclosing method but was not captured", name)
	}
	if fn, ok := m.c.res.Functions[name]; ok {
		t, err := m.typeOf(node)
		if err != nil {
			return err
		}
		if fn.Arity == 0 {
			r, err := m.invokeFunction(fn, t)
			if err != nil {
				return err
			}
			return m.coerce(r, use)
		}
		target, typ, err := m.c.target(fn, t)
		if err != nil {
			return err
		}
		desc, err := functionDescriptor(typ, fn.Arity)
		if err != nil {
			return err
		}
		return m.emitClosure(Constant{Kind: ConstMethod, Owner: m.c.module, Name: target, Descriptor: desc}, 0)
	}
	if t, ok := m.c.res.Values[name]; ok {
		desc, err := typeDescriptor(t, false)
		if err != nil {
			return err
		}
		r, err := ReprOf(t)
		if err != nil {
			return err
		}
		if err := m.emitConst(OP_GETSTATIC, Constant{Kind: ConstField, Owner: m.c.module, Name: name, Descriptor: desc}); err != nil {
			return err
		}
		return m.coerce(r, use)
	}
	if ctor, ok := m.c.res.Constructors[name]; ok {
		if !ctor.HasArg {
			return m.compileConstructor(name, nil)
		}
		factory, err := m.c.constructorFactory(ctor)
		if err != nil {
			return err
		}
		return m.emitClosure(factory, 0)
	}
	if name == config.PrintFuncName {
		k, err := m.c.printFunction()
		if err != nil {
			return err
		}
		return m.emitClosure(k, 0)
	}
	return diagnostics.Internalf("unbound name %s reached code generation", name)
}

func (m *methodCompiler) emitClosure(k Constant, captures int) error {
	idx, err := m.c.constant(k)
	if err != nil {
		return err
	}
	m.emit(OP_CLOSURE)
	m.chunk.WriteU16(idx, m.line)
	m.chunk.Write(byte(captures), m.line)
	return nil
}

// invokeFunction calls a function with no parameters and returns the
// representation it leaves on the stack.
func (m *methodCompiler) invokeFunction(fn *analyzer.Function, t typesystem.Type) (Repr, error) {
	target, typ, err := m.c.target(fn, t)
	if err != nil {
		return ReprVoid, err
	}
	desc, err := functionDescriptor(typ, 0)
	if err != nil {
		return ReprVoid, err
	}
	if err := m.emitConst(OP_INVOKESTATIC, Constant{Kind: ConstMethod, Owner: m.c.module, Name: target, Descriptor: desc}); err != nil {
		return ReprVoid, err
	}
	return resultRepr(typ)
}

// funcArity counts the parameters of a curried function type.
func funcArity(t typesystem.Type) int {
	n := 0
	for {
		f, ok := t.(typesystem.TFunc)
		if !ok {
			return n
		}
		n++
		t = f.Result
	}
}

func functionDescriptor(t typesystem.Type, arity int) (string, error) {
	params, result := typesystem.SplitFunc(t, arity)
	return MethodDescriptor(params, result)
}

// compileQualified loads an export of an imported module. Polymorphic
// exports resolve to the specialization the other module published for the
// concrete type.
func (m *methodCompiler) compileQualified(n *ast.QualifiedVar) error {
	use, err := m.reprOf(n)
	if err != nil {
		return err
	}
	name, err := m.exportName(n)
	if err != nil {
		return err
	}
	if err := m.emitConst(OP_GETEXPORT, Constant{Kind: ConstExport, Owner: n.Module, Name: name}); err != nil {
		return err
	}
	return m.coerce(ReprRef, use)
}

func (m *methodCompiler) exportName(n *ast.QualifiedVar) (string, error) {
	in, ok := m.c.res.Imports[n.Module]
	if !ok {
		return "", diagnostics.Internalf("module %s was not imported", n.Module)
	}
	declared, ok := in.Lookup(n.Name)
	if !ok {
		return "", diagnostics.Internalf("%s.%s is not exported", n.Module, n.Name)
	}
	if !typesystem.IsPolymorphic(declared) {
		return n.Name, nil
	}
	t, err := m.typeOf(n)
	if err != nil {
		return "", err
	}
	for arity := funcArity(t); arity >= 0; arity-- {
		name := typesystem.SpecializedName(n.Name, t, arity)
		if _, ok := in.Lookup(name); ok {
			return name, nil
		}
	}
	return "", diagnostics.NewError(diagnostics.ErrC002, n.Pos,
		"module %s has no specialization of %s for %s", n.Module, n.Name, t)
}

// compileApp calls top-level functions and saturated self-calls directly;
// everything else goes through boxed closure application.
func (m *methodCompiler) compileApp(n *ast.App) error {
	use, err := m.reprOf(n)
	if err != nil {
		return err
	}
	if v, ok := n.Callee.(*ast.Var); ok {
		done, rest, r, err := m.compileDirectCall(v, n.Args)
		if err != nil {
			return err
		}
		if done {
			if len(rest) == 0 {
				return m.coerce(r, use)
			}
			if err := m.coerce(r, ReprRef); err != nil {
				return err
			}
			return m.applyArgs(rest, use)
		}
	}
	if err := m.compileBoxed(n.Callee); err != nil {
		return err
	}
	return m.applyArgs(n.Args, use)
}

func (m *methodCompiler) applyArgs(args []ast.Expression, use Repr) error {
	for _, a := range args {
		if err := m.compileBoxed(a); err != nil {
			return err
		}
		m.emit(OP_APPLY)
	}
	return m.coerce(ReprRef, use)
}

// compileDirectCall handles the callees that need no closure. It reports
// whether it emitted a call, the arguments left to apply, and the
// representation of the call's result.
func (m *methodCompiler) compileDirectCall(v *ast.Var, args []ast.Expression) (bool, []ast.Expression, Repr, error) {
	if l, ok := m.locals.Resolve(v.Name); ok {
		if l.Self == nil || len(args) < len(l.Self.params)-len(l.Self.captures) {
			return false, nil, 0, nil
		}
		return m.compileSelfCall(l.Self, args)
	}
	if fn, ok := m.c.res.Functions[v.Name]; ok {
		if fn.Arity == 0 || len(args) < fn.Arity {
			return false, nil, 0, nil
		}
		t, err := m.typeOf(v)
		if err != nil {
			return false, nil, 0, err
		}
		target, typ, err := m.c.target(fn, t)
		if err != nil {
			return false, nil, 0, err
		}
		params, result := typesystem.SplitFunc(typ, fn.Arity)
		for i, p := range params {
			r, err := ReprOf(p)
			if err != nil {
				return false, nil, 0, err
			}
			if err := m.compileAs(args[i], r); err != nil {
				return false, nil, 0, err
			}
		}
		desc, err := MethodDescriptor(params, result)
		if err != nil {
			return false, nil, 0, err
		}
		if err := m.emitConst(OP_INVOKESTATIC, Constant{Kind: ConstMethod, Owner: m.c.module, Name: target, Descriptor: desc}); err != nil {
			return false, nil, 0, err
		}
		r, err := resultRepr(result)
		return true, args[fn.Arity:], r, err
	}
	if _, isValue := m.c.res.Values[v.Name]; isValue {
		return false, nil, 0, nil
	}
	if ctor, ok := m.c.res.Constructors[v.Name]; ok && ctor.HasArg && len(args) > 0 {
		if err := m.compileConstructor(v.Name, args[0]); err != nil {
			return false, nil, 0, err
		}
		return true, args[1:], ReprRef, nil
	}
	if v.Name == config.PrintFuncName && len(args) > 0 {
		if err := m.compilePrint(args[0]); err != nil {
			return false, nil, 0, err
		}
		return true, args[1:], ReprVoid, nil
	}
	return false, nil, 0, nil
}

func (m *methodCompiler) compileSelfCall(self *selfRef, args []ast.Expression) (bool, []ast.Expression, Repr, error) {
	for _, name := range self.captures {
		l, ok := m.locals.Resolve(name)
		if !ok {
			return false, nil, 0, diagnostics.Internalf("capture %s of %s is not in scope", name, self.method)
		}
		m.load(l)
	}
	arity := len(self.params) - len(self.captures)
	for i := 0; i < arity; i++ {
		if err := m.compileAs(args[i], self.params[len(self.captures)+i]); err != nil {
			return false, nil, 0, err
		}
	}
	if err := m.emitConst(OP_INVOKESTATIC, Constant{Kind: ConstMethod, Owner: m.c.module, Name: self.method, Descriptor: self.desc}); err != nil {
		return false, nil, 0, err
	}
	return true, args[arity:], self.result, nil
}

// compileConstructor builds a holder; arg is nil for nullary constructors.
func (m *methodCompiler) compileConstructor(name string, arg ast.Expression) error {
	ref, err := m.c.holderRef(name)
	if err != nil {
		return err
	}
	if arg != nil {
		if err := m.compileBoxed(arg); err != nil {
			return err
		}
	}
	return m.emitConst(OP_NEW, ref)
}

func (c *Compiler) holderRef(name string) (Constant, error) {
	ctor, ok := c.res.Constructors[name]
	if !ok {
		return Constant{}, diagnostics.Internalf("unknown constructor %s", name)
	}
	owner := c.module
	switch {
	case ctor.Module != "":
		owner = ctor.Module
	case ctor.Sum == config.ResultTypeName:
		owner = ""
	}
	return Constant{Kind: ConstHolder, Owner: owner, Name: ctor.Name}, nil
}

// constructorFactory emits, once, the method that wraps a constructor so it
// can be passed as a function value.
func (c *Compiler) constructorFactory(ctor *analyzer.Constructor) (Constant, error) {
	name := config.CtorFactoryPrefix + ctor.Name
	desc := "(Lobject;)L" + ctor.Sum + ";"
	k := Constant{Kind: ConstMethod, Owner: c.module, Name: name, Descriptor: desc}
	if _, done := c.factories[name]; done {
		return k, nil
	}
	c.factories[name] = desc
	ref, err := c.holderRef(ctor.Name)
	if err != nil {
		return k, err
	}
	m := newMethodCompiler(c, nil, nil)
	m.emitU16(OP_ALOAD, m.locals.Define("payload", ReprRef).Slot)
	if err := m.emitConst(OP_NEW, ref); err != nil {
		return k, err
	}
	m.emit(OP_ARETURN)
	m.finish(name, desc)
	return k, nil
}

// printFunction emits, once, the method behind print used as a value.
func (c *Compiler) printFunction() (Constant, error) {
	name := config.LambdaPrefix + config.PrintFuncName
	k := Constant{Kind: ConstMethod, Owner: c.module, Name: name, Descriptor: "(Lobject;)V"}
	if _, done := c.factories[name]; done {
		return k, nil
	}
	c.factories[name] = k.Descriptor
	m := newMethodCompiler(c, nil, nil)
	m.emitU16(OP_ALOAD, m.locals.Define("value", ReprRef).Slot)
	m.emit(OP_PRINT_A)
	m.emit(OP_RETURN)
	m.finish(name, k.Descriptor)
	return k, nil
}

// compileHost calls a host member with the signature inference resolved.
func (m *methodCompiler) compileHost(n ast.Expression, receiver ast.Expression, args []ast.Expression) error {
	sig, ok := m.c.res.Host[n]
	if !ok {
		return diagnostics.Internalf("no host signature recorded for %T at %s", n, n.GetPos())
	}
	use, err := m.reprOf(n)
	if err != nil {
		return err
	}
	desc, err := MethodDescriptor(sig.Params, sig.Result)
	if err != nil {
		return err
	}
	if receiver != nil {
		if err := m.compileBoxed(receiver); err != nil {
			return err
		}
	}
	for i, a := range args {
		r, err := ReprOf(sig.Params[i])
		if err != nil {
			return err
		}
		if err := m.compileAs(a, r); err != nil {
			return err
		}
	}
	op := OP_INVOKEHOST
	switch sig.Kind {
	case host.KindMethod:
		op = OP_INVOKEHOSTVIRTUAL
	case host.KindField:
		op = OP_GETHOSTFIELD
	case host.KindNew:
		op = OP_NEWHOST
	}
	k := Constant{Kind: ConstHost, Owner: sig.Owner, Name: sig.Member, Descriptor: desc, Int: int64(sig.Kind)}
	if err := m.emitConst(op, k); err != nil {
		return err
	}
	r, err := resultRepr(sig.Result)
	if err != nil {
		return err
	}
	return m.coerce(r, use)
}
