package analyzer

import (
	"fmt"
	"strings"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/typesystem"
)

// InferModule type-checks a whole module: imports, type declarations,
// functions and values in declaration order, then the main expression.
// The returned Result is fully resolved.
func (e *Engine) InferModule(mod *ast.Module) (*Result, error) {
	env := e.BaseEnv()
	env, err := e.bindImports(env, mod)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Module:       mod,
		Functions:    make(map[string]*Function),
		Values:       make(map[string]typesystem.Type),
		Constructors: e.ctors,
		SumTypes:     e.sums,
		Imports:      e.imports,
	}

	declared := make(map[string]bool)
	declare := func(node ast.Node, name string) error {
		if declared[name] {
			return typeErrorf(diagnostics.ErrT008, node.GetPos(), "%s is declared more than once", name)
		}
		declared[name] = true
		return nil
	}

	for _, d := range mod.Decls {
		td, ok := d.(*ast.TypeDecl)
		if !ok {
			continue
		}
		if err := declare(td, td.Name); err != nil {
			return nil, err
		}
		if env, err = e.declareType(env, td, declare); err != nil {
			return nil, err
		}
	}

	for _, d := range mod.Decls {
		switch d := d.(type) {
		case *ast.FnDecl:
			if err := declare(d, d.Name); err != nil {
				return nil, err
			}
			fn, err := e.inferFunction(env, d)
			if err != nil {
				return nil, err
			}
			if fn.Polymorphic() {
				e.insts.track(d.Name)
			}
			res.Functions[d.Name] = fn
			res.Order = append(res.Order, d.Name)
			env = env.ExtendGlobal(d.Name, fn.Type)
		case *ast.LetDecl:
			if err := declare(d, d.Name); err != nil {
				return nil, err
			}
			t, err := e.Infer(env, d.Value)
			if err != nil {
				return nil, err
			}
			// Top-level values live in fields of a single representation,
			// so they are not generalized.
			e.types[d] = t
			res.Values[d.Name] = t
			res.Order = append(res.Order, d.Name)
			env = env.ExtendGlobal(d.Name, t)
		}
	}

	if mod.Main != nil {
		t, err := e.Infer(env, mod.Main)
		if err != nil {
			return nil, err
		}
		res.Main = t
	}

	e.Finalize(res)
	return res, nil
}

func (e *Engine) bindImports(env TypeEnv, mod *ast.Module) (TypeEnv, error) {
	for _, name := range mod.Imports {
		if e.importer == nil {
			return env, typeErrorf(diagnostics.ErrT009, mod.Pos, "cannot import %s: no module store", name)
		}
		in, err := e.importer.ImportInterface(name)
		if err != nil {
			return env, typeErrorf(diagnostics.ErrT009, mod.Pos, "cannot import %s: %v", name, err)
		}
		e.imports[name] = in
		index := make(map[string]int)
		for _, ex := range in.Exports {
			if ctor, ok := strings.CutPrefix(ex.Name, config.CtorFactoryPrefix); ok {
				if err := e.bindImportedConstructor(name, ctor, ex.Type, index); err != nil {
					return env, typeErrorf(diagnostics.ErrT009, mod.Pos, "cannot import %s: %v", name, err)
				}
				continue
			}
			if strings.Contains(ex.Name, typesystem.SuffixSeparator) {
				continue
			}
			t := e.freshen(ex.Type, make(map[int]typesystem.Type))
			env = env.ExtendGlobal(name+"."+ex.Name, typesystem.Generalize(t, nil))
		}
	}
	return env, nil
}

// bindImportedConstructor registers the constructor ctor of module under its
// qualified name. Constructors of one sum type are exported in tag order.
func (e *Engine) bindImportedConstructor(module, ctor string, t typesystem.Type, index map[string]int) error {
	body := t
	if s, ok := body.(typesystem.TScheme); ok {
		body = s.Body
	}
	f, hasArg := body.(typesystem.TFunc)
	self := body
	if hasArg {
		self = f.Result
	}
	var sum string
	switch s := self.(type) {
	case typesystem.TNamed:
		sum = s.Name
	case typesystem.TApp:
		sum = s.Name
	default:
		return fmt.Errorf("constructor %s does not build a sum type", ctor)
	}
	t = typesystem.Generalize(e.freshen(t, make(map[int]typesystem.Type)), nil)
	e.ctors[module+"."+ctor] = &Constructor{Name: ctor, Sum: sum, Index: index[sum], HasArg: hasArg, Module: module, Type: t}
	index[sum]++
	return nil
}

// declareType registers a sum type and binds its constructors.
func (e *Engine) declareType(env TypeEnv, td *ast.TypeDecl, declare func(ast.Node, string) error) (TypeEnv, error) {
	if typesystem.IsReservedName(td.Name) || td.Name == config.ResultTypeName {
		return env, typeErrorf(diagnostics.ErrT006, td.Pos, "%s cannot be used as a type name", td.Name)
	}
	params := make(map[string]typesystem.Type, len(td.Params))
	vars := make([]int, len(td.Params))
	args := make([]typesystem.Type, len(td.Params))
	for i, p := range td.Params {
		v := e.freshVar()
		params[p] = v
		vars[i] = v.ID
		args[i] = v
	}
	var self typesystem.Type = typesystem.TNamed{Name: td.Name}
	if len(td.Params) > 0 {
		self = typesystem.TApp{Name: td.Name, Args: args}
	}

	sum := &SumType{Name: td.Name}
	for i, c := range td.Ctors {
		if err := declare(td, c.Name); err != nil {
			return env, err
		}
		if _, builtin := e.ctors[c.Name]; builtin {
			return env, typeErrorf(diagnostics.ErrT008, td.Pos, "constructor %s is already defined", c.Name)
		}
		t := self
		if c.Arg != nil {
			t = typesystem.TFunc{Param: bindTypeParams(c.Arg, params), Result: self}
		}
		if len(vars) > 0 {
			t = typesystem.TScheme{Vars: vars, Body: t}
		}
		e.ctors[c.Name] = &Constructor{Name: c.Name, Sum: td.Name, Index: i, HasArg: c.Arg != nil, Type: t}
		sum.Ctors = append(sum.Ctors, c.Name)
		env = env.ExtendGlobal(c.Name, t)
	}
	e.sums[td.Name] = sum
	return env, nil
}

func (e *Engine) inferFunction(env TypeEnv, d *ast.FnDecl) (*Function, error) {
	mapping := make(map[int]typesystem.Type)
	params := make([]typesystem.Type, len(d.Params))
	placeholder := e.freshVar()
	inner := env.Extend(d.Name, placeholder)
	for i, p := range d.Params {
		if p.Annot != nil {
			params[i] = e.freshen(p.Annot, mapping)
		} else {
			params[i] = e.freshVar()
		}
		inner = inner.Extend(p.Name, params[i])
	}
	bt, err := e.Infer(inner, d.Body)
	if err != nil {
		return nil, err
	}
	if d.Return != nil {
		if err := e.unify(d.Body, bt, e.freshen(d.Return, mapping)); err != nil {
			return nil, err
		}
	}
	ft := typesystem.NewFunc(bt, params...)
	if err := e.unify(d, placeholder, ft); err != nil {
		return nil, err
	}
	e.types[d] = ft
	return &Function{Decl: d, Type: e.generalize(env, ft), Arity: len(d.Params)}, nil
}

// bindTypeParams replaces references to declared type parameters with their
// variables.
func bindTypeParams(t typesystem.Type, params map[string]typesystem.Type) typesystem.Type {
	switch t := t.(type) {
	case typesystem.TNamed:
		if v, ok := params[t.Name]; ok {
			return v
		}
		return t
	case typesystem.TList:
		return typesystem.TList{Elem: bindTypeParams(t.Elem, params)}
	case typesystem.TResult:
		return typesystem.TResult{Ok: bindTypeParams(t.Ok, params), Err: bindTypeParams(t.Err, params)}
	case typesystem.TFunc:
		return typesystem.TFunc{Param: bindTypeParams(t.Param, params), Result: bindTypeParams(t.Result, params)}
	case typesystem.TApp:
		args := make([]typesystem.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = bindTypeParams(a, params)
		}
		return typesystem.TApp{Name: t.Name, Args: args}
	}
	return t
}
