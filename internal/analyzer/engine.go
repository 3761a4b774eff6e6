// Package analyzer infers the types of a miniml module.
package analyzer

import (
	"errors"
	"fmt"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/token"
	"github.com/funvibe/miniml/internal/typesystem"
)

// TypeMap records the type of every expression, pattern, lambda and
// declaration, keyed by node identity.
type TypeMap map[ast.Node]typesystem.Type

// Importer supplies the interface descriptors of separately compiled modules.
type Importer interface {
	ImportInterface(module string) (*iface.Interface, error)
}

// Function describes a top-level function after inference.
type Function struct {
	Decl *ast.FnDecl
	// Type is the generalized type; a TScheme when the function is polymorphic.
	Type  typesystem.Type
	Arity int
}

func (f *Function) Polymorphic() bool { return typesystem.IsPolymorphic(f.Type) }

// Constructor describes a sum-type constructor, including Ok and Error.
type Constructor struct {
	Name   string
	Sum    string
	Index  int
	HasArg bool
	// Module owns the holder of an imported constructor; empty otherwise.
	Module string
	// Type is the constructor's (possibly quantified) function or value type.
	Type typesystem.Type
}

type SumType struct {
	Name  string
	Ctors []string
}

// Result is everything the code generator needs from inference.
// It is read-only once InferModule returns.
type Result struct {
	Module         *ast.Module
	Types          TypeMap
	Instantiations *Instantiations
	Functions      map[string]*Function
	Values         map[string]typesystem.Type
	Constructors   map[string]*Constructor
	SumTypes       map[string]*SumType
	Host           map[ast.Node]*host.Signature
	Imports        map[string]*iface.Interface
	// Order lists top-level functions and values in declaration order.
	Order []string
	Main  typesystem.Type
}

// Engine runs inference for exactly one compilation unit. Its substitution
// and type map must not be reused for another unit.
type Engine struct {
	subst    *typesystem.Subst
	types    TypeMap
	insts    *Instantiations
	nextID   int
	ctors    map[string]*Constructor
	sums     map[string]*SumType
	hostSigs map[ast.Node]*host.Signature
	imports  map[string]*iface.Interface
	resolver host.Resolver
	importer Importer
}

type Option func(*Engine)

// WithResolver sets the host signature resolver. Without one, host calls
// resolve against the static table.
func WithResolver(r host.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

func WithImporter(i Importer) Option {
	return func(e *Engine) { e.importer = i }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		subst:    typesystem.NewSubst(),
		types:    make(TypeMap),
		insts:    newInstantiations(),
		ctors:    make(map[string]*Constructor),
		sums:     make(map[string]*SumType),
		hostSigs: make(map[ast.Node]*host.Signature),
		imports:  make(map[string]*iface.Interface),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = host.NewStaticTable()
	}
	return e
}

func (e *Engine) freshVar() typesystem.TVar {
	e.nextID++
	return typesystem.TVar{ID: e.nextID}
}

func (e *Engine) freshNumeric() typesystem.TNumeric {
	e.nextID++
	return typesystem.TNumeric{ID: e.nextID}
}

func (e *Engine) fresh(numeric bool) typesystem.Type {
	if numeric {
		return e.freshNumeric()
	}
	return e.freshVar()
}

func (e *Engine) instantiate(t typesystem.Type) typesystem.Type {
	return typesystem.Instantiate(t, e.fresh)
}

// generalize quantifies the variables of t not free in env.
func (e *Engine) generalize(env TypeEnv, t typesystem.Type) typesystem.Type {
	return typesystem.Generalize(e.subst.Resolve(t), env.freeVars(e.subst))
}

// generalizeLocal is generalize for let-bound locals. Numeric variables stay
// monomorphic so a local closure is compiled at the one representation its
// uses agree on.
func (e *Engine) generalizeLocal(env TypeEnv, t typesystem.Type) typesystem.Type {
	t = e.subst.Resolve(t)
	fixed := env.freeVars(e.subst)
	for _, id := range typesystem.NumericIDs(t) {
		fixed[id] = true
	}
	return typesystem.Generalize(t, fixed)
}

// freshen renames every variable of an externally written type (annotation,
// import) to fresh ids of this engine, consistently within mapping.
func (e *Engine) freshen(t typesystem.Type, mapping map[int]typesystem.Type) typesystem.Type {
	if s, ok := t.(typesystem.TScheme); ok {
		t = s.Body
	}
	for _, id := range typesystem.FreeVars(t) {
		if _, ok := mapping[id]; !ok {
			mapping[id] = nil
		}
	}
	numeric := map[int]bool{}
	for _, id := range typesystem.NumericIDs(t) {
		numeric[id] = true
	}
	for id, v := range mapping {
		if v == nil {
			mapping[id] = e.fresh(numeric[id])
		}
	}
	return typesystem.Replace(t, mapping)
}

// unify wraps unification failures into diagnostics located at node.
func (e *Engine) unify(node ast.Node, a, b typesystem.Type) error {
	err := e.subst.Unify(a, b)
	if err == nil {
		return nil
	}
	var ue *typesystem.UnifyError
	if !errors.As(err, &ue) {
		return err
	}
	pos := node.GetPos()
	switch ue.Kind {
	case typesystem.RecursiveError:
		return diagnostics.NewError(diagnostics.ErrT003, pos, "%s", ue.Error())
	case typesystem.NumericError:
		return diagnostics.NewError(diagnostics.ErrT005, pos, "%s is not a numeric type", e.subst.Resolve(ue.Right))
	}
	return diagnostics.NewError(diagnostics.ErrT001, pos, "cannot unify %s with %s",
		e.subst.Resolve(ue.Left), e.subst.Resolve(ue.Right))
}

func typeErrorf(code diagnostics.ErrorCode, pos token.Position, format string, args ...any) error {
	return diagnostics.NewError(code, pos, "%s", fmt.Sprintf(format, args...))
}

// BaseEnv returns the environment holding the builtins: print and the Result
// constructors.
func (e *Engine) BaseEnv() TypeEnv {
	env := NewTypeEnv()

	a := e.freshVar()
	env = env.ExtendGlobal(config.PrintFuncName,
		typesystem.TScheme{Vars: []int{a.ID}, Body: typesystem.NewFunc(typesystem.Unit, a)})

	ok, er := e.freshVar(), e.freshVar()
	result := typesystem.TResult{Ok: ok, Err: er}
	vars := []int{ok.ID, er.ID}
	e.sums[config.ResultTypeName] = &SumType{Name: config.ResultTypeName, Ctors: []string{config.OkCtorName, config.ErrorCtorName}}
	for i, c := range []struct {
		name string
		arg  typesystem.Type
	}{{config.OkCtorName, ok}, {config.ErrorCtorName, er}} {
		t := typesystem.TScheme{Vars: vars, Body: typesystem.NewFunc(result, c.arg)}
		e.ctors[c.name] = &Constructor{Name: c.name, Sum: config.ResultTypeName, Index: i, HasArg: true, Type: t}
		env = env.ExtendGlobal(c.name, t)
	}
	return env
}
