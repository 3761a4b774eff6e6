package vm

import (
	"log/slog"
	"sort"

	"github.com/funvibe/miniml/internal/analyzer"
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/logging"
	"github.com/funvibe/miniml/internal/typesystem"
)

// Compiler generates the artifacts of one module from its inference result.
type Compiler struct {
	res    *analyzer.Result
	module string
	art    *Artifact
	pool   *constantPool

	// queued holds every method name already emitted or waiting in work.
	queued    map[string]bool
	work      []*specialization
	specs     map[string]int // function -> specializations emitted
	lambdas   int
	factories map[string]string

	logger *slog.Logger
}

// specialization is one method to emit for a top-level function: the
// function's type with subst applied.
type specialization struct {
	fn    *analyzer.Function
	name  string
	typ   typesystem.Type
	subst map[int]typesystem.Type
}

type Option func(*Compiler)

func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// Compile generates the module artifact and one holder artifact per
// constructor of the module's sum types.
func Compile(mod *ast.Module, res *analyzer.Result, opts ...Option) ([]*Artifact, error) {
	c := &Compiler{
		res:       res,
		module:    mod.Name,
		art:       &Artifact{Name: mod.Name, Kind: KindModule},
		pool:      newConstantPool(),
		queued:    make(map[string]bool),
		specs:     make(map[string]int),
		factories: make(map[string]string),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c.compileModule(mod)
}

func (c *Compiler) compileModule(mod *ast.Module) ([]*Artifact, error) {
	for _, name := range c.res.Order {
		fn, ok := c.res.Functions[name]
		if !ok {
			continue
		}
		if !fn.Polymorphic() {
			c.enqueue(&specialization{fn: fn, name: name, typ: fn.Type})
			continue
		}
		for _, inst := range c.res.Instantiations.Of(name) {
			if _, _, err := c.specialize(fn, inst); err != nil {
				return nil, err
			}
		}
	}

	if err := c.compileInitializer(mod); err != nil {
		return nil, err
	}
	if mod.Main != nil {
		if err := c.compileMain(mod.Main); err != nil {
			return nil, err
		}
	}

	for {
		if err := c.drain(); err != nil {
			return nil, err
		}
		// Polymorphic functions nobody instantiated are still emitted once,
		// with their numeric variables defaulted to Int.
		added := false
		for _, name := range c.res.Order {
			fn, ok := c.res.Functions[name]
			if !ok || !fn.Polymorphic() || c.specs[name] > 0 || c.queued[name] {
				continue
			}
			c.enqueue(c.defaulted(fn))
			added = true
		}
		if !added {
			break
		}
	}

	c.art.Constants = c.pool.entries
	arts := []*Artifact{c.art}
	arts = append(arts, c.holderArtifacts()...)
	return arts, nil
}

func (c *Compiler) enqueue(s *specialization) {
	if c.queued[s.name] {
		return
	}
	c.queued[s.name] = true
	c.work = append(c.work, s)
}

func (c *Compiler) drain() error {
	for len(c.work) > 0 {
		s := c.work[0]
		c.work = c.work[1:]
		if err := c.compileFunction(s); err != nil {
			return err
		}
	}
	return nil
}

// specialize returns the method name and type of fn at the concrete type t
// and queues the method if it has not been requested yet.
func (c *Compiler) specialize(fn *analyzer.Function, t typesystem.Type) (string, typesystem.Type, error) {
	scheme := fn.Type.(typesystem.TScheme)
	mapping := make(map[int]typesystem.Type)
	if !typesystem.Match(scheme.Body, t, mapping) {
		return "", nil, diagnostics.Internalf("%s : %s does not instantiate to %s", fn.Decl.Name, scheme, t)
	}
	for _, id := range typesystem.NumericIDs(scheme.Body) {
		if _, ok := mapping[id]; !ok {
			mapping[id] = typesystem.Int
		}
	}
	concrete := typesystem.Replace(scheme.Body, mapping)
	name := typesystem.SpecializedName(fn.Decl.Name, concrete, fn.Arity)
	if !c.queued[name] {
		c.specs[fn.Decl.Name]++
	}
	c.enqueue(&specialization{fn: fn, name: name, typ: concrete, subst: mapping})
	return name, concrete, nil
}

// defaulted is the single emission of an uninstantiated polymorphic function.
func (c *Compiler) defaulted(fn *analyzer.Function) *specialization {
	scheme := fn.Type.(typesystem.TScheme)
	mapping := make(map[int]typesystem.Type)
	for _, id := range typesystem.NumericIDs(scheme.Body) {
		mapping[id] = typesystem.Int
	}
	return &specialization{fn: fn, name: fn.Decl.Name, typ: typesystem.Replace(scheme.Body, mapping), subst: mapping}
}

// target names the method a reference to fn at type t calls, and the type
// that method is emitted at.
func (c *Compiler) target(fn *analyzer.Function, t typesystem.Type) (string, typesystem.Type, error) {
	if !fn.Polymorphic() {
		return fn.Decl.Name, fn.Type, nil
	}
	return c.specialize(fn, t)
}

func (c *Compiler) compileFunction(s *specialization) error {
	decl := s.fn.Decl
	m := newMethodCompiler(c, nil, s.subst)
	m.line = decl.Pos.Line

	params, result := typesystem.SplitFunc(s.typ, s.fn.Arity)
	if len(params) != s.fn.Arity {
		return diagnostics.Internalf("%s : %s has fewer than %d parameters", decl.Name, s.typ, s.fn.Arity)
	}
	for i, p := range decl.Params {
		r, err := ReprOf(params[i])
		if err != nil {
			return err
		}
		m.locals.Define(p.Name, r)
	}
	desc, err := MethodDescriptor(params, result)
	if err != nil {
		return err
	}
	ret, err := resultRepr(result)
	if err != nil {
		return err
	}
	if err := m.compileBody(decl.Body, ret); err != nil {
		return err
	}
	meth := m.finish(s.name, desc)
	meth.Function = decl.Name
	meth.Signature = typesystem.RenderSignature(s.typ)
	return nil
}

// compileInitializer stores every top-level value into its field.
func (c *Compiler) compileInitializer(mod *ast.Module) error {
	m := newMethodCompiler(c, nil, nil)
	hasValues := false
	for _, d := range mod.Decls {
		ld, ok := d.(*ast.LetDecl)
		if !ok {
			continue
		}
		hasValues = true
		m.line = ld.Pos.Line
		t := c.res.Values[ld.Name]
		desc, err := typeDescriptor(t, false)
		if err != nil {
			return err
		}
		c.art.Fields = append(c.art.Fields, &Field{Name: ld.Name, Descriptor: desc})
		if err := m.compileExpr(ld.Value); err != nil {
			return err
		}
		idx, err := c.constant(Constant{Kind: ConstField, Owner: c.module, Name: ld.Name, Descriptor: desc})
		if err != nil {
			return err
		}
		m.emitU16(OP_PUTSTATIC, idx)
	}
	if !hasValues {
		return nil
	}
	m.emit(OP_RETURN)
	m.finish(config.InitializerMethodName, "()V")
	return nil
}

func (c *Compiler) compileMain(expr ast.Expression) error {
	t := c.res.Main
	desc, err := MethodDescriptor(nil, t)
	if err != nil {
		return err
	}
	ret, err := resultRepr(t)
	if err != nil {
		return err
	}
	m := newMethodCompiler(c, nil, nil)
	m.line = expr.GetPos().Line
	if err := m.compileBody(expr, ret); err != nil {
		return err
	}
	m.finish(config.EntryMethodName, desc)
	return nil
}

func (c *Compiler) constant(k Constant) (int, error) {
	idx, err := c.pool.add(k)
	if err != nil {
		return 0, diagnostics.Internalf("%s: %v", c.module, err)
	}
	return idx, nil
}

func (c *Compiler) addMethod(meth *Method) {
	c.art.Methods = append(c.art.Methods, meth)
	c.logger.Debug("emitted method", "module", c.module, "method", meth.Name, "descriptor", meth.Descriptor)
}

// holderArtifacts describes the constructors of the module's sum types.
// Ok and Error are provided by the runtime.
func (c *Compiler) holderArtifacts() []*Artifact {
	names := make([]string, 0, len(c.res.SumTypes))
	for name := range c.res.SumTypes {
		if name != config.ResultTypeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var out []*Artifact
	for _, name := range names {
		for _, ctor := range c.res.SumTypes[name].Ctors {
			info := c.res.Constructors[ctor]
			out = append(out, &Artifact{
				Name:    ctor,
				Kind:    KindHolder,
				Sum:     name,
				Tag:     info.Index,
				Payload: info.HasArg,
			})
		}
	}
	return out
}
