// Package miniml compiles miniml syntax trees to VM artifacts and runs them.
package miniml

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/config"
	"github.com/funvibe/miniml/internal/diagnostics"
	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/logging"
	"github.com/funvibe/miniml/internal/pipeline"
	"github.com/funvibe/miniml/internal/typesystem"
	"github.com/funvibe/miniml/internal/vm"
)

// Unit is one compiled module.
type Unit struct {
	ID     uuid.UUID
	Module string
	// Interface is the rendered descriptor other modules compile against.
	Interface string
	Bundle    []byte

	artifacts []*vm.Artifact
	iface     *iface.Interface
	main      typesystem.Type
}

// MainType renders the type of the module's main expression, or "" if it
// has none.
func (u *Unit) MainType() string {
	if u.main == nil {
		return ""
	}
	return typesystem.RenderSignature(u.main)
}

// Compiler compiles modules, remembers them for later imports and runs
// them. Modules it has not compiled itself are looked up in the store.
type Compiler struct {
	cfg       *config.Config
	logger    *slog.Logger
	resolver  host.Resolver
	registry  *host.Registry
	store     *iface.Store
	ownStore  bool
	out       io.Writer
	maxFrames int

	mu    sync.Mutex
	units map[string]*Unit
}

type Option func(*Compiler)

func WithConfig(cfg *config.Config) Option {
	return func(c *Compiler) { c.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithStore publishes every compiled unit to s and resolves unknown imports
// from it. The caller keeps ownership of s.
func WithStore(s *iface.Store) Option {
	return func(c *Compiler) { c.store = s }
}

// WithRegistry sets the host implementations programs run against.
func WithRegistry(r *host.Registry) Option {
	return func(c *Compiler) { c.registry = r }
}

// WithOutput sets where print writes. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Compiler) { c.out = w }
}

func WithMaxFrames(n int) Option {
	return func(c *Compiler) { c.maxFrames = n }
}

// NewCompiler builds a compiler. Without WithStore, a store is opened when
// the configuration names a DSN and closed by Close.
func NewCompiler(ctx context.Context, opts ...Option) (*Compiler, error) {
	c := &Compiler{
		registry:  host.NewRegistry(),
		out:       os.Stdout,
		maxFrames: vm.DefaultMaxFrames,
		units:     make(map[string]*Unit),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	if c.logger == nil {
		c.logger = logging.New(os.Stderr, c.cfg.Log.Level, c.cfg.Log.Color)
	}
	resolver, err := host.NewResolver(c.cfg.Host)
	if err != nil {
		return nil, errors.Wrap(err, "host bindings")
	}
	c.resolver = resolver
	if c.store == nil && c.cfg.Store.DSN != "" {
		s, err := iface.OpenStore(ctx, c.cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		c.store = s
		c.ownStore = true
	}
	return c, nil
}

// Close releases a store opened by NewCompiler.
func (c *Compiler) Close() error {
	if c.ownStore {
		return c.store.Close()
	}
	return nil
}

// Compile infers and generates mod, then publishes it when a store is set.
// A module without a name takes the configured default.
func (c *Compiler) Compile(ctx context.Context, mod *ast.Module) (*Unit, error) {
	if mod.Name == "" {
		mod.Name = c.cfg.Module
	}
	u, _, err := c.build(ctx, mod, c.store)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.units[u.Module] = u
	c.mu.Unlock()
	c.logger.Info("compiled module", "module", u.Module, "unit", u.ID.String())
	return u, nil
}

func (c *Compiler) build(ctx context.Context, mod *ast.Module, store *iface.Store, then ...pipeline.Processor) (*Unit, *pipeline.PipelineContext, error) {
	pctx := pipeline.NewPipelineContext(ctx, mod)
	pctx.Logger = c.logger
	pctx.Resolver = c.resolver
	pctx.Importer = c
	pctx.Store = store
	pctx = pipeline.Compile().Then(then...).Run(pctx)
	if pctx.Interface == nil {
		return nil, pctx, pctx.Err()
	}
	u := &Unit{
		ID:        pctx.Unit,
		Module:    mod.Name,
		Interface: pctx.Interface.Render(),
		Bundle:    pctx.Bundle,
		artifacts: pctx.Artifacts,
		iface:     pctx.Interface,
		main:      pctx.Result.Main,
	}
	return u, pctx, pctx.Err()
}

func (c *Compiler) executor() *pipeline.ExecutionProcessor {
	return &pipeline.ExecutionProcessor{
		Loader:    c,
		Registry:  c.registry,
		Output:    c.out,
		MaxFrames: c.maxFrames,
	}
}

// Run executes u's main in a fresh VM and returns its boxed result.
// Imported modules are loaded on first reference.
func (c *Compiler) Run(ctx context.Context, u *Unit) (any, error) {
	pctx := pipeline.NewPipelineContext(ctx, &ast.Module{Name: u.Module})
	pctx.Unit = u.ID
	pctx.Logger = c.logger
	pctx.Artifacts = u.artifacts
	pctx = c.executor().Process(pctx)
	return pctx.Value, pctx.Err()
}

// Call invokes a compiled method of u with boxed arguments (int64,
// float64, bool, string or host values). Specializations are called by
// their suffixed names.
func (c *Compiler) Call(ctx context.Context, u *Unit, method string, args ...any) (any, error) {
	machine := vm.New(vm.WithLoader(c), vm.WithRegistry(c.registry), vm.WithMaxFrames(c.maxFrames))
	machine.SetOutput(c.out)
	if err := machine.Load(u.artifacts); err != nil {
		return nil, err
	}
	return machine.Call(ctx, u.Module, method, args...)
}

// Report writes err to w as a one-line diagnostic, coloured per the log
// colour setting.
func (c *Compiler) Report(w io.Writer, err error) {
	diagnostics.Render(w, err, logging.UseColor(w, c.cfg.Log.Color))
}

// ImportInterface returns the descriptor of a module compiled by c, or of
// one published to the store.
func (c *Compiler) ImportInterface(module string) (*iface.Interface, error) {
	c.mu.Lock()
	u, ok := c.units[module]
	c.mu.Unlock()
	if ok {
		return u.iface, nil
	}
	if c.store == nil {
		return nil, errors.Wrap(iface.ErrNotFound, module)
	}
	return c.store.ImportInterface(module)
}

// LoadArtifacts implements vm.Loader over the same sources as
// ImportInterface.
func (c *Compiler) LoadArtifacts(module string) ([]*vm.Artifact, error) {
	c.mu.Lock()
	u, ok := c.units[module]
	c.mu.Unlock()
	if ok {
		return u.artifacts, nil
	}
	if c.store == nil {
		return nil, errors.Wrap(iface.ErrNotFound, module)
	}
	return pipeline.NewStoreLoader(context.Background(), c.store).LoadArtifacts(module)
}
