package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/funvibe/miniml/internal/analyzer"
	"github.com/funvibe/miniml/internal/ast"
	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/iface"
	"github.com/funvibe/miniml/internal/logging"
	"github.com/funvibe/miniml/internal/vm"
)

// PipelineContext carries one compilation unit between processors.
type PipelineContext struct {
	Context context.Context
	Unit    uuid.UUID
	Module  *ast.Module
	Logger  *slog.Logger

	// Resolver and Importer are handed to the inference engine. Store,
	// when set, receives the unit's descriptor and bundle.
	Resolver host.Resolver
	Importer analyzer.Importer
	Store    *iface.Store

	Result    *analyzer.Result
	Artifacts []*vm.Artifact
	Interface *iface.Interface
	Bundle    []byte
	// Value is main's boxed result once an ExecutionProcessor ran.
	Value any

	Errors []error
}

// NewPipelineContext starts a unit for mod with a fresh ID.
func NewPipelineContext(ctx context.Context, mod *ast.Module) *PipelineContext {
	return &PipelineContext{
		Context: ctx,
		Unit:    uuid.New(),
		Module:  mod,
		Logger:  logging.Discard(),
	}
}

// Failed reports whether any processor recorded an error.
func (c *PipelineContext) Failed() bool {
	return len(c.Errors) > 0
}

// Err returns the first recorded error.
func (c *PipelineContext) Err() error {
	if len(c.Errors) == 0 {
		return nil
	}
	return c.Errors[0]
}

func (c *PipelineContext) fail(err error) *PipelineContext {
	c.Errors = append(c.Errors, err)
	return c
}

func (c *PipelineContext) log() *slog.Logger {
	return c.Logger.With("unit", c.Unit.String(), "module", c.Module.Name)
}
