package pipeline

import (
	"io"

	"github.com/funvibe/miniml/internal/host"
	"github.com/funvibe/miniml/internal/vm"
)

// ExecutionProcessor runs the unit's main in a fresh VM and stores the
// boxed result in the context. Imports are loaded through Loader.
type ExecutionProcessor struct {
	Loader    vm.Loader
	Registry  *host.Registry
	Output    io.Writer
	MaxFrames int
}

func (p *ExecutionProcessor) Process(ctx *PipelineContext) *PipelineContext {
	// If previous steps failed, don't run execution
	if len(ctx.Artifacts) == 0 || ctx.Failed() {
		return ctx
	}
	opts := []vm.VMOption{vm.WithRegistry(p.Registry)}
	if p.Loader != nil {
		opts = append(opts, vm.WithLoader(p.Loader))
	}
	if p.MaxFrames > 0 {
		opts = append(opts, vm.WithMaxFrames(p.MaxFrames))
	}
	machine := vm.New(opts...)
	if p.Output != nil {
		machine.SetOutput(p.Output)
	}
	if err := machine.Load(ctx.Artifacts); err != nil {
		return ctx.fail(err)
	}
	v, err := machine.Run(ctx.Context, ctx.Module.Name)
	if err != nil {
		return ctx.fail(err)
	}
	ctx.Value = v
	ctx.log().Debug("executed")
	return ctx
}
