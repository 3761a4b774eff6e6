package pipeline

import (
	"github.com/pkg/errors"

	"github.com/funvibe/miniml/internal/analyzer"
	"github.com/funvibe/miniml/internal/vm"
)

// InferenceProcessor types the module with a fresh engine.
type InferenceProcessor struct{}

func (p *InferenceProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Module == nil || ctx.Failed() {
		return ctx
	}
	var opts []analyzer.Option
	if ctx.Resolver != nil {
		opts = append(opts, analyzer.WithResolver(ctx.Resolver))
	}
	if ctx.Importer != nil {
		opts = append(opts, analyzer.WithImporter(ctx.Importer))
	}
	res, err := analyzer.NewEngine(opts...).InferModule(ctx.Module)
	if err != nil {
		return ctx.fail(err)
	}
	ctx.Result = res
	ctx.log().Debug("inferred",
		"functions", len(res.Functions),
		"values", len(res.Values),
		"instantiated", len(res.Instantiations.Names()))
	return ctx
}

// CodegenProcessor generates the module and holder artifacts.
type CodegenProcessor struct{}

func (p *CodegenProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Result == nil || ctx.Failed() {
		return ctx
	}
	arts, err := vm.Compile(ctx.Module, ctx.Result, vm.WithLogger(ctx.log()))
	if err != nil {
		return ctx.fail(err)
	}
	ctx.Artifacts = arts
	ctx.log().Debug("compiled", "methods", len(arts[0].Methods), "holders", len(arts)-1)
	return ctx
}

// DescribeProcessor derives the interface descriptor and serializes the
// bundle.
type DescribeProcessor struct{}

func (p *DescribeProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if len(ctx.Artifacts) == 0 || ctx.Failed() {
		return ctx
	}
	in, err := vm.Describe(ctx.Result, ctx.Artifacts[0])
	if err != nil {
		return ctx.fail(err)
	}
	ctx.Interface = in
	ctx.Bundle = (&vm.Bundle{Module: ctx.Module.Name, Artifacts: ctx.Artifacts}).Serialize()
	return ctx
}

// PublishProcessor stores the descriptor and bundle. Without a store it does
// nothing.
type PublishProcessor struct{}

func (p *PublishProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Store == nil || ctx.Interface == nil || ctx.Failed() {
		return ctx
	}
	if err := ctx.Store.Publish(ctx.Context, ctx.Unit, ctx.Interface, ctx.Bundle); err != nil {
		return ctx.fail(errors.Wrapf(err, "publishing %s", ctx.Module.Name))
	}
	ctx.log().Debug("published", "exports", len(ctx.Interface.Exports), "bytes", len(ctx.Bundle))
	return ctx
}
