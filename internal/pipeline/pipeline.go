// Package pipeline drives one compilation unit through inference, code
// generation, description and publication.
package pipeline

// Processor is one stage of the pipeline. A processor that finds errors
// already recorded in the context returns it unchanged.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Compile returns the full pipeline: infer, generate, describe, publish.
func Compile() *Pipeline {
	return New(
		&InferenceProcessor{},
		&CodegenProcessor{},
		&DescribeProcessor{},
		&PublishProcessor{},
	)
}

// Then returns a pipeline running p's processors followed by processors.
func (p *Pipeline) Then(processors ...Processor) *Pipeline {
	all := append(append([]Processor(nil), p.processors...), processors...)
	return New(all...)
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}
