package pipeline

import (
	"github.com/hashicorp/go-multierror"
	"github.com/jbpuryear/dakka/internal/token"
)

// Processor is a single stage of the source-to-bytecode pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// PipelineContext carries a script through the stages.
type PipelineContext struct {
	SourceCode string
	Tokens     []token.Token
	// Program is set by the compiler stage; it holds a *vm.CompiledFunction.
	Program interface{}
	Errors  []error
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// AddError records err, flattening aggregated errors into the list.
func (c *PipelineContext) AddError(err error) {
	if err == nil {
		return
	}
	if merr, ok := err.(*multierror.Error); ok {
		c.Errors = append(c.Errors, merr.Errors...)
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *PipelineContext) Failed() bool {
	return len(c.Errors) > 0
}

// Err aggregates every recorded error, or returns nil.
func (c *PipelineContext) Err() error {
	var result *multierror.Error
	for _, err := range c.Errors {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
