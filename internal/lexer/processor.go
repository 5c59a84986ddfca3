package lexer

import "github.com/jbpuryear/dakka/internal/pipeline"

// LexerProcessor is the scanning stage of the compile pipeline.
type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	toks, err := Scan(ctx.SourceCode)
	ctx.Tokens = toks
	ctx.AddError(err)
	return ctx
}
