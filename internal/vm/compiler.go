package vm

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/diagnostics"
	"github.com/jbpuryear/dakka/internal/lexer"
	"github.com/jbpuryear/dakka/internal/pipeline"
	"github.com/jbpuryear/dakka/internal/token"
	"github.com/sirupsen/logrus"
)

type FunctionType int

const (
	TypeScript FunctionType = iota
	TypeFunction
)

// uninitialized marks a local that is declared but whose initializer is
// still being compiled.
const uninitialized = -1

// Local represents a local variable in the current scope
type Local struct {
	Name       string
	Depth      int
	IsCaptured bool
}

// Compiler holds the state of one function being compiled. Nested function
// literals get their own Compiler linked through enclosing.
type Compiler struct {
	enclosing  *Compiler
	function   *CompiledFunction
	fnType     FunctionType
	locals     []Local
	upvalues   []Capture
	scopeDepth int
}

func newCompiler(enclosing *Compiler, fnType FunctionType, name string, line int) *Compiler {
	return &Compiler{
		enclosing: enclosing,
		fnType:    fnType,
		function: &CompiledFunction{
			Name:      name,
			Chunk:     NewChunk(),
			StartLine: line,
		},
		locals: make([]Local, 0, 8),
	}
}

// CompileOptions tune a single compilation.
type CompileOptions struct {
	// Disassemble logs the finished script, nested functions included, at
	// debug level.
	Disassemble bool
}

// Parser is the whole state of one compilation: the token cursor, the chain
// of function compilers and the collected errors. Nothing is global, so
// any number of compilations may run at once.
type Parser struct {
	tokens   []token.Token
	pos      int
	previous token.Token
	current  token.Token

	fc *Compiler

	errors    *multierror.Error
	panicMode bool
	opts      CompileOptions
}

// Compile scans and compiles src into the top-level script function.
func Compile(src string) (*CompiledFunction, error) {
	return CompileWithOptions(src, CompileOptions{})
}

func CompileWithOptions(src string, opts CompileOptions) (*CompiledFunction, error) {
	ctx := pipeline.New(
		&lexer.LexerProcessor{},
		&CompilerProcessor{Options: opts},
	).Run(pipeline.NewPipelineContext(src))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ctx.Program.(*CompiledFunction), nil
}

// CompileTokens compiles an already scanned token stream. Every syntax
// error is collected; if there is any, no function is returned.
func CompileTokens(toks []token.Token, opts CompileOptions) (*CompiledFunction, error) {
	p := &Parser{tokens: toks, opts: opts}
	p.fc = newCompiler(nil, TypeScript, config.ScriptFuncName, 1)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	if err := p.errors.ErrorOrNil(); err != nil {
		return nil, err
	}
	return fn, nil
}

// CompilerProcessor is the compile stage of the pipeline. It does nothing
// when an earlier stage already failed.
type CompilerProcessor struct {
	Options CompileOptions
}

func (cp *CompilerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	fn, err := CompileTokens(ctx.Tokens, cp.Options)
	if err != nil {
		ctx.AddError(err)
		return ctx
	}
	ctx.Program = fn
	return ctx
}

// Token cursor

func (p *Parser) advance() {
	p.previous = p.current
	if p.pos < len(p.tokens) {
		p.current = p.tokens[p.pos]
		p.pos++
		return
	}
	p.current = token.Token{Type: token.EOF, Line: p.previous.Line}
}

func (p *Parser) peekType() token.TokenType {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos].Type
	}
	return token.EOF
}

func (p *Parser) check(t token.TokenType) bool {
	return p.current.Type == t
}

func (p *Parser) match(t token.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t token.TokenType, msg string) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	p.errorAtCurrent(msg)
	return false
}

// Error reporting

func (p *Parser) error(msg string) {
	p.errorAt(p.previous, msg)
}

func (p *Parser) errorAtCurrent(msg string) {
	p.errorAt(p.current, msg)
}

func (p *Parser) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := fmt.Sprintf("'%s'", tok.Lexeme)
	if tok.Type == token.EOF {
		where = "end"
	}
	p.errors = multierror.Append(p.errors, diagnostics.NewSyntax(tok.Line, where, msg))
}

// synchronize skips tokens until a statement boundary.
func (p *Parser) synchronize() {
	p.panicMode = false

	for !p.check(token.EOF) {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		if token.StartsStatement(p.current.Type) {
			return
		}
		p.advance()
	}
}

// Emission

func (p *Parser) currentChunk() *Chunk {
	return p.fc.function.Chunk
}

func (p *Parser) emit(op Opcode) int {
	return p.currentChunk().WriteOp(op, 0, p.previous.Line)
}

func (p *Parser) emitOp(op Opcode, a int) int {
	return p.currentChunk().WriteOp(op, a, p.previous.Line)
}

func (p *Parser) emitInstruction(ins Instruction) int {
	return p.currentChunk().Write(ins, p.previous.Line)
}

func (p *Parser) makeConstant(v Value) int {
	idx := p.currentChunk().AddConstant(v)
	if idx >= config.MaxConstants {
		p.error("too many constants in one function")
		return 0
	}
	return idx
}

func (p *Parser) emitConstant(v Value) {
	p.emitOp(OP_CONST, p.makeConstant(v))
}

func (p *Parser) identifierConstant(name string) int {
	return p.makeConstant(StringVal(name))
}

// emitJump emits a jump with a placeholder target and returns its index
// for patchJump.
func (p *Parser) emitJump(op Opcode) int {
	return p.emitOp(op, NoOperand)
}

// patchJump points the jump at index to the next instruction to be emitted.
func (p *Parser) patchJump(at int) {
	chunk := p.currentChunk()
	chunk.Code[at].A = chunk.Len()
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(OP_JUMP, loopStart)
}

func (p *Parser) emitReturn() {
	p.emit(OP_NULL)
	p.emit(OP_RETURN)
}

// endCompiler finishes the current function and pops back to the enclosing
// compiler.
func (p *Parser) endCompiler() *CompiledFunction {
	p.emitReturn()
	fn := p.fc.function
	fn.Captures = p.fc.upvalues
	fn.UpvalueCount = len(p.fc.upvalues)

	if p.opts.Disassemble && p.fc.enclosing == nil && p.errors.ErrorOrNil() == nil {
		logrus.Debugln(Disassemble(fn))
	}

	p.fc = p.fc.enclosing
	return fn
}
