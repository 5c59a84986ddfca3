package vm

import (
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/token"
)

func (p *Parser) declaration() {
	switch {
	case p.check(token.FUN) && p.peekType() == token.IDENT:
		p.advance()
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	case p.match(token.GLOBAL):
		p.globalDeclaration()
	case p.match(token.ARGS):
		p.argsDeclaration()
	default:
		p.statement()
	}

	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.REPEAT):
		p.repeatStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.SLEEP):
		p.sleepStatement()
	case p.match(token.SPAWN):
		p.spawnStatement()
	case p.match(token.THREAD):
		p.threadStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	case p.match(token.SEMICOLON):
		// Empty statement.
	default:
		p.expressionStatement()
	}
}

// block parses declarations up to and including the closing brace.
func (p *Parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expected '}' after block")
}

func (p *Parser) funDeclaration() {
	p.consume(token.IDENT, "expected function name")
	name := p.previous
	p.declareLocal(name)
	// Initialized before the body so the function can call itself.
	p.markInitialized()
	p.function(name.Lexeme)
}

func (p *Parser) varDeclaration() {
	if !p.consume(token.IDENT, "expected variable name") {
		return
	}
	p.declareLocal(p.previous)

	if p.match(token.ASSIGN) {
		p.expression()
	} else {
		p.emit(OP_NULL)
	}
	p.consume(token.SEMICOLON, "expected ';' after variable declaration")
	p.markInitialized()
}

func (p *Parser) globalDeclaration() {
	if !p.consume(token.IDENT, "expected global name") {
		return
	}
	name := p.identifierConstant(p.previous.Lexeme)

	if p.match(token.ASSIGN) {
		p.expression()
	} else {
		p.emit(OP_NULL)
	}
	p.consume(token.SEMICOLON, "expected ';' after global declaration")
	p.emitOp(OP_INIT_GLOBAL, name)
}

// argsDeclaration names the arguments a script is run with. It has to come
// before anything else so the names land in the first slots.
func (p *Parser) argsDeclaration() {
	c := p.fc
	if c.fnType != TypeScript || c.scopeDepth != 0 || len(c.locals) != 0 || c.function.Chunk.Len() != 0 {
		p.error("'args' must be the first statement of a script")
		return
	}

	for {
		if !p.consume(token.IDENT, "expected argument name") {
			return
		}
		p.declareLocal(p.previous)
		p.markInitialized()
		c.function.Arity++
		if c.function.Arity > config.MaxArgs {
			p.error("can't have more than 255 script arguments")
		}
		if !p.match(token.COMMA) {
			break
		}
	}
	p.consume(token.SEMICOLON, "expected ';' after script arguments")
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "expected ';' after expression")
	p.emit(OP_POP)
}

func (p *Parser) ifStatement() {
	p.consume(token.LPAREN, "expected '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	thenJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.statement()

	elseJump := p.emitJump(OP_JUMP)
	p.patchJump(thenJump)
	p.emit(OP_POP)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) returnStatement() {
	if p.match(token.SEMICOLON) {
		p.emitReturn()
		return
	}
	p.expression()
	p.consume(token.SEMICOLON, "expected ';' after return value")
	p.emit(OP_RETURN)
}

func (p *Parser) sleepStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "expected ';' after sleep duration")
	p.emit(OP_SLEEP)
}

// spawnStatement compiles
//
//	spawn [type] [[prop = expr, ...]] [(closure, args...)];
//
// Initializer values are pushed first, then the closure and its arguments.
func (p *Parser) spawnStatement() {
	ins := Instruction{Op: OP_SPAWN, A: NoOperand, B: NoOperand}

	if p.match(token.IDENT) {
		ins.B = p.identifierConstant(p.previous.Lexeme)
	}

	if p.match(token.LBRACKET) {
		if !p.check(token.RBRACKET) {
			for {
				if !p.consume(token.IDENT, "expected property name in spawn initializer") {
					return
				}
				ins.Props = append(ins.Props, p.identifierConstant(p.previous.Lexeme))
				p.consume(token.ASSIGN, "expected '=' after property name")
				p.expression()
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		p.consume(token.RBRACKET, "expected ']' after spawn initializers")
	}

	if p.match(token.LPAREN) {
		ins.A = p.scriptCall()
	}

	p.consume(token.SEMICOLON, "expected ';' after spawn")
	p.emitInstruction(ins)
}

func (p *Parser) threadStatement() {
	p.consume(token.LPAREN, "expected '(' after 'thread'")
	argCount := p.scriptCall()
	p.consume(token.SEMICOLON, "expected ';' after thread")
	p.emitOp(OP_THREAD, argCount)
}

// scriptCall parses "closure, args...)" after an already consumed '(' and
// returns the argument count, not counting the closure.
func (p *Parser) scriptCall() int {
	if p.check(token.RPAREN) {
		p.errorAtCurrent("expected a function to run")
		return 0
	}
	p.expression()
	count := 0
	for p.match(token.COMMA) {
		p.expression()
		if count == config.MaxArgs {
			p.error("can't have more than 255 arguments")
		}
		count++
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return count
}
