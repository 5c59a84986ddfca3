package vm

import "github.com/jbpuryear/dakka/internal/token"

func (p *Parser) whileStatement() {
	loopStart := p.currentChunk().Len()
	p.consume(token.LPAREN, "expected '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(OP_POP)
}

// forStatement compiles
//
//	for (var i = start, limit[, step]) body
//
// start, limit and step are evaluated once into three hidden slots. Each
// iteration OP_FOR_TEST pushes the current counter, which becomes the
// loop variable, and a continue flag. The limit is inclusive.
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expected '(' after 'for'")
	if !p.consume(token.VAR, "expected 'var' to declare the loop variable") {
		p.endScope()
		return
	}
	if !p.consume(token.IDENT, "expected loop variable name") {
		p.endScope()
		return
	}
	name := p.previous
	p.consume(token.ASSIGN, "expected '=' after loop variable")

	p.expression()
	counter := p.addHiddenLocal("for counter")
	p.consume(token.COMMA, "expected ',' after loop start")
	p.expression()
	p.addHiddenLocal("for limit")

	if p.match(token.COMMA) {
		stepStart := p.currentChunk().Len()
		p.expression()
		if p.isZeroConstant(stepStart) {
			p.error("for loop step can't be zero")
		}
	} else {
		p.emitConstant(NumberVal(1))
	}
	p.addHiddenLocal("for step")
	p.consume(token.RPAREN, "expected ')' after loop clauses")

	loopStart := p.emitOp(OP_FOR_TEST, counter)
	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)

	// A fresh variable per iteration, so closures keep the value they saw.
	p.beginScope()
	p.declareLocal(name)
	p.markInitialized()
	p.statement()
	p.endScope()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(OP_POP) // continue flag
	p.emit(OP_POP) // last counter value
	p.endScope()
}

// isZeroConstant reports whether the code emitted since start is a single
// constant 0.
func (p *Parser) isZeroConstant(start int) bool {
	chunk := p.currentChunk()
	if chunk.Len() != start+1 || chunk.Code[start].Op != OP_CONST {
		return false
	}
	v := chunk.Constants[chunk.Code[start].A]
	return v.IsNumber() && v.AsNumber() == 0
}

// repeatStatement compiles repeat (count) body. The count is evaluated
// once into a hidden slot that OP_REPEAT counts down.
func (p *Parser) repeatStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "expected '(' after 'repeat'")
	p.expression()
	counter := p.addHiddenLocal("repeat count")
	p.consume(token.RPAREN, "expected ')' after repeat count")

	loopStart := p.emitOp(OP_REPEAT, counter)
	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emit(OP_POP)
	p.endScope()
}
