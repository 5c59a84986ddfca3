package vm

import (
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/token"
)

type Precedence int

const (
	PREC_NONE       Precedence = iota
	PREC_ASSIGNMENT            // = += -= ...
	PREC_TERNARY               // ?:
	PREC_OR                    // ||
	PREC_AND                   // &&
	PREC_EQUALITY              // == !=
	PREC_COMPARISON            // < > <= >=
	PREC_TERM                  // + -
	PREC_FACTOR                // * / %
	PREC_UNARY                 // ! -
	PREC_CALL                  // ()
	PREC_PRIMARY
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	Prefix parseFn
	Infix  parseFn
	Prec   Precedence
}

var parseRules map[token.TokenType]parseRule

func init() {
	parseRules = map[token.TokenType]parseRule{
		token.LPAREN:   {(*Parser).grouping, (*Parser).call, PREC_CALL},
		token.LBRACKET: {(*Parser).property, nil, PREC_NONE},
		token.MINUS:    {(*Parser).unary, (*Parser).binary, PREC_TERM},
		token.PLUS:     {nil, (*Parser).binary, PREC_TERM},
		token.SLASH:    {nil, (*Parser).binary, PREC_FACTOR},
		token.ASTERISK: {nil, (*Parser).binary, PREC_FACTOR},
		token.PERCENT:  {nil, (*Parser).binary, PREC_FACTOR},
		token.BANG:     {(*Parser).unary, nil, PREC_NONE},
		token.NOT_EQ:   {nil, (*Parser).binary, PREC_EQUALITY},
		token.EQ:       {nil, (*Parser).binary, PREC_EQUALITY},
		token.GT:       {nil, (*Parser).binary, PREC_COMPARISON},
		token.GTE:      {nil, (*Parser).binary, PREC_COMPARISON},
		token.LT:       {nil, (*Parser).binary, PREC_COMPARISON},
		token.LTE:      {nil, (*Parser).binary, PREC_COMPARISON},
		token.AND:      {nil, (*Parser).and, PREC_AND},
		token.OR:       {nil, (*Parser).or, PREC_OR},
		token.QUESTION: {nil, (*Parser).ternary, PREC_TERNARY},
		token.IDENT:    {(*Parser).variable, nil, PREC_NONE},
		token.STRING:   {(*Parser).str, nil, PREC_NONE},
		token.NUMBER:   {(*Parser).number, nil, PREC_NONE},
		token.TRUE:     {(*Parser).literal, nil, PREC_NONE},
		token.FALSE:    {(*Parser).literal, nil, PREC_NONE},
		token.NULL:     {(*Parser).literal, nil, PREC_NONE},
		token.FUN:      {(*Parser).lambda, nil, PREC_NONE},
	}
}

var binaryOps = map[token.TokenType]Opcode{
	token.PLUS:     OP_ADD,
	token.MINUS:    OP_SUB,
	token.ASTERISK: OP_MUL,
	token.SLASH:    OP_DIV,
	token.PERCENT:  OP_MOD,
	token.EQ:       OP_EQ,
	token.NOT_EQ:   OP_NE,
	token.LT:       OP_LT,
	token.LTE:      OP_LE,
	token.GT:       OP_GT,
	token.GTE:      OP_GE,
}

// compoundOps maps a compound assignment to the arithmetic it applies.
var compoundOps = map[token.TokenType]Opcode{
	token.PLUS_ASSIGN:     OP_ADD,
	token.MINUS_ASSIGN:    OP_SUB,
	token.ASTERISK_ASSIGN: OP_MUL,
	token.SLASH_ASSIGN:    OP_DIV,
	token.PERCENT_ASSIGN:  OP_MOD,
}

func (p *Parser) expression() {
	p.parsePrecedence(PREC_ASSIGNMENT)
}

// parsePrecedence parses a prefix expression followed by every infix
// operator that binds at least as tightly as prec.
func (p *Parser) parsePrecedence(prec Precedence) {
	p.advance()

	prefix := parseRules[p.previous.Type].Prefix
	if prefix == nil {
		p.error("expected expression")
		return
	}
	canAssign := prec <= PREC_ASSIGNMENT
	prefix(p, canAssign)

	for {
		rule, ok := parseRules[p.current.Type]
		if !ok || rule.Infix == nil || rule.Prec < prec {
			break
		}
		p.advance()
		rule.Infix(p, canAssign)
	}

	if canAssign && token.IsAssignment(p.current.Type) {
		p.errorAtCurrent("invalid assignment target")
		p.advance()
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "expected ')' after expression")
}

func (p *Parser) number(canAssign bool) {
	n, _ := p.previous.Literal.(float64)
	p.emitConstant(NumberVal(n))
}

func (p *Parser) str(canAssign bool) {
	s, _ := p.previous.Literal.(string)
	p.emitConstant(StringVal(s))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Type {
	case token.TRUE:
		p.emit(OP_TRUE)
	case token.FALSE:
		p.emit(OP_FALSE)
	case token.NULL:
		p.emit(OP_NULL)
	}
}

func (p *Parser) unary(canAssign bool) {
	op := p.previous.Type
	p.parsePrecedence(PREC_UNARY)

	switch op {
	case token.BANG:
		p.emit(OP_NOT)
	case token.MINUS:
		p.emit(OP_NEGATE)
	}
}

func (p *Parser) binary(canAssign bool) {
	op := p.previous.Type
	rule := parseRules[op]
	p.parsePrecedence(rule.Prec + 1)
	p.emit(binaryOps[op])
}

// and leaves the left operand when it is falsy, otherwise the right one.
func (p *Parser) and(canAssign bool) {
	endJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.parsePrecedence(PREC_AND)
	p.patchJump(endJump)
}

// or leaves the left operand when it is truthy, otherwise the right one.
func (p *Parser) or(canAssign bool) {
	elseJump := p.emitJump(OP_JUMP_IF_FALSE)
	endJump := p.emitJump(OP_JUMP)
	p.patchJump(elseJump)
	p.emit(OP_POP)
	p.parsePrecedence(PREC_OR)
	p.patchJump(endJump)
}

func (p *Parser) ternary(canAssign bool) {
	thenJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emit(OP_POP)
	p.expression()
	p.consume(token.COLON, "expected ':' in conditional expression")

	elseJump := p.emitJump(OP_JUMP)
	p.patchJump(thenJump)
	p.emit(OP_POP)
	p.parsePrecedence(PREC_TERNARY)
	p.patchJump(elseJump)
}

func (p *Parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitOp(OP_CALL, argCount)
}

// argumentList parses the arguments after an already consumed '('.
func (p *Parser) argumentList() int {
	count := 0
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if count == config.MaxArgs {
				p.error("can't have more than 255 arguments")
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return count
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) namedVariable(name token.Token, canAssign bool) {
	getOp, setOp := OP_GET_LOCAL, OP_SET_LOCAL
	arg := p.resolveLocal(p.fc, name)
	if arg == -1 {
		if arg = p.resolveUpvalue(p.fc, name); arg != -1 {
			getOp, setOp = OP_GET_UPVALUE, OP_SET_UPVALUE
		} else {
			arg = p.identifierConstant(name.Lexeme)
			getOp, setOp = OP_GET_GLOBAL, OP_SET_GLOBAL
		}
	}
	p.access(getOp, setOp, arg, canAssign)
}

// property compiles a target object access: [name]
func (p *Parser) property(canAssign bool) {
	if !p.consume(token.IDENT, "expected property name after '['") {
		return
	}
	arg := p.identifierConstant(p.previous.Lexeme)
	p.consume(token.RBRACKET, "expected ']' after property name")
	p.access(OP_GET_PROP, OP_SET_PROP, arg, canAssign)
}

// access emits a read of arg, or an assignment to it when an assignment
// operator follows and assignment is allowed here. Compound assignments
// read, combine and write back.
func (p *Parser) access(getOp, setOp Opcode, arg int, canAssign bool) {
	if !canAssign || !token.IsAssignment(p.current.Type) {
		p.emitOp(getOp, arg)
		return
	}

	p.advance()
	op := p.previous.Type
	if op == token.ASSIGN {
		p.expression()
		p.emitOp(setOp, arg)
		return
	}

	p.emitOp(getOp, arg)
	p.expression()
	p.emit(compoundOps[op])
	p.emitOp(setOp, arg)
}

func (p *Parser) lambda(canAssign bool) {
	p.function("")
}

// function compiles a parameter list and body into a nested function and
// emits the OP_CLOSURE that builds it at runtime.
func (p *Parser) function(name string) {
	p.fc = newCompiler(p.fc, TypeFunction, name, p.previous.Line)
	p.beginScope()

	p.consume(token.LPAREN, "expected '(' after fun")
	if !p.check(token.RPAREN) {
		for {
			p.fc.function.Arity++
			if p.fc.function.Arity > config.MaxArgs {
				p.errorAtCurrent("can't have more than 255 parameters")
			}
			if !p.consume(token.IDENT, "expected parameter name") {
				break
			}
			p.declareLocal(p.previous)
			p.markInitialized()
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")
	p.consume(token.LBRACE, "expected '{' before function body")
	p.block()

	fn := p.endCompiler()
	p.emitOp(OP_CLOSURE, p.currentChunk().AddFunction(fn))
}
