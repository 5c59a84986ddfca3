package vm

import (
	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/token"
	"golang.org/x/exp/slices"
)

// beginScope starts a new scope
func (p *Parser) beginScope() {
	p.fc.scopeDepth++
}

// endScope ends the current scope, popping its locals or closing the ones
// a closure captured.
func (p *Parser) endScope() {
	c := p.fc
	c.scopeDepth--

	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].IsCaptured {
			p.emit(OP_CLOSE_UPVALUE)
		} else {
			p.emit(OP_POP)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// addLocal adds a local variable to the current scope. Its slot is its
// index; the value is expected to already be on the stack there.
func (p *Parser) addLocal(name string) int {
	c := p.fc
	if len(c.locals) >= config.MaxLocals {
		p.error("too many local variables in function")
		return 0
	}
	c.locals = append(c.locals, Local{Name: name, Depth: uninitialized})
	return len(c.locals) - 1
}

// declareLocal adds name as an uninitialized local after checking that the
// innermost scope does not already hold it.
func (p *Parser) declareLocal(name token.Token) int {
	c := p.fc
	for i := len(c.locals) - 1; i >= 0; i-- {
		local := c.locals[i]
		if local.Depth != uninitialized && local.Depth < c.scopeDepth {
			break
		}
		if local.Name == name.Lexeme {
			p.error("'" + name.Lexeme + "' is already declared in this scope")
			break
		}
	}
	return p.addLocal(name.Lexeme)
}

// addHiddenLocal reserves a slot for a compiler temporary. The name cannot
// be spelled in source, so scripts never see it.
func (p *Parser) addHiddenLocal(name string) int {
	slot := p.addLocal(" " + name)
	p.markInitialized()
	return slot
}

func (p *Parser) markInitialized() {
	c := p.fc
	if len(c.locals) == 0 {
		return
	}
	c.locals[len(c.locals)-1].Depth = c.scopeDepth
}

// resolveLocal looks up a local variable by name
func (p *Parser) resolveLocal(c *Compiler, name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name.Lexeme {
			if c.locals[i].Depth == uninitialized {
				p.error("can't read local variable '" + name.Lexeme + "' in its own initializer")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue looks for a variable in enclosing functions, threading an
// upvalue through every function between the declaration and the use.
func (p *Parser) resolveUpvalue(c *Compiler, name token.Token) int {
	if c.enclosing == nil {
		return -1
	}

	if local := p.resolveLocal(c.enclosing, name); local != -1 {
		c.enclosing.locals[local].IsCaptured = true
		return p.addUpvalue(c, Capture{IsLocal: true, Index: local})
	}

	if upvalue := p.resolveUpvalue(c.enclosing, name); upvalue != -1 {
		return p.addUpvalue(c, Capture{IsLocal: false, Index: upvalue})
	}

	return -1
}

// addUpvalue returns the index of capture in c, reusing an existing entry.
func (p *Parser) addUpvalue(c *Compiler, capture Capture) int {
	if idx := slices.Index(c.upvalues, capture); idx != -1 {
		return idx
	}
	if len(c.upvalues) >= config.MaxUpvalues {
		p.error("too many closure variables in function")
		return 0
	}
	c.upvalues = append(c.upvalues, capture)
	return len(c.upvalues) - 1
}
