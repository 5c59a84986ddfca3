package vm

import "golang.org/x/exp/slices"

// LineStart records that the instructions from PC onward came from Line.
type LineStart struct {
	PC   int
	Line int
}

// Chunk represents a sequence of decoded instructions
type Chunk struct {
	// Code is the instruction stream
	Code []Instruction

	// Constants pool - literals and names
	Constants []Value

	// Functions holds the prototypes referenced by OP_CLOSURE
	Functions []*CompiledFunction

	// Lines is a sparse line map, ordered by PC
	Lines []LineStart
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 16),
	}
}

// Write appends an instruction and returns its index
func (c *Chunk) Write(ins Instruction, line int) int {
	pc := len(c.Code)
	if n := len(c.Lines); n == 0 || c.Lines[n-1].Line != line {
		c.Lines = append(c.Lines, LineStart{PC: pc, Line: line})
	}
	c.Code = append(c.Code, ins)
	return pc
}

// WriteOp writes an instruction with a single operand
func (c *Chunk) WriteOp(op Opcode, a int, line int) int {
	return c.Write(Instruction{Op: op, A: a}, line)
}

// AddConstant adds a constant to the pool and returns its index. Equal
// strings and numbers share a slot.
func (c *Chunk) AddConstant(value Value) int {
	if value.Type == ValNumber || value.Type == ValString {
		for i, existing := range c.Constants {
			if existing.Equals(value) {
				return i
			}
		}
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// AddFunction registers a nested function prototype and returns its index
func (c *Chunk) AddFunction(fn *CompiledFunction) int {
	c.Functions = append(c.Functions, fn)
	return len(c.Functions) - 1
}

// LineAt resolves pc back to a source line using the sparse line map
func (c *Chunk) LineAt(pc int) int {
	if len(c.Lines) == 0 {
		return 0
	}
	i, found := slices.BinarySearchFunc(c.Lines, pc, func(ls LineStart, pc int) int {
		return ls.PC - pc
	})
	if found {
		return c.Lines[i].Line
	}
	if i == 0 {
		return c.Lines[0].Line
	}
	return c.Lines[i-1].Line
}

// Len returns the number of instructions in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}
