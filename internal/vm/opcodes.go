// Package vm implements the dakka compiler, bytecode virtual machine and
// cooperative thread scheduler.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Literals
	OP_TRUE  Opcode = iota
	OP_FALSE        // Push false
	OP_NULL         // Push null
	OP_CONST        // A: constant index

	// Unary
	OP_NOT    // !
	OP_NEGATE // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %

	OP_POP // Discard top of stack

	// Variables
	OP_INIT_GLOBAL // A: name constant. Pops the initial value.
	OP_GET_GLOBAL  // A: name constant
	OP_SET_GLOBAL  // A: name constant. Leaves the value on the stack.
	OP_GET_LOCAL   // A: slot relative to frame base
	OP_SET_LOCAL   // A: slot relative to frame base
	OP_GET_UPVALUE // A: index into the closure's upvalues
	OP_SET_UPVALUE // A: index into the closure's upvalues
	OP_GET_PROP    // A: property name constant
	OP_SET_PROP    // A: property name constant

	// Functions
	OP_CLOSURE       // A: index into Chunk.Functions
	OP_CALL          // A: argument count
	OP_RETURN        // Return top of stack to the caller
	OP_CLOSE_UPVALUE // Close the upvalue for the top slot and pop it

	// Concurrency
	OP_SPAWN  // A: argument count or -1 without a script, B: type constant or -1, Props: name constants
	OP_THREAD // A: argument count
	OP_SLEEP  // Pop a duration and suspend

	// Control flow
	OP_JUMP          // A: absolute target
	OP_JUMP_IF_FALSE // A: absolute target. Leaves the condition on the stack.
	OP_FOR_TEST      // A: slot of the hidden counter (limit and step follow it)
	OP_REPEAT        // A: slot of the hidden counter
)

// NoOperand marks an optional operand that is absent.
const NoOperand = -1

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_TRUE:  "TRUE",
	OP_FALSE: "FALSE",
	OP_NULL:  "NULL",
	OP_CONST: "CONST",

	OP_NOT:    "NOT",
	OP_NEGATE: "NEGATE",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",

	OP_POP: "POP",

	OP_INIT_GLOBAL: "INIT_GLOBAL",
	OP_GET_GLOBAL:  "GET_GLOBAL",
	OP_SET_GLOBAL:  "SET_GLOBAL",
	OP_GET_LOCAL:   "GET_LOCAL",
	OP_SET_LOCAL:   "SET_LOCAL",
	OP_GET_UPVALUE: "GET_UPVALUE",
	OP_SET_UPVALUE: "SET_UPVALUE",
	OP_GET_PROP:    "GET_PROP",
	OP_SET_PROP:    "SET_PROP",

	OP_CLOSURE:       "CLOSURE",
	OP_CALL:          "CALL",
	OP_RETURN:        "RETURN",
	OP_CLOSE_UPVALUE: "CLOSE_UPVALUE",

	OP_SPAWN:  "SPAWN",
	OP_THREAD: "THREAD",
	OP_SLEEP:  "SLEEP",

	OP_JUMP:          "JMP",
	OP_JUMP_IF_FALSE: "JMP_FALSE",
	OP_FOR_TEST:      "FOR_TEST",
	OP_REPEAT:        "REPEAT",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// Instruction is one decoded VM instruction. Which operands are meaningful
// depends on Op; see the opcode list above.
type Instruction struct {
	Op    Opcode
	A     int
	B     int
	Props []int
}
