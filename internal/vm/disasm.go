package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of fn and, indented under
// each OP_CLOSURE, the functions it builds.
func Disassemble(fn *CompiledFunction) string {
	name := fn.Name
	if name == "" {
		name = "<lambda>"
	}
	return DisassembleChunk(fn.Chunk, name)
}

// DisassembleChunk returns a human-readable representation of the bytecode
func DisassembleChunk(chunk *Chunk, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	prevLine := -1
	for pc, ins := range chunk.Code {
		line := chunk.LineAt(pc)
		disassembleInstruction(&sb, chunk, pc, ins, line, line == prevLine)
		prevLine = line
	}

	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, pc int, ins Instruction, line int, sameLine bool) {
	sb.WriteString(fmt.Sprintf("%04d ", pc))
	if sameLine {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", line))
	}

	name := ins.Op.String()

	switch ins.Op {
	case OP_CONST, OP_INIT_GLOBAL, OP_GET_GLOBAL, OP_SET_GLOBAL, OP_GET_PROP, OP_SET_PROP:
		constantInstruction(sb, name, chunk, ins.A)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE, OP_CALL, OP_THREAD, OP_FOR_TEST, OP_REPEAT:
		sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, ins.A))

	case OP_JUMP, OP_JUMP_IF_FALSE:
		sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, pc, ins.A))

	case OP_CLOSURE:
		closureInstruction(sb, name, chunk, ins.A)

	case OP_SPAWN:
		spawnInstruction(sb, name, chunk, ins)

	default:
		sb.WriteString(fmt.Sprintf("%s\n", name))
	}
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, idx int) {
	if idx >= 0 && idx < len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, chunk.Constants[idx]))
	} else {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", name, idx))
	}
}

func spawnInstruction(sb *strings.Builder, name string, chunk *Chunk, ins Instruction) {
	typeName := "default"
	if ins.B != NoOperand && ins.B < len(chunk.Constants) {
		typeName = chunk.Constants[ins.B].String()
	}
	props := make([]string, len(ins.Props))
	for i, idx := range ins.Props {
		if idx < len(chunk.Constants) {
			props[i] = chunk.Constants[idx].String()
		}
	}
	args := "no script"
	if ins.A != NoOperand {
		args = fmt.Sprintf("%d args", ins.A)
	}
	sb.WriteString(fmt.Sprintf("%-16s %s [%s] (%s)\n", name, typeName, strings.Join(props, ", "), args))
}

func closureInstruction(sb *strings.Builder, name string, chunk *Chunk, idx int) {
	if idx < 0 || idx >= len(chunk.Functions) {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", name, idx))
		return
	}

	fn := chunk.Functions[idx]
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, fn))

	for _, c := range fn.Captures {
		kind := "upvalue"
		if c.IsLocal {
			kind = "local"
		}
		sb.WriteString(fmt.Sprintf("     |                     %s %d\n", kind, c.Index))
	}

	// Indent the function disassembly
	funcDisasm := strings.TrimSuffix(Disassemble(fn), "\n")
	sb.WriteString("    | " + strings.ReplaceAll(funcDisasm, "\n", "\n    | ") + "\n")
}
