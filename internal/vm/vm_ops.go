package vm

import "math"

var operatorSymbols = map[Opcode]string{
	OP_ADD: "+",
	OP_SUB: "-",
	OP_MUL: "*",
	OP_DIV: "/",
	OP_MOD: "%",
	OP_LT:  "<",
	OP_LE:  "<=",
	OP_GT:  ">",
	OP_GE:  ">=",
}

// binaryOp performs arithmetic and comparison. Both operands must be numbers.
func (t *Thread) binaryOp(op Opcode) error {
	b := t.pop()
	a := t.pop()

	if !a.IsNumber() || !b.IsNumber() {
		return t.runtimeError("operands of '%s' must be numbers, got %s and %s", operatorSymbols[op], a.Type, b.Type)
	}
	x, y := a.AsNumber(), b.AsNumber()

	var result Value
	switch op {
	case OP_ADD:
		result = NumberVal(x + y)
	case OP_SUB:
		result = NumberVal(x - y)
	case OP_MUL:
		result = NumberVal(x * y)
	case OP_DIV:
		if y == 0 {
			return t.runtimeError("division by zero")
		}
		result = NumberVal(x / y)
	case OP_MOD:
		if y == 0 {
			return t.runtimeError("modulo by zero")
		}
		result = NumberVal(math.Mod(x, y))
	case OP_LT:
		result = BoolVal(x < y)
	case OP_LE:
		result = BoolVal(x <= y)
	case OP_GT:
		result = BoolVal(x > y)
	case OP_GE:
		result = BoolVal(x >= y)
	}

	t.push(result)
	return nil
}

// forTest reads the counter, limit and step slots starting at slot, pushes
// the counter and whether the loop goes on, then advances the counter.
func (t *Thread) forTest(slot int) error {
	counter, limit, step := t.stack[slot], t.stack[slot+1], t.stack[slot+2]
	if !counter.IsNumber() || !limit.IsNumber() || !step.IsNumber() {
		return t.runtimeError("for loop bounds must be numbers")
	}
	c, s := counter.AsNumber(), step.AsNumber()
	if s == 0 {
		return t.runtimeError("for loop step can't be zero")
	}

	var more bool
	if s > 0 {
		more = c <= limit.AsNumber()
	} else {
		more = c >= limit.AsNumber()
	}

	t.push(counter)
	t.push(BoolVal(more))
	t.stack[slot] = NumberVal(c + s)
	return nil
}
