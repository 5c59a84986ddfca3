package vm

import "github.com/jbpuryear/dakka/internal/diagnostics"

// execute is the dispatch loop. It returns done when the outermost frame
// returns, and stops without a result when the thread sleeps or is killed.
func (t *Thread) execute() (result Value, done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if r == errStackOverflow {
				result, done, err = Value{}, false, t.runtimeError("stack overflow")
				return
			}
			panic(r)
		}
	}()

	frame := &t.frames[len(t.frames)-1]

	for t.state == ThreadRunning {
		if frame.ip >= len(frame.chunk.Code) {
			frame.ip++
			return Value{}, false, t.runtimeError("unexpected end of code")
		}
		ins := &frame.chunk.Code[frame.ip]
		frame.ip++

		switch ins.Op {
		case OP_CONST:
			t.push(frame.chunk.Constants[ins.A])

		case OP_TRUE:
			t.push(BoolVal(true))

		case OP_FALSE:
			t.push(BoolVal(false))

		case OP_NULL:
			t.push(NullVal())

		case OP_NOT:
			t.stack[t.sp-1] = BoolVal(t.stack[t.sp-1].IsFalsy())

		case OP_NEGATE:
			v := t.stack[t.sp-1]
			if !v.IsNumber() {
				return Value{}, false, t.runtimeError("operand of '-' must be a number, got %s", v.Type)
			}
			t.stack[t.sp-1] = NumberVal(-v.AsNumber())

		case OP_EQ:
			b := t.pop()
			t.stack[t.sp-1] = BoolVal(t.stack[t.sp-1].Equals(b))

		case OP_NE:
			b := t.pop()
			t.stack[t.sp-1] = BoolVal(!t.stack[t.sp-1].Equals(b))

		case OP_LT, OP_LE, OP_GT, OP_GE, OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
			if err := t.binaryOp(ins.Op); err != nil {
				return Value{}, false, err
			}

		case OP_POP:
			t.sp--

		case OP_INIT_GLOBAL:
			name := frame.chunk.Constants[ins.A].AsString()
			if _, ok := t.sched.globals[name]; ok {
				return Value{}, false, t.runtimeError("global '%s' is already declared", name)
			}
			t.sched.globals[name] = t.pop()

		case OP_GET_GLOBAL:
			name := frame.chunk.Constants[ins.A].AsString()
			v, ok := t.sched.globals[name]
			if !ok {
				return Value{}, false, t.runtimeError("undeclared variable '%s'", name)
			}
			t.push(v)

		case OP_SET_GLOBAL:
			name := frame.chunk.Constants[ins.A].AsString()
			if _, ok := t.sched.globals[name]; !ok {
				return Value{}, false, t.runtimeError("undeclared variable '%s'", name)
			}
			t.sched.globals[name] = t.stack[t.sp-1]

		case OP_GET_LOCAL:
			t.push(t.stack[frame.base+ins.A])

		case OP_SET_LOCAL:
			t.stack[frame.base+ins.A] = t.stack[t.sp-1]

		case OP_GET_UPVALUE:
			t.push(frame.closure.Upvalues[ins.A].Get())

		case OP_SET_UPVALUE:
			frame.closure.Upvalues[ins.A].Set(t.stack[t.sp-1])

		case OP_GET_PROP:
			name := frame.chunk.Constants[ins.A].AsString()
			if t.target == nil {
				return Value{}, false, t.runtimeError("can't read property '%s': thread has no target", name)
			}
			v, ok := t.target.GetProperty(name)
			if !ok {
				return Value{}, false, t.runtimeError("undefined property '%s'", name)
			}
			t.push(v)

		case OP_SET_PROP:
			name := frame.chunk.Constants[ins.A].AsString()
			if t.target == nil {
				return Value{}, false, t.runtimeError("can't set property '%s': thread has no target", name)
			}
			if err := t.target.SetProperty(name, t.stack[t.sp-1]); err != nil {
				return Value{}, false, t.runtimeError("can't set property '%s': %v", name, err)
			}

		case OP_CLOSURE:
			fn := frame.chunk.Functions[ins.A]
			cl := &Closure{Function: fn, Upvalues: make([]*Upvalue, len(fn.Captures))}
			for i, c := range fn.Captures {
				if c.IsLocal {
					cl.Upvalues[i] = t.captureUpvalue(frame.base + c.Index)
				} else {
					cl.Upvalues[i] = frame.closure.Upvalues[c.Index]
				}
			}
			t.push(ClosureVal(cl))

		case OP_CALL:
			if err := t.callValue(t.stack[t.sp-1-ins.A], ins.A); err != nil {
				return Value{}, false, err
			}
			frame = &t.frames[len(t.frames)-1]

		case OP_RETURN:
			ret := t.pop()
			t.closeUpvalues(frame.base)
			if len(t.frames) == 1 {
				t.state = ThreadTerminated
				return ret, true, nil
			}
			t.sp = frame.base - 1
			t.frames = t.frames[:len(t.frames)-1]
			frame = &t.frames[len(t.frames)-1]
			t.push(ret)

		case OP_CLOSE_UPVALUE:
			t.closeUpvalues(t.sp - 1)
			t.sp--

		case OP_SPAWN:
			if err := t.spawn(frame.chunk, ins); err != nil {
				return Value{}, false, err
			}

		case OP_THREAD:
			if err := t.startSubThread(ins.A); err != nil {
				return Value{}, false, err
			}

		case OP_SLEEP:
			v := t.pop()
			if !v.IsNumber() {
				return Value{}, false, t.runtimeError("sleep duration must be a number, got %s", v.Type)
			}
			t.sleepRemaining = v.AsNumber()
			t.state = ThreadSleeping

		case OP_JUMP:
			frame.ip = ins.A

		case OP_JUMP_IF_FALSE:
			if t.stack[t.sp-1].IsFalsy() {
				frame.ip = ins.A
			}

		case OP_FOR_TEST:
			if err := t.forTest(frame.base + ins.A); err != nil {
				return Value{}, false, err
			}

		case OP_REPEAT:
			slot := frame.base + ins.A
			count := t.stack[slot]
			if !count.IsNumber() {
				return Value{}, false, t.runtimeError("repeat count must be a number, got %s", count.Type)
			}
			n := count.AsNumber()
			if n > 0 {
				t.stack[slot] = NumberVal(n - 1)
			}
			t.push(BoolVal(n > 0))

		default:
			return Value{}, false, diagnostics.NewRuntime(t.currentLine(), "unknown opcode %d", ins.Op)
		}
	}

	return Value{}, false, nil
}
