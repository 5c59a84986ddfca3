package vm

import (
	"errors"

	"github.com/jbpuryear/dakka/internal/diagnostics"
)

// SpawnError is raised when a freshly built object can't be initialized or
// its script can't start. Both the spawning thread's target and the new
// object are notified.
type SpawnError struct {
	Diag   *diagnostics.Error
	Target Target // the object that was being spawned
}

func (e *SpawnError) Error() string {
	return e.Diag.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Diag
}

// callValue calls the value sitting below the top argCount stack slots.
func (t *Thread) callValue(callee Value, argCount int) error {
	if !callee.IsCallable() {
		return t.runtimeError("can only call functions, got %s", callee.Type)
	}
	cl := callee.AsClosure()
	if cl.Native != nil {
		return t.callNative(cl.Native, argCount)
	}
	return t.callClosure(cl, argCount)
}

func (t *Thread) callClosure(cl *Closure, argCount int) error {
	if argCount != cl.Function.Arity {
		return t.runtimeError("expected %d arguments but got %d", cl.Function.Arity, argCount)
	}
	if len(t.frames) >= t.sched.maxFrames {
		return t.runtimeError("stack overflow")
	}

	t.frames = append(t.frames, CallFrame{
		closure: cl,
		chunk:   cl.Function.Chunk,
		base:    t.sp - argCount,
	})
	return nil
}

func (t *Thread) callNative(n *Native, argCount int) error {
	if n.Arity >= 0 && argCount != n.Arity {
		return t.runtimeError("%s: expected %d arguments but got %d", n.Name, n.Arity, argCount)
	}

	args := make([]Value, argCount)
	copy(args, t.stack[t.sp-argCount:t.sp])

	result, err := n.Fn(args)
	if err != nil {
		return t.runtimeError("%s: %v", n.Name, err)
	}
	if !result.Valid() {
		return t.runtimeError("native '%s' returned an invalid value", n.Name)
	}

	t.sp -= argCount + 1
	t.push(result)
	return nil
}

// scriptOperands pops a script closure and its argCount arguments for
// spawn and thread.
func (t *Thread) scriptOperands(argCount int) (*Closure, []Value, error) {
	calleeSlot := t.sp - argCount - 1
	callee := t.stack[calleeSlot]
	if callee.Type != ValClosure {
		return nil, nil, t.runtimeError("can only run script functions, got %s", callee.Type)
	}
	cl := callee.AsClosure()
	if argCount != cl.Function.Arity {
		return nil, nil, t.runtimeError("expected %d arguments but got %d", cl.Function.Arity, argCount)
	}

	args := make([]Value, argCount)
	copy(args, t.stack[calleeSlot+1:t.sp])
	t.sp = calleeSlot
	return cl, args, nil
}

// spawn builds a target object, applies the initializers and, if a script
// was given, starts a thread bound to the new object. The new thread runs
// its first slice before spawn returns.
func (t *Thread) spawn(chunk *Chunk, ins *Instruction) error {
	var script *Closure
	var args []Value
	if ins.A != NoOperand {
		var err error
		if script, args, err = t.scriptOperands(ins.A); err != nil {
			return err
		}
	}

	inits := make([]Value, len(ins.Props))
	copy(inits, t.stack[t.sp-len(ins.Props):t.sp])
	t.sp -= len(ins.Props)

	typeKey := t.sched.defaultType
	if ins.B != NoOperand {
		typeKey = chunk.Constants[ins.B].AsString()
	}
	factory, ok := t.sched.types[typeKey]
	if !ok {
		return diagnostics.NewSpawn(t.currentLine(), "unknown type '%s'", typeKey)
	}
	target, err := factory()
	if err == nil && target == nil {
		err = errors.New("factory returned no object")
	}
	if err != nil {
		return diagnostics.NewSpawn(t.currentLine(), "can't create '%s': %v", typeKey, err)
	}

	for i, nameIdx := range ins.Props {
		name := chunk.Constants[nameIdx].AsString()
		if err := target.SetProperty(name, inits[i]); err != nil {
			return &SpawnError{
				Diag:   diagnostics.NewSpawn(t.currentLine(), "can't initialize property '%s' of '%s': %v", name, typeKey, err),
				Target: target,
			}
		}
	}

	t.sched.spawned(target)

	if script == nil {
		return nil
	}
	if _, err := t.sched.startThread(script, args, target, nil); err != nil {
		return &SpawnError{
			Diag:   diagnostics.NewSpawn(t.currentLine(), "can't start script of '%s': %v", typeKey, err),
			Target: target,
		}
	}
	return nil
}

// startSubThread runs a closure on a new thread without a target.
func (t *Thread) startSubThread(argCount int) error {
	script, args, err := t.scriptOperands(argCount)
	if err != nil {
		return err
	}
	if _, err := t.sched.startThread(script, args, nil, nil); err != nil {
		return t.runtimeError("%v", err)
	}
	return nil
}
