package vm

import "fmt"

// CompiledFunction represents a function compiled to bytecode. It is never
// mutated once the compiler is done with it, so any number of closures and
// threads may share it.
type CompiledFunction struct {
	Name         string // "" for lambdas, "script" for top level
	Arity        int
	Chunk        *Chunk
	UpvalueCount int
	// Captures tells OP_CLOSURE how to fill each upvalue slot
	Captures  []Capture
	StartLine int
}

func (f *CompiledFunction) String() string {
	if f.Name == "" {
		return "<fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}

// Capture describes where an upvalue comes from when a closure is built:
// a local slot of the enclosing frame, or one of the enclosing closure's
// own upvalues.
type Capture struct {
	IsLocal bool
	Index   int
}

// NativeFn is the calling contract for host functions.
type NativeFn func(args []Value) (Value, error)

// Native is a host function. Arity -1 accepts any number of arguments.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFn
}

// Closure is the only callable runtime value. Exactly one of Function and
// Native is set.
type Closure struct {
	Function *CompiledFunction
	Upvalues []*Upvalue
	Native   *Native
}

func (c *Closure) String() string {
	if c.Native != nil {
		return fmt.Sprintf("<native %s>", c.Native.Name)
	}
	return c.Function.String()
}

// Upvalue is a captured variable. While open it names a stack slot of the
// thread that owns it; every read and write goes through that thread. Once
// the slot's frame or block ends it is closed and holds its own copy.
type Upvalue struct {
	open   bool
	thread *Thread
	slot   int
	closed Value

	// For the owning thread's open upvalue list (sorted by slot, highest first)
	next *Upvalue
}

func (u *Upvalue) Get() Value {
	if u.open {
		return u.thread.stack[u.slot]
	}
	return u.closed
}

func (u *Upvalue) Set(v Value) {
	if u.open {
		u.thread.stack[u.slot] = v
		return
	}
	u.closed = v
}

func (u *Upvalue) close() {
	u.closed = u.thread.stack[u.slot]
	u.open = false
	u.thread = nil
	u.next = nil
}
